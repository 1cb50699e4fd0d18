package validation

import (
	"strings"
	"testing"

	"agora/internal/models"

	"github.com/stretchr/testify/assert"
)

type sampleInput struct {
	Name    string `json:"name" validate:"community_name"`
	Title   string `json:"title" validate:"required,max=10"`
	Content string `json:"content" validate:"omitempty,min=2"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    sampleInput
		wantErr  bool
		contains []string
	}{
		{
			name:  "valid",
			input: sampleInput{Name: "gophers", Title: "hello"},
		},
		{
			name:     "missing title",
			input:    sampleInput{Name: "gophers"},
			wantErr:  true,
			contains: []string{"title is required"},
		},
		{
			name:     "too long and reserved",
			input:    sampleInput{Name: "me", Title: strings.Repeat("x", 11)},
			wantErr:  true,
			contains: []string{"title must be at most 10 characters", "name must be"},
		},
		{
			name:     "short content",
			input:    sampleInput{Name: "gophers", Title: "t", Content: "x"},
			wantErr:  true,
			contains: []string{"content must be at least 2 characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, models.IsKind(err, models.CodeValidation))
			for _, want := range tt.contains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
