package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer(testSecret, "agora-api", "agora-app", time.Hour)
	verifier := NewVerifier(testSecret, "agora-api", "agora-app")

	token, err := issuer.Issue(42)
	require.NoError(t, err)

	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.NotEmpty(t, claims.JTI)
}

func TestVerify_Rejections(t *testing.T) {
	verifier := NewVerifier(testSecret, "agora-api", "agora-app")

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "7",
			"iss": "agora-api",
			"aud": "agora-app",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"malformed", "malformed.token.here", ErrInvalidToken},
		{"wrong secret", sign(valid(), "another-secret-another-secret-123"), ErrInvalidToken},
		{"expired", func() string {
			c := valid()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return sign(c, testSecret)
		}(), ErrInvalidToken},
		{"wrong issuer", func() string {
			c := valid()
			c["iss"] = "someone-else"
			return sign(c, testSecret)
		}(), ErrInvalidToken},
		{"wrong audience", func() string {
			c := valid()
			c["aud"] = "someone-else"
			return sign(c, testSecret)
		}(), ErrInvalidToken},
		{"non numeric subject", func() string {
			c := valid()
			c["sub"] = "alice"
			return sign(c, testSecret)
		}(), ErrInvalidToken},
		{"zero subject", func() string {
			c := valid()
			c["sub"] = "0"
			return sign(c, testSecret)
		}(), ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Basic dXNlcjpwYXNz")
	assert.False(t, ok)

	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestIssue_RequiresSecretAndUser(t *testing.T) {
	_, err := NewIssuer("", "", "", time.Hour).Issue(1)
	assert.Error(t, err)

	_, err = NewIssuer(testSecret, "", "", time.Hour).Issue(0)
	assert.Error(t, err)
}
