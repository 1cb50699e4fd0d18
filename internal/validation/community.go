package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var communityNameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// Names that collide with route segments under /api/communities or are
// likely to be confused with system accounts.
var reservedCommunityNames = map[string]struct{}{
	"admin":       {},
	"api":         {},
	"me":          {},
	"all":         {},
	"feed":        {},
	"communities": {},
	"posts":       {},
	"comments":    {},
	"replies":     {},
	"users":       {},
	"metrics":     {},
	"health":      {},
}

// ValidateCommunityName validates community name format and reserved names.
func ValidateCommunityName(name string) error {
	if !communityNameRegex.MatchString(name) {
		return fmt.Errorf("name must be 3-50 characters and contain only letters, numbers, hyphens and underscores")
	}

	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("name cannot start or end with a hyphen")
	}

	if _, exists := reservedCommunityNames[strings.ToLower(name)]; exists {
		return fmt.Errorf("name is reserved")
	}

	return nil
}
