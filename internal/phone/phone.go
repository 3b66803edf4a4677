// Package phone normalizes user-entered phone strings to E.164 before they
// reach storage or matching. Matching is phone-keyed, so every path (intake
// and verification callbacks) must agree on one canonical spelling.
package phone

import (
	"fmt"
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// E.164 allows at most 15 digits after the plus.
const (
	minDigits = 10
	maxDigits = 15
)

// Normalize strips formatting from a raw phone string and returns it in
// E.164 form ("+79991234567"). Russian trunk-prefixed numbers (8XXXXXXXXXX)
// and bare 10-digit mobiles (9XXXXXXXXX) are rewritten to the +7 country
// code, matching how the page builder's visitors type them.
func Normalize(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return "", fmt.Errorf("phone %q has no digits", raw)
	}

	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "8"):
		digits = "7" + digits[1:]
	case len(digits) == 10 && strings.HasPrefix(digits, "9"):
		digits = "7" + digits
	}

	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", fmt.Errorf("phone %q normalizes to %d digits, want %d-%d", raw, len(digits), minDigits, maxDigits)
	}
	return "+" + digits, nil
}
