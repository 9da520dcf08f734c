// Package validation holds input validation shared across handlers.
package validation

import "regexp"

// Email address rules, deliberately permissive:
// - one "@", non-empty local part without whitespace
// - domain with at least one dot and a 2+ letter final label
// - length capped at 254
//
// Examples valid: a@b.co, first.last+tag@sub.example.com
// Examples invalid: "", "@x.com", "a@b", "a b@c.com", "a@b..com"
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(?:\.[^\s@.]+)*\.[A-Za-z]{2,}$`)

// ValidEmail reports whether the address is acceptable for an account.
func ValidEmail(s string) bool {
	if len(s) == 0 || len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}
