package password

import "unicode"

// Policy is the minimum strength a new password must meet. The zero
// value accepts anything; DefaultPolicy is what registration uses.
type Policy struct {
	MinLength    int
	RequireUpper bool
	RequireLower bool
	RequireDigit bool
}

var DefaultPolicy = Policy{MinLength: 8}

// Validate returns ok=false with machine-readable reason codes suitable
// for an API error payload.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len([]rune(s)) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	var hasU, hasL, hasD bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	return len(reasons) == 0, reasons
}
