package valueobject

import (
	"fmt"
	"strings"
)

// BIC is a Business Identifier Code (ISO 9362) of 8 or 11 characters
type BIC string

// NewBIC validates the shape of a BIC: 4 letters bank code, 2 letters
// country code, 2 alphanumeric location code and an optional 3 character
// branch code.
func NewBIC(s string) (BIC, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if len(v) != 8 && len(v) != 11 {
		return "", fmt.Errorf("bic %q must have 8 or 11 characters", s)
	}
	if err := validate.Var(v, "bic_iso_9362_2014"); err != nil {
		return "", fmt.Errorf("bic %q has an invalid bank, country or location code", s)
	}
	return BIC(v), nil
}

// String returns the BIC as a string
func (b BIC) String() string {
	return string(b)
}

// SameInstitution reports whether two BICs identify the same bank office.
// Only the first 8 characters count: bank, country and location code. The
// branch code and the XXX primary office suffix are ignored.
func (b BIC) SameInstitution(other BIC) bool {
	return b.institution() == other.institution()
}

func (b BIC) institution() string {
	s := strings.ToUpper(string(b))
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}
