package valueobject

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// validate checks the shape of bank identifiers with validator's baked-in
// rules
var validate = validator.New()

// IBAN is a normalised International Bank Account Number: upper case,
// without spaces.
type IBAN string

// ibanLengths holds the fixed length per SEPA country
var ibanLengths = map[string]int{
	"AD": 24, "AT": 20, "BE": 16, "BG": 22, "CH": 21, "CY": 28, "CZ": 24,
	"DE": 22, "DK": 18, "EE": 20, "ES": 24, "FI": 18, "FR": 27, "GB": 22,
	"GI": 23, "GR": 27, "HR": 21, "HU": 28, "IE": 22, "IS": 26, "IT": 27,
	"LI": 21, "LT": 20, "LU": 20, "LV": 21, "MC": 27, "MT": 31, "NL": 18,
	"NO": 15, "PL": 28, "PT": 25, "RO": 24, "SE": 24, "SI": 19, "SK": 24,
	"SM": 27, "VA": 22,
}

// NormalizeIBAN strips whitespace and upper-cases the account number
func NormalizeIBAN(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NewIBAN normalises and validates an IBAN with the ISO 13616 mod-97 check
func NewIBAN(s string) (IBAN, error) {
	v := NormalizeIBAN(s)
	if len(v) < 15 || len(v) > 34 {
		return "", fmt.Errorf("iban %q has invalid length %d", s, len(v))
	}
	if err := validate.Var(v, "alphanum"); err != nil {
		return "", fmt.Errorf("iban %q contains invalid characters", s)
	}
	country := v[:2]
	if err := validate.Var(country, "iso3166_1_alpha2"); err != nil {
		return "", fmt.Errorf("iban %q must start with a country code", s)
	}
	if err := validate.Var(v[2:4], "number"); err != nil {
		return "", fmt.Errorf("iban %q has non-numeric check digits", s)
	}
	if want, ok := ibanLengths[country]; ok && len(v) != want {
		return "", fmt.Errorf("iban %q must have %d characters for country %s", s, want, country)
	}
	if mod97(v[4:]+v[:4]) != 1 {
		return "", fmt.Errorf("iban %q fails checksum", s)
	}
	return IBAN(v), nil
}

// mod97 computes the remainder of the letter-expanded number modulo 97
// without building the full integer.
func mod97(s string) int {
	rem := 0
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			n := int(r-'A') + 10
			rem = (rem*100 + n) % 97
			continue
		}
		rem = (rem*10 + int(r-'0')) % 97
	}
	return rem
}

// String returns the IBAN as a string
func (i IBAN) String() string {
	return string(i)
}

// Country returns the two letter country code
func (i IBAN) Country() string {
	if len(i) < 2 {
		return ""
	}
	return string(i[:2])
}
