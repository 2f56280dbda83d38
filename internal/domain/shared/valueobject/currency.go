package valueobject

import (
	"fmt"
	"strings"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// EUR is the only currency SEPA direct debits settle in
const EUR Currency = "EUR"

// NewCurrency validates a three letter currency code
func NewCurrency(code string) (Currency, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("currency code %q must have 3 letters", code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency code %q must be alphabetic", code)
		}
	}
	return Currency(c), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}
