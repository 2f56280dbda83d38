package directdebit

import (
	"strconv"
	"strings"

	"github.com/erp/directdebit/internal/domain/shared"
)

const acceptgiroLength = 15

// acceptgiroWeights are indexed by digit position, left to right
var acceptgiroWeights = [acceptgiroLength]int{10, 5, 8, 4, 2, 1, 6, 3, 7, 9, 10, 5, 8, 4, 2}

// Checksum returns the 16 digit Dutch payment reference (betalingskenmerk)
// for number: the check digit followed by number zero-filled to 15 digits.
func Checksum(number string) (string, error) {
	if number == "" || len(number) > acceptgiroLength {
		return "", shared.NewDomainErrorf("INVALID_INPUT", "Payment reference '%s' must have 1 to 15 digits", number)
	}
	padded := strings.Repeat("0", acceptgiroLength-len(number)) + number

	sum := 0
	for i, r := range padded {
		if r < '0' || r > '9' {
			return "", shared.NewDomainErrorf("INVALID_INPUT", "Payment reference '%s' must only contain digits", number)
		}
		sum += int(r-'0') * acceptgiroWeights[i]
	}

	check := 11 - sum%11
	switch check {
	case 10:
		check = 1
	case 11:
		check = 0
	}
	return strconv.Itoa(check) + padded, nil
}

// AcceptgiroCode returns the payment reference of an invoice number
func AcceptgiroCode(invoiceNumber int64) (string, error) {
	if invoiceNumber < 0 {
		return "", shared.NewDomainErrorf("INVALID_INPUT", "Invoice number %d cannot be negative", invoiceNumber)
	}
	return Checksum(strconv.FormatInt(invoiceNumber, 10))
}
