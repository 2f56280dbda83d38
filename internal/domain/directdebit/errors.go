package directdebit

import (
	"github.com/erp/directdebit/internal/domain/shared"
)

// Error codes raised while generating or booking a direct debit file
const (
	CodeUnsupportedFlavor   = "SDD_UNSUPPORTED_FLAVOR"
	CodeInvalidMandate      = "SDD_INVALID_MANDATE"
	CodeMandateAlreadyUsed  = "SDD_MANDATE_ALREADY_USED"
	CodeMandateMigration    = "SDD_MANDATE_MIGRATION"
	CodeAmountMismatch      = "SDD_AMOUNT_MISMATCH"
	CodeMissingField        = "SDD_MISSING_FIELD"
	CodeInvalidIBAN         = "SDD_INVALID_IBAN"
	CodeDuplicateReference  = "SDD_DUPLICATE_REFERENCE"
	CodeInvalidMandateInput = "INVALID_MANDATE"
)

// Sentinels for errors.Is matching. Concrete errors carry a specific message
// but share the code of their sentinel.
var (
	ErrUnsupportedFlavor   = shared.NewDomainError(CodeUnsupportedFlavor, "Unsupported pain.008 flavor")
	ErrInvalidMandate      = shared.NewDomainError(CodeInvalidMandate, "Missing or invalid mandate")
	ErrMandateAlreadyUsed  = shared.NewDomainError(CodeMandateAlreadyUsed, "One-off mandate already used")
	ErrMandateMigration    = shared.NewDomainError(CodeMandateMigration, "Mandate is not ready for SEPA migration")
	ErrAmountMismatch      = shared.NewDomainError(CodeAmountMismatch, "Amounts do not reconcile")
	ErrMissingField        = shared.NewDomainError(CodeMissingField, "Required field is empty")
	ErrInvalidIBAN         = shared.NewDomainError(CodeInvalidIBAN, "Invalid IBAN")
	ErrDuplicateReference  = shared.NewDomainError(CodeDuplicateReference, "Mandate reference already exists for this company")
	ErrInvalidMandateInput = shared.NewDomainError(CodeInvalidMandateInput, "Mandate violates a constraint")
)

// UnsupportedFlavorError reports a pain flavor outside the supported set
func UnsupportedFlavorError(flavor string) error {
	return shared.NewDomainErrorf(CodeUnsupportedFlavor,
		"Payment Type Code '%s' is not supported. The only Payment Type Codes supported for SEPA Direct Debit are %s.",
		flavor, supportedFlavorList())
}

// MissingMandateError reports a payment line without any mandate
func MissingMandateError(partner, invoiceRef string) error {
	return shared.NewDomainErrorf(CodeInvalidMandate,
		"Missing SEPA Direct Debit mandate on the payment line with partner '%s' and Invoice ref '%s'.",
		partner, invoiceRef)
}

// InvalidMandateError reports a mandate that is not in the valid state
func InvalidMandateError(reference, partner string, state MandateState) error {
	return shared.NewDomainErrorf(CodeInvalidMandate,
		"The SEPA Direct Debit mandate with reference '%s' for partner '%s' is %s and cannot be debited.",
		reference, partner, state)
}

// MandateBankMismatchError reports a line whose debtor account is not the mandate's
func MandateBankMismatchError(lineName, lineIBAN, reference, mandateIBAN string) error {
	return shared.NewDomainErrorf(CodeInvalidMandate,
		"The payment line with reference '%s' has the bank account '%s' which is not attached to the mandate '%s' (this mandate is attached to the bank account '%s').",
		lineName, lineIBAN, reference, mandateIBAN)
}

// MandateAlreadyUsedError reports a one-off mandate that has been debited before
func MandateAlreadyUsedError(reference, partner, lastDebit string) error {
	return shared.NewDomainErrorf(CodeMandateAlreadyUsed,
		"The mandate with reference '%s' for partner '%s' has type set to 'One-Off' and it has a last debit date set to '%s', so we can't use it.",
		reference, partner, lastDebit)
}

// MandateMigrationError reports a recurrent mandate whose sequence or
// migration data does not allow it to be debited
func MandateMigrationError(format string, args ...any) error {
	return shared.NewDomainErrorf(CodeMandateMigration, format, args...)
}

// AmountReconciliationError reports totals that do not add up
func AmountReconciliationError(format string, args ...any) error {
	return shared.NewDomainErrorf(CodeAmountMismatch, format, args...)
}

// MissingFieldError reports an empty required field of the document
func MissingFieldError(label string) error {
	return shared.NewDomainErrorf(CodeMissingField, "Field '%s' is empty. This field is required.", label)
}

// InvalidIBANError reports an account number that fails validation
func InvalidIBANError(label string, cause error) error {
	return shared.WrapDomainError(CodeInvalidIBAN, "Invalid IBAN for '"+label+"': "+cause.Error(), cause)
}

func invalidMandate(format string, args ...any) error {
	return shared.NewDomainErrorf(CodeInvalidMandateInput, format, args...)
}
