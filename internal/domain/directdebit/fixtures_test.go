package directdebit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testToday     = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) // Monday
	testNow       = time.Date(2025, 3, 3, 9, 30, 15, 0, time.UTC)
	testSignature = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	testCompanyID = uuid.MustParse("6f1c9d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f")

	abnAccount   = BankAccount{IBAN: "NL91ABNA0417164300", BIC: "ABNANL2A"}
	abnAccount2  = BankAccount{IBAN: "NL02ABNA0123456789", BIC: "ABNANL2A"}
	ingAccount   = BankAccount{IBAN: "NL20INGB0001234567", BIC: "INGBNL2A"}
	creditorBank = BankAccount{IBAN: "NL39RABO0300065264", BIC: "RABONL2U"}
)

func testMode(flavor Flavor) PaymentMode {
	return PaymentMode{
		Flavor:         flavor,
		ConvertToASCII: true,
		CreditorName:   "Stichting Voorbeeld",
		CreditorBank:   creditorBank,
	}
}

func testCompany() CompanyProfile {
	return CompanyProfile{
		Name:                       "Stichting Voorbeeld",
		InitiatingPartyIdentifier:  "12345678",
		CreditorIdentifier:         "NL98ZZZ999999999999",
		OriginalCreditorIdentifier: "NL12ZZZ111111110000",
	}
}

func createTestMandate(t *testing.T, reference string, mandateType MandateType) *Mandate {
	t.Helper()
	m, err := NewMandate(testCompanyID, reference, "Jan de Vries", mandateType)
	require.NoError(t, err)
	require.NoError(t, m.Sign(testSignature, abnAccount))
	return m
}

func createValidMandate(t *testing.T, reference string, mandateType MandateType) *Mandate {
	t.Helper()
	m := createTestMandate(t, reference, mandateType)
	require.NoError(t, m.Validate(testToday))
	return m
}

func createRecurringMandate(t *testing.T, reference string, seq SequenceType) *Mandate {
	t.Helper()
	m := createValidMandate(t, reference, MandateTypeRecurrent)
	require.NoError(t, m.SetSequenceType(seq))
	if seq != SequenceFirst {
		m.LastDebitDate = DatePtr(testSignature.AddDate(0, 1, 0))
	}
	return m
}

func createTestOrder(t *testing.T, reference string, pref DatePreference) *PaymentOrder {
	t.Helper()
	o, err := NewPaymentOrder(testCompanyID, reference, testMode(FlavorPain00800102), testCompany(), pref)
	require.NoError(t, err)
	return o
}

// addTestLine attaches a line for m to the order. A non-nil maturity is
// used by the due date preference.
func addTestLine(t *testing.T, o *PaymentOrder, m *Mandate, name, amount string, maturity *time.Time) *PaymentLine {
	t.Helper()
	line, err := NewPaymentLine(name, decimal.RequireFromString(amount), "EUR")
	require.NoError(t, err)
	line.AttachMandate(m)
	line.Communication = "Contribution " + name
	line.InvoiceRef = "INV/" + name
	line.MaturityDate = maturity
	require.NoError(t, o.AddLine(line))
	return &o.Lines[len(o.Lines)-1]
}
