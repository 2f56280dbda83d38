package batchfile

import (
	"fmt"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/google/uuid"
)

// MandateResult is the outcome of checking one mandate of a file
type MandateResult struct {
	Reference string
	Mandate   *directdebit.Mandate
	Err       error
}

// CheckMandates turns every mandate entry into a domain mandate and checks its
// constraints. Invalid entries are reported with their error instead of
// stopping at the first one.
func (f *File) CheckMandates(companyID uuid.UUID, today time.Time) []MandateResult {
	results := make([]MandateResult, 0, len(f.Mandates))
	for _, entry := range f.Mandates {
		m, err := entry.toDomain(companyID, today)
		results = append(results, MandateResult{Reference: entry.Reference, Mandate: m, Err: err})
	}
	return results
}

func (e Mandate) toDomain(companyID uuid.UUID, today time.Time) (*directdebit.Mandate, error) {
	m, err := directdebit.NewMandate(companyID, e.Reference, e.PartnerName, directdebit.MandateType(e.Type))
	if err != nil {
		return nil, err
	}
	account := directdebit.BankAccount{IBAN: e.IBAN, BIC: e.BIC}
	if e.SignatureDate.Ptr() != nil {
		err = m.Sign(e.SignatureDate.Time, account)
	} else {
		_, err = m.ChangeBankAccount(account)
	}
	if err != nil {
		return nil, err
	}
	if e.PreviousIBAN != "" {
		m.PreviousBankAccount = directdebit.BankAccount{IBAN: e.PreviousIBAN, BIC: e.PreviousBIC}
	}

	if e.SequenceType != "" {
		if err := m.SetSequenceType(directdebit.SequenceType(e.SequenceType)); err != nil {
			return nil, err
		}
	}
	if e.SEPAMigrated != nil && !*e.SEPAMigrated {
		m.SetMigration(false, e.OriginalMandateIdentification)
	}
	m.LastDebitDate = e.LastDebitDate.Ptr()

	switch directdebit.MandateState(e.State) {
	case directdebit.MandateStateValid:
		err = m.Validate(today)
	case directdebit.MandateStateCancel:
		err = m.Cancel()
	case directdebit.MandateStateExpired:
		m.Expire("imported as expired")
	default:
		err = m.Check(today)
	}
	if err != nil {
		return nil, err
	}
	m.ClearDomainEvents()
	return m, nil
}

// Batch converts the file into the input of the file builder. The company
// id of the file is used when set. Lines are attached to their mandates
// and the order is confirmed.
func (f *File) Batch(today time.Time) (directdebit.Batch, error) {
	companyID := f.CompanyID()

	mandates := make(directdebit.MandateSet, len(f.Mandates))
	byRef := make(map[string]*directdebit.Mandate, len(f.Mandates))
	for _, r := range f.CheckMandates(companyID, today) {
		if r.Err != nil {
			return directdebit.Batch{}, fmt.Errorf("mandate %s: %w", r.Reference, r.Err)
		}
		mandates[r.Mandate.ID] = r.Mandate
		byRef[r.Reference] = r.Mandate
	}

	order, err := f.order(companyID, byRef)
	if err != nil {
		return directdebit.Batch{}, err
	}
	return directdebit.Batch{Orders: []*directdebit.PaymentOrder{order}, Mandates: mandates}, nil
}

func (f *File) order(companyID uuid.UUID, mandates map[string]*directdebit.Mandate) (*directdebit.PaymentOrder, error) {
	flavor := directdebit.FlavorPain00800102
	if f.Order.Flavor != "" {
		parsed, err := directdebit.ParseFlavor(f.Order.Flavor)
		if err != nil {
			return nil, err
		}
		flavor = parsed
	}
	toASCII := true
	if f.Order.ConvertToASCII != nil {
		toASCII = *f.Order.ConvertToASCII
	}
	mode := directdebit.PaymentMode{
		Flavor:         flavor,
		ConvertToASCII: toASCII,
		CreditorName:   f.Company.Name,
		CreditorBank:   directdebit.BankAccount{IBAN: f.Company.IBAN, BIC: f.Company.BIC},
	}
	company := directdebit.CompanyProfile{
		Name:                       f.Company.Name,
		InitiatingPartyIdentifier:  f.Company.InitiatingPartyIdentifier,
		CreditorIdentifier:         f.Company.CreditorIdentifier,
		OriginalCreditorIdentifier: f.Company.OriginalCreditorIdentifier,
	}

	order, err := directdebit.NewPaymentOrder(companyID, f.Order.Reference, mode, company, directdebit.DatePreference(f.Order.DatePreference))
	if err != nil {
		return nil, err
	}
	if d := f.Order.ScheduledDate.Ptr(); d != nil {
		order.Schedule(*d)
	}

	for i, in := range f.Lines {
		line, err := directdebit.NewPaymentLine(in.Name, in.Amount, in.Currency)
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", i, err)
		}
		m, ok := mandates[in.Mandate]
		if !ok {
			return nil, fmt.Errorf("lines[%d]: unknown mandate %q", i, in.Mandate)
		}
		line.AttachMandate(m)
		line.Date = in.Date.Ptr()
		line.MaturityDate = in.MaturityDate.Ptr()
		line.Communication = in.Communication
		line.StructIssuer = in.StructIssuer
		line.InvoiceRef = in.InvoiceRef
		if in.Priority != "" {
			line.Priority = directdebit.Priority(in.Priority)
		}
		if in.CommunicationType != "" {
			line.CommunicationType = directdebit.CommunicationType(in.CommunicationType)
		}
		if err := order.AddLine(line); err != nil {
			return nil, err
		}
	}
	if err := order.Confirm(); err != nil {
		return nil, err
	}
	return order, nil
}
