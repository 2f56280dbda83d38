package directdebit

import (
	"strings"
	"time"

	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/erp/directdebit/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// BankAccount is a debtor or creditor account
type BankAccount struct {
	IBAN string `gorm:"type:varchar(34)" json:"iban"`
	BIC  string `gorm:"type:varchar(11)" json:"bic"`
}

// IsZero reports whether no account is set
func (a BankAccount) IsZero() bool {
	return a.IBAN == ""
}

// SameAccount compares accounts by normalised IBAN
func (a BankAccount) SameAccount(other BankAccount) bool {
	return valueobject.NormalizeIBAN(a.IBAN) == valueobject.NormalizeIBAN(other.IBAN)
}

// SameBank reports whether both accounts are held at the same institution
func (a BankAccount) SameBank(other BankAccount) bool {
	return valueobject.BIC(a.BIC).SameInstitution(valueobject.BIC(other.BIC))
}

// Mandate is the debtor's authorisation to collect funds by direct debit
type Mandate struct {
	shared.CompanyAggregateRoot
	Reference                     string       `gorm:"type:varchar(35);not null;index"`
	PartnerName                   string       `gorm:"type:varchar(200);not null"`
	Type                          MandateType  `gorm:"type:varchar(20);not null"`
	SequenceType                  SequenceType `gorm:"type:varchar(20)"`
	State                         MandateState `gorm:"type:varchar(20);not null;default:'draft';index"`
	SignatureDate                 *time.Time   `gorm:"type:date"`
	LastDebitDate                 *time.Time   `gorm:"type:date"`
	SEPAMigrated                  bool         `gorm:"column:sepa_migrated;not null"`
	OriginalMandateIdentification string       `gorm:"type:varchar(35)"`
	BankAccount                   BankAccount  `gorm:"embedded;embeddedPrefix:debtor_"`
	PreviousBankAccount           BankAccount  `gorm:"embedded;embeddedPrefix:previous_"`
}

// TableName returns the table name for GORM
func (Mandate) TableName() string {
	return "sdd_mandates"
}

// NewMandate creates a draft mandate. Recurrent mandates start at the
// first sequence and every mandate is considered migrated to SEPA.
func NewMandate(companyID uuid.UUID, reference, partnerName string, mandateType MandateType) (*Mandate, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Mandate reference cannot be empty")
	}
	if len(reference) > 35 {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Mandate reference cannot exceed 35 characters")
	}
	if strings.TrimSpace(partnerName) == "" {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner name cannot be empty")
	}
	if !mandateType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MANDATE_TYPE", "Mandate type must be recurrent or oneoff")
	}

	m := &Mandate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Reference:            reference,
		PartnerName:          partnerName,
		State:                MandateStateDraft,
		SEPAMigrated:         true,
	}
	m.SetType(mandateType)
	return m, nil
}

// SetType changes the mandate type. Switching to recurrent starts the
// series at first, switching to one-off clears the sequence.
func (m *Mandate) SetType(mandateType MandateType) {
	m.Type = mandateType
	if mandateType == MandateTypeRecurrent {
		m.SequenceType = SequenceFirst
	} else {
		m.SequenceType = ""
	}
	m.Touch()
}

// Sign records the signature date and the debtor account
func (m *Mandate) Sign(signatureDate time.Time, account BankAccount) error {
	iban, err := valueobject.NewIBAN(account.IBAN)
	if err != nil {
		return InvalidIBANError("Debtor Account", err)
	}
	account.IBAN = iban.String()
	account.BIC = strings.ToUpper(strings.TrimSpace(account.BIC))
	m.SignatureDate = DatePtr(signatureDate)
	m.BankAccount = account
	m.Touch()
	return nil
}

// SetMigration marks the mandate as not yet migrated to SEPA. The next
// FRST debit then carries the original mandate identification.
func (m *Mandate) SetMigration(migrated bool, originalIdentification string) {
	m.SEPAMigrated = migrated
	m.OriginalMandateIdentification = strings.TrimSpace(originalIdentification)
	m.Touch()
}

// ChangeBankAccount moves the mandate to another debtor account. A valid
// recurrent mandate restarts its series at first. PreviousBankAccount holds
// the account of the last debit until an amended debit goes out: it is set
// on the first move away from a debited account, kept across further moves
// and cleared when the mandate returns to it.
func (m *Mandate) ChangeBankAccount(account BankAccount) (bool, error) {
	iban, err := valueobject.NewIBAN(account.IBAN)
	if err != nil {
		return false, InvalidIBANError("Debtor Account", err)
	}
	account.IBAN = iban.String()
	account.BIC = strings.ToUpper(strings.TrimSpace(account.BIC))
	if m.BankAccount.SameAccount(account) {
		return false, nil
	}

	switch {
	case !m.PreviousBankAccount.IsZero() && m.PreviousBankAccount.SameAccount(account):
		m.ClearPreviousBank()
	case m.PreviousBankAccount.IsZero() && !m.BankAccount.IsZero() && m.LastDebitDate != nil:
		m.PreviousBankAccount = m.BankAccount
	}
	m.BankAccount = account

	reset := false
	if m.State == MandateStateValid && m.Type == MandateTypeRecurrent && m.SequenceType != SequenceFirst {
		from := m.SequenceType
		m.SequenceType = SequenceFirst
		m.AddDomainEvent(NewMandateSequenceChangedEvent(m, from))
		reset = true
	}
	m.Touch()
	m.IncrementVersion()
	return reset, nil
}

// SetSequenceType sets the sequence for the next debit of a recurrent mandate
func (m *Mandate) SetSequenceType(seq SequenceType) error {
	if m.Type != MandateTypeRecurrent {
		return shared.NewDomainError("INVALID_SEQUENCE", "Only recurrent mandates have a sequence type")
	}
	if !seq.IsValid() {
		return shared.NewDomainError("INVALID_SEQUENCE", "Sequence type must be first, recurring or final")
	}
	if seq == m.SequenceType {
		return nil
	}
	from := m.SequenceType
	m.SequenceType = seq
	m.AddDomainEvent(NewMandateSequenceChangedEvent(m, from))
	m.Touch()
	return nil
}

// Validate moves a draft mandate to valid after checking its constraints
func (m *Mandate) Validate(today time.Time) error {
	if m.State != MandateStateDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "Mandate '%s' should be in draft state", m.Reference)
	}
	m.State = MandateStateValid
	if err := m.Check(today); err != nil {
		m.State = MandateStateDraft
		return err
	}
	m.Touch()
	m.IncrementVersion()
	m.AddDomainEvent(NewMandateValidatedEvent(m))
	return nil
}

// Cancel marks the mandate as cancelled by the debtor
func (m *Mandate) Cancel() error {
	if m.State != MandateStateDraft && m.State != MandateStateValid {
		return shared.NewDomainErrorf("INVALID_STATE", "Mandate '%s' should be in draft or valid state", m.Reference)
	}
	m.State = MandateStateCancel
	m.Touch()
	m.IncrementVersion()
	m.AddDomainEvent(NewMandateCancelledEvent(m))
	return nil
}

// BackToDraft reopens a cancelled mandate
func (m *Mandate) BackToDraft() error {
	if m.State != MandateStateCancel {
		return shared.NewDomainErrorf("INVALID_STATE", "Mandate '%s' should be in cancel state", m.Reference)
	}
	m.State = MandateStateDraft
	m.Touch()
	m.IncrementVersion()
	return nil
}

// Expire marks a mandate as no longer usable
func (m *Mandate) Expire(reason string) {
	if m.State == MandateStateExpired {
		return
	}
	m.State = MandateStateExpired
	m.Touch()
	m.IncrementVersion()
	m.AddDomainEvent(NewMandateExpiredEvent(m, reason))
}

// IsUsable reports whether the mandate may be referenced by a payment line
func (m *Mandate) IsUsable() bool {
	return m.State == MandateStateValid
}

// Check enforces the mandate constraints
func (m *Mandate) Check(today time.Time) error {
	if m.SignatureDate != nil && DateOf(*m.SignatureDate).After(DateOf(today)) {
		return invalidMandate("The date of signature of mandate '%s' is in the future !", m.Reference)
	}
	if m.State == MandateStateValid && m.SignatureDate == nil {
		return invalidMandate("Cannot validate the mandate '%s' without a date of signature.", m.Reference)
	}
	if m.State == MandateStateValid && m.BankAccount.IsZero() {
		return invalidMandate("Cannot validate the mandate '%s' because it is not attached to a bank account.", m.Reference)
	}
	if m.SignatureDate != nil && m.LastDebitDate != nil && DateOf(*m.SignatureDate).After(DateOf(*m.LastDebitDate)) {
		return invalidMandate("The mandate '%s' can't have a date of last debit before the date of signature.", m.Reference)
	}
	if m.Type == MandateTypeRecurrent {
		if err := m.checkRecurrent(); err != nil {
			return invalidMandate("%s", err.Error())
		}
	}
	return nil
}

// checkRecurrent validates the sequence and migration data of a recurrent mandate
func (m *Mandate) checkRecurrent() error {
	if m.SequenceType == "" {
		return MandateMigrationError("The recurrent mandate '%s' must have a sequence type.", m.Reference)
	}
	if !m.SEPAMigrated && m.SequenceType != SequenceFirst {
		return MandateMigrationError("The recurrent mandate '%s' which is not marked as 'Migrated to SEPA' must have its recurrent sequence type set to 'First'.", m.Reference)
	}
	if !m.SEPAMigrated && m.OriginalMandateIdentification == "" {
		return MandateMigrationError("You must set the 'Original Mandate Identification' on the recurrent mandate '%s' which is not marked as 'Migrated to SEPA'.", m.Reference)
	}
	return nil
}

// SequenceCode maps the mandate history to the ISO sequence code of its
// next debit
func (m *Mandate) SequenceCode() (SequenceCode, error) {
	switch m.Type {
	case MandateTypeOneOff:
		if m.LastDebitDate != nil {
			return "", MandateAlreadyUsedError(m.Reference, m.PartnerName, m.LastDebitDate.Format("2006-01-02"))
		}
		return CodeOneOff, nil
	case MandateTypeRecurrent:
		if err := m.checkRecurrent(); err != nil {
			return "", err
		}
		switch m.SequenceType {
		case SequenceFirst:
			return CodeFirst, nil
		case SequenceRecurring:
			return CodeRecurring, nil
		case SequenceFinal:
			return CodeFinal, nil
		}
		return "", MandateMigrationError("The recurrent mandate '%s' has an unknown sequence type '%s'.", m.Reference, m.SequenceType)
	}
	return "", shared.NewDomainErrorf("INVALID_MANDATE_TYPE", "Mandate '%s' has unknown type '%s'", m.Reference, m.Type)
}

// NeedsAmendment reports whether a FRST debit on this mandate must carry
// amendment details
func (m *Mandate) NeedsAmendment() bool {
	return m.LastDebitDate != nil || !m.SEPAMigrated
}

// PreviousBank returns the account the mandate was debited from before it
// moved to current
func (m *Mandate) PreviousBank(current BankAccount) (BankAccount, bool) {
	prev := m.PreviousBankAccount
	if prev.IsZero() || prev.SameAccount(current) {
		return BankAccount{}, false
	}
	return prev, true
}

// ClearPreviousBank forgets the previous account once an amended debit went out
func (m *Mandate) ClearPreviousBank() {
	m.PreviousBankAccount = BankAccount{}
}

// MandateSet indexes mandates by id
type MandateSet map[uuid.UUID]*Mandate

// NewMandateSet builds a set from a slice
func NewMandateSet(mandates ...*Mandate) MandateSet {
	set := make(MandateSet, len(mandates))
	for _, m := range mandates {
		set[m.ID] = m
	}
	return set
}

// Get returns the mandate referenced by a line, or nil
func (s MandateSet) Get(id *uuid.UUID) *Mandate {
	if id == nil {
		return nil
	}
	return s[*id]
}
