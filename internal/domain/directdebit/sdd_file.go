package directdebit

import (
	"time"

	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FileState is the lifecycle state of a generated file
type FileState string

const (
	FileStateDraft FileState = "draft"
	FileStateSent  FileState = "sent"
	FileStateDone  FileState = "done"
)

// Label returns the display label of the state
func (s FileState) Label() string {
	switch s {
	case FileStateDraft:
		return "Draft"
	case FileStateSent:
		return "Sent"
	case FileStateDone:
		return "Reconciled"
	}
	return string(s)
}

// SddFileOrder links a generated file to the orders it contains
type SddFileOrder struct {
	FileID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentOrderID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position       int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SddFileOrder) TableName() string {
	return "sdd_file_orders"
}

// SddFileMandate records the sequence a mandate was billed under in a file
type SddFileMandate struct {
	FileID    uuid.UUID    `gorm:"type:uuid;primaryKey"`
	MandateID uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Sequence  SequenceCode `gorm:"type:varchar(4);not null"`
}

// TableName returns the table name for GORM
func (SddFileMandate) TableName() string {
	return "sdd_file_mandates"
}

// SddFile is a generated pain.008 document and its bookkeeping totals
type SddFile struct {
	shared.CompanyAggregateRoot
	Filename       string          `gorm:"type:varchar(256);not null"`
	Content        []byte          `gorm:"not null"`
	StorageKey     string          `gorm:"type:varchar(512)"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	NbTransactions int             `gorm:"not null"`
	Flavor         Flavor          `gorm:"type:varchar(20);not null"`
	ChargeBearer   ChargeBearer    `gorm:"type:varchar(4);not null"`
	BatchBooking   bool            `gorm:"not null"`
	State          FileState       `gorm:"type:varchar(10);not null;default:'draft';index"`
	SentAt         *time.Time
	Orders         []SddFileOrder   `gorm:"foreignKey:FileID;references:ID"`
	Mandates       []SddFileMandate `gorm:"foreignKey:FileID;references:ID"`
}

// TableName returns the table name for GORM
func (SddFile) TableName() string {
	return "sdd_files"
}

// newSddFile creates a draft file for the given orders
func newSddFile(orders []*PaymentOrder, content []byte, total decimal.Decimal, nb int, opts BuildOptions, billed []SddFileMandate) *SddFile {
	f := &SddFile{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(orders[0].CompanyID),
		Filename:             FileName(orders[0].Reference),
		Content:              content,
		TotalAmount:          total,
		NbTransactions:       nb,
		Flavor:               orders[0].Mode.Flavor,
		ChargeBearer:         opts.ChargeBearer,
		BatchBooking:         opts.BatchBooking,
		State:                FileStateDraft,
	}
	for i, o := range orders {
		f.Orders = append(f.Orders, SddFileOrder{FileID: f.ID, PaymentOrderID: o.ID, Position: i})
	}
	for _, b := range billed {
		b.FileID = f.ID
		f.Mandates = append(f.Mandates, b)
	}
	f.AddDomainEvent(NewSddFileGeneratedEvent(f))
	return f
}

// OrderIDs returns the ids of the orders in the file, in file order
func (f *SddFile) OrderIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(f.Orders))
	for _, o := range f.Orders {
		ids = append(ids, o.PaymentOrderID)
	}
	return ids
}

// BilledSequences returns the sequence each mandate was billed under
func (f *SddFile) BilledSequences() BilledSequences {
	billed := make(BilledSequences, len(f.Mandates))
	for _, m := range f.Mandates {
		billed[m.MandateID] = m.Sequence
	}
	return billed
}

// MarkSent records that the file was handed to the bank
func (f *SddFile) MarkSent(at time.Time) error {
	if f.State != FileStateDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "File '%s' is %s and cannot be sent again", f.Filename, f.State.Label())
	}
	f.State = FileStateSent
	f.SentAt = &at
	f.Touch()
	f.IncrementVersion()
	f.AddDomainEvent(NewSddFileSentEvent(f))
	return nil
}

// MarkReconciled records that the bank statement matched the file
func (f *SddFile) MarkReconciled() error {
	if f.State != FileStateSent {
		return shared.NewDomainErrorf("INVALID_STATE", "File '%s' must be sent before it is reconciled", f.Filename)
	}
	f.State = FileStateDone
	f.Touch()
	f.IncrementVersion()
	return nil
}

// CanCancel reports whether the file may still be dropped
func (f *SddFile) CanCancel() bool {
	return f.State == FileStateDraft
}
