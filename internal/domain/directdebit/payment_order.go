package directdebit

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderState is the workflow state of a payment order
type OrderState string

const (
	OrderStateDraft  OrderState = "draft"
	OrderStateOpen   OrderState = "open"
	OrderStateDone   OrderState = "done"
	OrderStateCancel OrderState = "cancel"
)

// DefaultSplitCount is the number of lines kept per order when splitting
const DefaultSplitCount = 3000

// PaymentMode describes the creditor side and file format of an order
type PaymentMode struct {
	Flavor         Flavor      `gorm:"type:varchar(20);not null"`
	ConvertToASCII bool        `gorm:"not null"`
	CreditorName   string      `gorm:"type:varchar(140);not null"`
	CreditorBank   BankAccount `gorm:"embedded;embeddedPrefix:creditor_"`
}

// CompanyProfile carries the company identifiers printed in the file
type CompanyProfile struct {
	Name                       string `gorm:"type:varchar(140)"`
	InitiatingPartyIdentifier  string `gorm:"type:varchar(35)"`
	CreditorIdentifier         string `gorm:"type:varchar(35)"`
	OriginalCreditorIdentifier string `gorm:"type:varchar(35)"`
}

// PaymentLine is one direct debit on a payment order
type PaymentLine struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OrderID           uuid.UUID         `gorm:"type:uuid;not null;index"`
	Position          int               `gorm:"not null"`
	Name              string            `gorm:"type:varchar(35);not null"`
	Amount            decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	Currency          string            `gorm:"type:varchar(3);not null"`
	Date              *time.Time        `gorm:"type:date"`
	MaturityDate      *time.Time        `gorm:"type:date"`
	Priority          Priority          `gorm:"type:varchar(4);not null"`
	Communication     string            `gorm:"type:varchar(140)"`
	CommunicationType CommunicationType `gorm:"type:varchar(20);not null"`
	StructIssuer      string            `gorm:"type:varchar(35)"`
	MandateID         *uuid.UUID        `gorm:"type:uuid;index"`
	PartnerName       string            `gorm:"type:varchar(200)"`
	InvoiceRef        string            `gorm:"type:varchar(64)"`
	Debtor            BankAccount       `gorm:"embedded;embeddedPrefix:debtor_"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for GORM
func (PaymentLine) TableName() string {
	return "sdd_payment_lines"
}

// NewPaymentLine creates a line with normal priority and free text
// communication
func NewPaymentLine(name string, amount decimal.Decimal, currency string) (*PaymentLine, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_LINE", "Payment line name cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment line amount must be positive")
	}
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3 letter ISO code")
	}
	now := time.Now()
	return &PaymentLine{
		ID:                uuid.New(),
		Name:              name,
		Amount:            amount.Round(2),
		Currency:          strings.ToUpper(currency),
		Priority:          PriorityNormal,
		CommunicationType: CommunicationNormal,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// AttachMandate links the line to a mandate and its debtor account
func (l *PaymentLine) AttachMandate(m *Mandate) {
	id := m.ID
	l.MandateID = &id
	l.PartnerName = m.PartnerName
	l.Debtor = m.BankAccount
}

// PaymentOrder is a batch of direct debit lines collected together
type PaymentOrder struct {
	shared.CompanyAggregateRoot
	Reference      string          `gorm:"type:varchar(64);not null;index"`
	State          OrderState      `gorm:"type:varchar(20);not null;default:'draft';index"`
	DatePreference DatePreference  `gorm:"type:varchar(10);not null"`
	ScheduledDate  *time.Time      `gorm:"type:date"`
	Total          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Mode           PaymentMode     `gorm:"embedded;embeddedPrefix:mode_"`
	Company        CompanyProfile  `gorm:"embedded;embeddedPrefix:company_"`
	ToProcess      bool            `gorm:"not null;index"`
	PostJobID      string          `gorm:"type:varchar(64)"`
	DateSent       *time.Time      `gorm:"type:date"`
	Lines          []PaymentLine   `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentOrder) TableName() string {
	return "sdd_payment_orders"
}

// NewPaymentOrder creates a draft order
func NewPaymentOrder(companyID uuid.UUID, reference string, mode PaymentMode, company CompanyProfile, pref DatePreference) (*PaymentOrder, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Payment order reference cannot be empty")
	}
	if _, ok := flavorProfiles[mode.Flavor]; !ok {
		return nil, UnsupportedFlavorError(string(mode.Flavor))
	}
	switch pref {
	case DatePreferenceDue, DatePreferenceFixed, DatePreferenceNow:
	default:
		return nil, shared.NewDomainError("INVALID_DATE_PREFERENCE", "Date preference must be due, fixed or now")
	}
	return &PaymentOrder{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Reference:            reference,
		State:                OrderStateDraft,
		DatePreference:       pref,
		Total:                decimal.Zero,
		Mode:                 mode,
		Company:              company,
	}, nil
}

// AddLine appends a line and updates the order total
func (o *PaymentOrder) AddLine(line *PaymentLine) error {
	if o.State != OrderStateDraft && o.State != OrderStateOpen {
		return shared.NewDomainError("INVALID_STATE", "Lines can only be added to draft or open orders")
	}
	line.OrderID = o.ID
	line.Position = len(o.Lines) + 1
	o.Lines = append(o.Lines, *line)
	o.RecomputeTotal()
	o.Touch()
	return nil
}

// RecomputeTotal sets the order total to the sum of its lines
func (o *PaymentOrder) RecomputeTotal() {
	o.Total = o.LinesTotal()
}

// LinesTotal sums the line amounts
func (o *PaymentOrder) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Lines {
		total = total.Add(o.Lines[i].Amount)
	}
	return total
}

// Schedule fixes the collection date used with the fixed preference
func (o *PaymentOrder) Schedule(date time.Time) {
	o.ScheduledDate = DatePtr(date)
	o.Touch()
}

// RequestedDate resolves the collection date of a line
func (o *PaymentOrder) RequestedDate(line *PaymentLine, today time.Time) time.Time {
	switch o.DatePreference {
	case DatePreferenceDue:
		if line.MaturityDate != nil {
			return DateOf(*line.MaturityDate)
		}
	case DatePreferenceFixed:
		if o.ScheduledDate != nil {
			return DateOf(*o.ScheduledDate)
		}
	}
	return DateOf(today)
}

// Confirm opens a draft order for export
func (o *PaymentOrder) Confirm() error {
	if o.State != OrderStateDraft {
		return shared.NewDomainErrorf("INVALID_STATE", "Payment order '%s' should be in draft state", o.Reference)
	}
	if len(o.Lines) == 0 {
		return shared.NewDomainErrorf("INVALID_STATE", "Payment order '%s' has no lines", o.Reference)
	}
	o.State = OrderStateOpen
	o.Touch()
	o.IncrementVersion()
	return nil
}

// MarkDone records that the order's file was sent
func (o *PaymentOrder) MarkDone(dateSent time.Time) error {
	if o.State != OrderStateOpen {
		return shared.NewDomainErrorf("INVALID_STATE", "Payment order '%s' should be open to be marked done", o.Reference)
	}
	o.State = OrderStateDone
	o.DateSent = DatePtr(dateSent)
	o.Touch()
	o.IncrementVersion()
	return nil
}

// Cancel cancels an order that has not been sent
func (o *PaymentOrder) Cancel() error {
	if o.State == OrderStateDone || o.State == OrderStateCancel {
		return shared.NewDomainErrorf("INVALID_STATE", "Payment order '%s' cannot be cancelled in state %s", o.Reference, o.State)
	}
	o.State = OrderStateCancel
	o.Touch()
	o.IncrementVersion()
	return nil
}

// MarkForProcessing flags the order for delayed batch processing
func (o *PaymentOrder) MarkForProcessing() {
	o.ToProcess = true
	o.Touch()
}

// AssignJob stores the id of the job that will process the order
func (o *PaymentOrder) AssignJob(jobID string) {
	o.PostJobID = jobID
	o.Touch()
}

// UnmarkForProcessing clears the processing flag. The job id is kept so
// the pending job can still be found and cancelled.
func (o *PaymentOrder) UnmarkForProcessing() {
	o.ToProcess = false
	o.Touch()
}

// Split keeps the first splitCount lines on the order and moves every
// following chunk of splitCount lines to a copy of the order. The copies
// are returned in line order and get the reference suffixes -2, -3 and so on.
func (o *PaymentOrder) Split(splitCount int) ([]*PaymentOrder, error) {
	if splitCount <= 0 {
		return nil, shared.NewDomainError("INVALID_SPLIT_COUNT", "Split count must be positive")
	}
	if o.State == OrderStateDone || o.State == OrderStateCancel {
		return nil, shared.NewDomainErrorf("INVALID_STATE", "Payment order '%s' cannot be split in state %s", o.Reference, o.State)
	}
	if len(o.Lines) <= splitCount {
		return nil, nil
	}

	rest := o.Lines[splitCount:]
	o.Lines = o.Lines[:splitCount]
	o.RecomputeTotal()
	o.Touch()

	var copies []*PaymentOrder
	for start := 0; start < len(rest); start += splitCount {
		end := min(start+splitCount, len(rest))
		cp := o.copyHeader(fmt.Sprintf("%s-%d", o.Reference, len(copies)+2))
		for i := range rest[start:end] {
			line := rest[start+i]
			line.OrderID = cp.ID
			line.Position = i + 1
			cp.Lines = append(cp.Lines, line)
		}
		cp.RecomputeTotal()
		copies = append(copies, cp)
	}
	return copies, nil
}

// copyHeader duplicates the order without lines, job or processing state
func (o *PaymentOrder) copyHeader(reference string) *PaymentOrder {
	cp := &PaymentOrder{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(o.CompanyID),
		Reference:            reference,
		State:                OrderStateDraft,
		DatePreference:       o.DatePreference,
		Total:                decimal.Zero,
		Mode:                 o.Mode,
		Company:              o.Company,
	}
	if o.ScheduledDate != nil {
		d := *o.ScheduledDate
		cp.ScheduledDate = &d
	}
	return cp
}
