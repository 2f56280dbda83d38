package directdebit

import (
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateFileInput selects the orders and export settings of a new file
type CreateFileInput struct {
	OrderIDs     []uuid.UUID
	Flavor       string
	ChargeBearer directdebit.ChargeBearer
	BatchBooking *bool
}

// ExportDefaults are the settings used when CreateFileInput leaves them empty
type ExportDefaults struct {
	ChargeBearer directdebit.ChargeBearer
	BatchBooking bool
}

// GroupResponse describes one payment information block of a file
type GroupResponse struct {
	ID            string    `json:"id"`
	RequestedDate time.Time `json:"requested_date"`
	Priority      string    `json:"priority"`
	SequenceType  string    `json:"sequence_type"`
	NbOfTxs       int       `json:"nb_of_txs"`
	ControlSum    string    `json:"control_sum"`
}

// FileResponse is the view of a generated file
type FileResponse struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Filename       string          `json:"filename"`
	State          string          `json:"state"`
	StateLabel     string          `json:"state_label"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	NbTransactions int             `json:"nb_transactions"`
	Flavor         string          `json:"flavor"`
	ChargeBearer   string          `json:"charge_bearer"`
	BatchBooking   bool            `json:"batch_booking"`
	OrderIDs       []uuid.UUID     `json:"order_ids"`
	StorageKey     string          `json:"storage_key,omitempty"`
	SentAt         *time.Time      `json:"sent_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Groups         []GroupResponse `json:"groups,omitempty"`
	DateChanges    int             `json:"date_changes"`
}

// ToFileResponse converts a file to its view
func ToFileResponse(f *directdebit.SddFile) *FileResponse {
	return &FileResponse{
		ID:             f.ID,
		CompanyID:      f.CompanyID,
		Filename:       f.Filename,
		State:          string(f.State),
		StateLabel:     f.State.Label(),
		TotalAmount:    f.TotalAmount,
		NbTransactions: f.NbTransactions,
		Flavor:         string(f.Flavor),
		ChargeBearer:   string(f.ChargeBearer),
		BatchBooking:   f.BatchBooking,
		OrderIDs:       f.OrderIDs(),
		StorageKey:     f.StorageKey,
		SentAt:         f.SentAt,
		CreatedAt:      f.CreatedAt,
	}
}

func toGroupResponses(groups []directdebit.GroupSummary) []GroupResponse {
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupResponse{
			ID:            g.ID,
			RequestedDate: g.Key.RequestedDate,
			Priority:      string(g.Key.Priority),
			SequenceType:  string(g.Key.Sequence),
			NbOfTxs:       g.NbOfTxs,
			ControlSum:    g.ControlSum.StringFixedBank(2),
		})
	}
	return out
}

// BankAccountInput is an IBAN with an optional BIC
type BankAccountInput struct {
	IBAN string `json:"iban" binding:"required,min=15,max=42"`
	BIC  string `json:"bic" binding:"omitempty,min=8,max=11"`
}

func (b BankAccountInput) toDomain() directdebit.BankAccount {
	return directdebit.BankAccount{IBAN: b.IBAN, BIC: b.BIC}
}

// CreateMandateInput holds the data of a new mandate
type CreateMandateInput struct {
	CompanyID                     uuid.UUID        `json:"company_id" binding:"required"`
	Reference                     string           `json:"reference" binding:"required,max=35"`
	PartnerName                   string           `json:"partner_name" binding:"required,max=200"`
	Type                          string           `json:"type" binding:"required,oneof=recurrent oneoff"`
	SignatureDate                 *time.Time       `json:"signature_date"`
	BankAccount                   BankAccountInput `json:"bank_account" binding:"required"`
	SEPAMigrated                  *bool            `json:"sepa_migrated"`
	OriginalMandateIdentification string           `json:"original_mandate_identification" binding:"max=35"`
}

// MandateResponse is the view of a mandate
type MandateResponse struct {
	ID                            uuid.UUID  `json:"id"`
	CompanyID                     uuid.UUID  `json:"company_id"`
	Reference                     string     `json:"reference"`
	PartnerName                   string     `json:"partner_name"`
	Type                          string     `json:"type"`
	SequenceType                  string     `json:"sequence_type,omitempty"`
	State                         string     `json:"state"`
	SignatureDate                 *time.Time `json:"signature_date,omitempty"`
	LastDebitDate                 *time.Time `json:"last_debit_date,omitempty"`
	SEPAMigrated                  bool       `json:"sepa_migrated"`
	OriginalMandateIdentification string     `json:"original_mandate_identification,omitempty"`
	IBAN                          string     `json:"iban"`
	BIC                           string     `json:"bic,omitempty"`
	PreviousIBAN                  string     `json:"previous_iban,omitempty"`
	Version                       int        `json:"version"`
	UpdatedAt                     time.Time  `json:"updated_at"`
}

// ToMandateResponse converts a mandate to its view
func ToMandateResponse(m *directdebit.Mandate) *MandateResponse {
	return &MandateResponse{
		ID:                            m.ID,
		CompanyID:                     m.CompanyID,
		Reference:                     m.Reference,
		PartnerName:                   m.PartnerName,
		Type:                          string(m.Type),
		SequenceType:                  string(m.SequenceType),
		State:                         string(m.State),
		SignatureDate:                 m.SignatureDate,
		LastDebitDate:                 m.LastDebitDate,
		SEPAMigrated:                  m.SEPAMigrated,
		OriginalMandateIdentification: m.OriginalMandateIdentification,
		IBAN:                          m.BankAccount.IBAN,
		BIC:                           m.BankAccount.BIC,
		PreviousIBAN:                  m.PreviousBankAccount.IBAN,
		Version:                       m.Version,
		UpdatedAt:                     m.UpdatedAt,
	}
}

// PaymentModeInput describes the creditor side of an order
type PaymentModeInput struct {
	Flavor         string           `json:"flavor"`
	ConvertToASCII *bool            `json:"convert_to_ascii"`
	CreditorName   string           `json:"creditor_name" binding:"required,max=140"`
	CreditorBank   BankAccountInput `json:"creditor_bank" binding:"required"`
}

// CompanyInput carries the company identifiers printed in the file
type CompanyInput struct {
	Name                       string `json:"name" yaml:"name" binding:"max=140"`
	InitiatingPartyIdentifier  string `json:"initiating_party_identifier" yaml:"initiating_party_identifier" binding:"max=35"`
	CreditorIdentifier         string `json:"creditor_identifier" yaml:"creditor_identifier" binding:"required,max=35"`
	OriginalCreditorIdentifier string `json:"original_creditor_identifier" yaml:"original_creditor_identifier" binding:"max=35"`
}

// LineInput is one direct debit of a new order
type LineInput struct {
	Name              string          `json:"name" binding:"required,max=35"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Currency          string          `json:"currency" binding:"required,len=3"`
	MaturityDate      *time.Time      `json:"maturity_date"`
	Priority          string          `json:"priority" binding:"omitempty,oneof=NORM HIGH"`
	Communication     string          `json:"communication" binding:"required,max=140"`
	CommunicationType string          `json:"communication_type" binding:"omitempty,oneof=normal structured"`
	StructIssuer      string          `json:"struct_issuer" binding:"omitempty,oneof=ISO CUR"`
	MandateID         uuid.UUID       `json:"mandate_id" binding:"required"`
	InvoiceRef        string          `json:"invoice_ref" binding:"max=64"`
}

// CreateOrderInput holds the data of a new payment order
type CreateOrderInput struct {
	CompanyID      uuid.UUID        `json:"company_id" binding:"required"`
	Reference      string           `json:"reference" binding:"required,max=64"`
	DatePreference string           `json:"date_preference" binding:"required,oneof=due fixed now"`
	ScheduledDate  *time.Time       `json:"scheduled_date"`
	Mode           PaymentModeInput `json:"mode" binding:"required"`
	Company        CompanyInput     `json:"company" binding:"required"`
	Lines          []LineInput      `json:"lines" binding:"required,min=1,dive"`
}

// LineResponse is the view of a payment line
type LineResponse struct {
	ID           uuid.UUID       `json:"id"`
	Position     int             `json:"position"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Date         *time.Time      `json:"date,omitempty"`
	MaturityDate *time.Time      `json:"maturity_date,omitempty"`
	Priority     string          `json:"priority"`
	MandateID    *uuid.UUID      `json:"mandate_id,omitempty"`
	PartnerName  string          `json:"partner_name"`
	InvoiceRef   string          `json:"invoice_ref,omitempty"`
}

// OrderResponse is the view of a payment order
type OrderResponse struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Reference      string          `json:"reference"`
	State          string          `json:"state"`
	DatePreference string          `json:"date_preference"`
	ScheduledDate  *time.Time      `json:"scheduled_date,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Flavor         string          `json:"flavor"`
	ToProcess      bool            `json:"to_process"`
	PostJobID      string          `json:"post_job_id,omitempty"`
	DateSent       *time.Time      `json:"date_sent,omitempty"`
	Lines          []LineResponse  `json:"lines,omitempty"`
}

// ToOrderResponse converts an order to its view
func ToOrderResponse(o *directdebit.PaymentOrder) *OrderResponse {
	resp := &OrderResponse{
		ID:             o.ID,
		CompanyID:      o.CompanyID,
		Reference:      o.Reference,
		State:          string(o.State),
		DatePreference: string(o.DatePreference),
		ScheduledDate:  o.ScheduledDate,
		Total:          o.Total,
		Flavor:         string(o.Mode.Flavor),
		ToProcess:      o.ToProcess,
		PostJobID:      o.PostJobID,
		DateSent:       o.DateSent,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:           l.ID,
			Position:     l.Position,
			Name:         l.Name,
			Amount:       l.Amount,
			Currency:     l.Currency,
			Date:         l.Date,
			MaturityDate: l.MaturityDate,
			Priority:     string(l.Priority),
			MandateID:    l.MandateID,
			PartnerName:  l.PartnerName,
			InvoiceRef:   l.InvoiceRef,
		})
	}
	return resp
}

// JobAssignment pairs an order with the job scheduled for it
type JobAssignment struct {
	OrderID uuid.UUID `json:"order_id"`
	JobID   string    `json:"job_id"`
}
