package directdebit

import (
	"time"

	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants for events
const (
	AggregateTypeMandate = "Mandate"
	AggregateTypeSddFile = "SddFile"
)

// Event type constants
const (
	EventTypeMandateValidated       = "MandateValidated"
	EventTypeMandateCancelled       = "MandateCancelled"
	EventTypeMandateExpired         = "MandateExpired"
	EventTypeMandateSequenceChanged = "MandateSequenceChanged"
	EventTypeSddFileGenerated       = "SddFileGenerated"
	EventTypeSddFileSent            = "SddFileSent"
)

// MandateValidatedEvent is raised when a mandate becomes usable
type MandateValidatedEvent struct {
	shared.BaseDomainEvent
	Reference   string `json:"reference"`
	PartnerName string `json:"partner_name"`
}

// NewMandateValidatedEvent creates a new MandateValidatedEvent
func NewMandateValidatedEvent(m *Mandate) *MandateValidatedEvent {
	return &MandateValidatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMandateValidated, AggregateTypeMandate, m.ID, m.CompanyID),
		Reference:       m.Reference,
		PartnerName:     m.PartnerName,
	}
}

// MandateCancelledEvent is raised when the debtor revokes a mandate
type MandateCancelledEvent struct {
	shared.BaseDomainEvent
	Reference string `json:"reference"`
}

// NewMandateCancelledEvent creates a new MandateCancelledEvent
func NewMandateCancelledEvent(m *Mandate) *MandateCancelledEvent {
	return &MandateCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMandateCancelled, AggregateTypeMandate, m.ID, m.CompanyID),
		Reference:       m.Reference,
	}
}

// MandateExpiredEvent is raised after a final or one-off debit, or by the
// inactivity sweep
type MandateExpiredEvent struct {
	shared.BaseDomainEvent
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// NewMandateExpiredEvent creates a new MandateExpiredEvent
func NewMandateExpiredEvent(m *Mandate, reason string) *MandateExpiredEvent {
	return &MandateExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMandateExpired, AggregateTypeMandate, m.ID, m.CompanyID),
		Reference:       m.Reference,
		Reason:          reason,
	}
}

// MandateSequenceChangedEvent is raised when the next sequence type changes
type MandateSequenceChangedEvent struct {
	shared.BaseDomainEvent
	Reference string       `json:"reference"`
	From      SequenceType `json:"from"`
	To        SequenceType `json:"to"`
}

// NewMandateSequenceChangedEvent creates a new MandateSequenceChangedEvent
func NewMandateSequenceChangedEvent(m *Mandate, from SequenceType) *MandateSequenceChangedEvent {
	return &MandateSequenceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMandateSequenceChanged, AggregateTypeMandate, m.ID, m.CompanyID),
		Reference:       m.Reference,
		From:            from,
		To:              m.SequenceType,
	}
}

// SddFileGeneratedEvent is raised when a draft file is created
type SddFileGeneratedEvent struct {
	shared.BaseDomainEvent
	Filename       string          `json:"filename"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	NbTransactions int             `json:"nb_transactions"`
}

// NewSddFileGeneratedEvent creates a new SddFileGeneratedEvent
func NewSddFileGeneratedEvent(f *SddFile) *SddFileGeneratedEvent {
	return &SddFileGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSddFileGenerated, AggregateTypeSddFile, f.ID, f.CompanyID),
		Filename:        f.Filename,
		TotalAmount:     f.TotalAmount,
		NbTransactions:  f.NbTransactions,
	}
}

// SddFileSentEvent is raised when a file has been handed to the bank
type SddFileSentEvent struct {
	shared.BaseDomainEvent
	Filename string      `json:"filename"`
	OrderIDs []uuid.UUID `json:"order_ids"`
	SentAt   time.Time   `json:"sent_at"`
}

// NewSddFileSentEvent creates a new SddFileSentEvent
func NewSddFileSentEvent(f *SddFile) *SddFileSentEvent {
	var sentAt time.Time
	if f.SentAt != nil {
		sentAt = *f.SentAt
	}
	return &SddFileSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSddFileSent, AggregateTypeSddFile, f.ID, f.CompanyID),
		Filename:        f.Filename,
		OrderIDs:        f.OrderIDs(),
		SentAt:          sentAt,
	}
}
