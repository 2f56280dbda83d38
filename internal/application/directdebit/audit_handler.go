package directdebit

import (
	"context"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditHandler writes an audit log entry for every mandate and file event
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{logger: logger.Named("sdd.audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditHandler) EventTypes() []string {
	return []string{
		directdebit.EventTypeMandateValidated,
		directdebit.EventTypeMandateCancelled,
		directdebit.EventTypeMandateExpired,
		directdebit.EventTypeMandateSequenceChanged,
		directdebit.EventTypeSddFileGenerated,
		directdebit.EventTypeSddFileSent,
	}
}

// Handle logs the event with its type specific fields
func (h *AuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("company_id", event.CompanyID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *directdebit.MandateValidatedEvent:
		fields = append(fields, zap.String("reference", e.Reference), zap.String("partner", e.PartnerName))
	case *directdebit.MandateCancelledEvent:
		fields = append(fields, zap.String("reference", e.Reference))
	case *directdebit.MandateExpiredEvent:
		fields = append(fields, zap.String("reference", e.Reference), zap.String("reason", e.Reason))
	case *directdebit.MandateSequenceChangedEvent:
		fields = append(fields,
			zap.String("reference", e.Reference),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)))
	case *directdebit.SddFileGeneratedEvent:
		fields = append(fields,
			zap.String("filename", e.Filename),
			zap.String("total", e.TotalAmount.StringFixedBank(2)),
			zap.Int("transactions", e.NbTransactions))
	case *directdebit.SddFileSentEvent:
		fields = append(fields,
			zap.String("filename", e.Filename),
			zap.Int("orders", len(e.OrderIDs)),
			zap.Time("sent_at", e.SentAt))
	default:
		h.logger.Debug("Ignoring unexpected event", fields...)
		return nil
	}

	h.logger.Info("Direct debit event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditHandler)(nil)
