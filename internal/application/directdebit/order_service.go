package directdebit

import (
	"context"
	"fmt"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService creates and maintains payment orders
type OrderService struct {
	orders     directdebit.PaymentOrderRepository
	mandates   directdebit.MandateRepository
	flavor     directdebit.Flavor
	toASCII    bool
	splitCount int
	logger     *zap.Logger
}

// OrderServiceConfig holds the collaborators and defaults of the order service
type OrderServiceConfig struct {
	Orders         directdebit.PaymentOrderRepository
	Mandates       directdebit.MandateRepository
	DefaultFlavor  directdebit.Flavor
	ConvertToASCII bool
	SplitCount     int
	Logger         *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(cfg OrderServiceConfig) *OrderService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	flavor := cfg.DefaultFlavor
	if flavor == "" {
		flavor = directdebit.FlavorPain00800102
	}
	splitCount := cfg.SplitCount
	if splitCount <= 0 {
		splitCount = directdebit.DefaultSplitCount
	}
	return &OrderService{
		orders:     cfg.Orders,
		mandates:   cfg.Mandates,
		flavor:     flavor,
		toASCII:    cfg.ConvertToASCII,
		splitCount: splitCount,
		logger:     logger,
	}
}

// Create builds a draft order from its lines. Every line is attached to
// its mandate and debtor account.
func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) (*OrderResponse, error) {
	order, err := s.newOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save payment order: %w", err)
	}
	s.logger.Info("Payment order created",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", order.Reference),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", order.Total.StringFixedBank(2)))
	return ToOrderResponse(order), nil
}

func (s *OrderService) newOrder(ctx context.Context, input CreateOrderInput) (*directdebit.PaymentOrder, error) {
	mode, err := s.mode(input.Mode)
	if err != nil {
		return nil, err
	}
	company := directdebit.CompanyProfile{
		Name:                       input.Company.Name,
		InitiatingPartyIdentifier:  input.Company.InitiatingPartyIdentifier,
		CreditorIdentifier:         input.Company.CreditorIdentifier,
		OriginalCreditorIdentifier: input.Company.OriginalCreditorIdentifier,
	}
	order, err := directdebit.NewPaymentOrder(input.CompanyID, input.Reference, mode, company, directdebit.DatePreference(input.DatePreference))
	if err != nil {
		return nil, err
	}
	if input.ScheduledDate != nil {
		order.Schedule(*input.ScheduledDate)
	}

	mandates, err := s.mandates.FindByIDs(ctx, mandateIDs(input.Lines))
	if err != nil {
		return nil, err
	}
	for _, in := range input.Lines {
		line, err := directdebit.NewPaymentLine(in.Name, in.Amount, in.Currency)
		if err != nil {
			return nil, err
		}
		m := mandates.Get(&in.MandateID)
		if m == nil {
			return nil, shared.NewDomainErrorf("NOT_FOUND", "Mandate %s of payment line '%s' not found", in.MandateID, in.Name)
		}
		line.AttachMandate(m)
		line.MaturityDate = in.MaturityDate
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
	return order, nil
}

func (s *OrderService) mode(in PaymentModeInput) (directdebit.PaymentMode, error) {
	flavor := s.flavor
	if in.Flavor != "" {
		f, err := directdebit.ParseFlavor(in.Flavor)
		if err != nil {
			return directdebit.PaymentMode{}, err
		}
		flavor = f
	}
	toASCII := s.toASCII
	if in.ConvertToASCII != nil {
		toASCII = *in.ConvertToASCII
	}
	return directdebit.PaymentMode{
		Flavor:         flavor,
		ConvertToASCII: toASCII,
		CreditorName:   in.CreditorName,
		CreditorBank:   in.CreditorBank.toDomain(),
	}, nil
}

// Get returns an order with its lines
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(order), nil
}

// List lists the orders of a company without their lines
func (s *OrderService) List(ctx context.Context, companyID uuid.UUID, filter directdebit.OrderFilter) (shared.Paginated[OrderResponse], error) {
	orders, total, err := s.orders.List(ctx, companyID, filter)
	if err != nil {
		return shared.Paginated[OrderResponse]{}, err
	}
	items := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, *ToOrderResponse(&orders[i]))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// Confirm opens a draft order for export
func (s *OrderService) Confirm(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	return s.update(ctx, id, (*directdebit.PaymentOrder).Confirm)
}

// Cancel cancels an order that was not sent
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	return s.update(ctx, id, (*directdebit.PaymentOrder).Cancel)
}

// Split moves every line past splitCount into new orders. A zero count uses
// the configured default.
func (s *OrderService) Split(ctx context.Context, id uuid.UUID, splitCount int) ([]*OrderResponse, error) {
	if splitCount == 0 {
		splitCount = s.splitCount
	}
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	copies, err := order.Split(splitCount)
	if err != nil {
		return nil, err
	}
	if len(copies) == 0 {
		return []*OrderResponse{ToOrderResponse(order)}, nil
	}

	all := append([]*directdebit.PaymentOrder{order}, copies...)
	if err := s.orders.SaveBatch(ctx, all); err != nil {
		return nil, fmt.Errorf("failed to save split payment orders: %w", err)
	}
	s.logger.Info("Payment order split",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", order.Reference),
		zap.Int("split_count", splitCount),
		zap.Int("new_orders", len(copies)))

	out := make([]*OrderResponse, 0, len(all))
	for _, o := range all {
		out = append(out, ToOrderResponse(o))
	}
	return out, nil
}

func (s *OrderService) update(ctx context.Context, id uuid.UUID, apply func(*directdebit.PaymentOrder) error) (*OrderResponse, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(order); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save payment order: %w", err)
	}
	return ToOrderResponse(order), nil
}

func (s *OrderService) find(ctx context.Context, id uuid.UUID) (*directdebit.PaymentOrder, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, shared.NewDomainErrorf("NOT_FOUND", "Payment order %s not found", id)
	}
	return order, nil
}

func mandateIDs(lines []LineInput) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, l := range lines {
		if !seen[l.MandateID] {
			seen[l.MandateID] = true
			ids = append(ids, l.MandateID)
		}
	}
	return ids
}
