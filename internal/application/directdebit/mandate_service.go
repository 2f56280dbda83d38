package directdebit

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MandateService maintains direct debit mandates
type MandateService struct {
	repo   directdebit.MandateRepository
	events shared.EventPublisher
	sweep  directdebit.ExpirySweep
	clock  func() time.Time
	logger *zap.Logger
}

// MandateServiceConfig holds the collaborators of the mandate service
type MandateServiceConfig struct {
	Repo           directdebit.MandateRepository
	EventPublisher shared.EventPublisher // optional
	Sweep          directdebit.ExpirySweep
	Clock          func() time.Time
	Logger         *zap.Logger
}

// NewMandateService creates a new MandateService
func NewMandateService(cfg MandateServiceConfig) *MandateService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &MandateService{
		repo:   cfg.Repo,
		events: cfg.EventPublisher,
		sweep:  cfg.Sweep,
		clock:  clock,
		logger: logger,
	}
}

// Create registers a draft mandate. The reference must be unique per company.
func (s *MandateService) Create(ctx context.Context, input CreateMandateInput) (*MandateResponse, error) {
	exists, err := s.repo.ExistsByReference(ctx, input.CompanyID, input.Reference)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainErrorf(directdebit.CodeDuplicateReference,
			"A mandate with reference '%s' already exists for this company", input.Reference)
	}

	m, err := directdebit.NewMandate(input.CompanyID, input.Reference, input.PartnerName, directdebit.MandateType(input.Type))
	if err != nil {
		return nil, err
	}
	if input.SignatureDate != nil {
		if err := m.Sign(*input.SignatureDate, input.BankAccount.toDomain()); err != nil {
			return nil, err
		}
	} else if _, err := m.ChangeBankAccount(input.BankAccount.toDomain()); err != nil {
		return nil, err
	}
	if input.SEPAMigrated != nil && !*input.SEPAMigrated {
		m.SetMigration(false, input.OriginalMandateIdentification)
	}
	if err := m.Check(s.clock()); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mandate: %w", err)
	}
	s.logger.Info("Mandate created",
		zap.String("mandate_id", m.ID.String()),
		zap.String("reference", m.Reference),
		zap.String("type", string(m.Type)))
	return ToMandateResponse(m), nil
}

// Get returns a mandate
func (s *MandateService) Get(ctx context.Context, id uuid.UUID) (*MandateResponse, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToMandateResponse(m), nil
}

// List lists the mandates of a company
func (s *MandateService) List(ctx context.Context, companyID uuid.UUID, filter directdebit.MandateFilter) (shared.Paginated[MandateResponse], error) {
	mandates, total, err := s.repo.List(ctx, companyID, filter)
	if err != nil {
		return shared.Paginated[MandateResponse]{}, err
	}
	items := make([]MandateResponse, 0, len(mandates))
	for i := range mandates {
		items = append(items, *ToMandateResponse(&mandates[i]))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// Validate makes a draft mandate usable
func (s *MandateService) Validate(ctx context.Context, id uuid.UUID) (*MandateResponse, error) {
	return s.update(ctx, id, "validated", func(m *directdebit.Mandate) error {
		return m.Validate(s.clock())
	})
}

// Cancel revokes a mandate
func (s *MandateService) Cancel(ctx context.Context, id uuid.UUID) (*MandateResponse, error) {
	return s.update(ctx, id, "cancelled", func(m *directdebit.Mandate) error {
		return m.Cancel()
	})
}

// BackToDraft reopens a cancelled mandate
func (s *MandateService) BackToDraft(ctx context.Context, id uuid.UUID) (*MandateResponse, error) {
	return s.update(ctx, id, "reset to draft", func(m *directdebit.Mandate) error {
		return m.BackToDraft()
	})
}

// ChangeBankAccount moves a mandate to another debtor account
func (s *MandateService) ChangeBankAccount(ctx context.Context, id uuid.UUID, account BankAccountInput) (*MandateResponse, error) {
	return s.update(ctx, id, "moved to another bank account", func(m *directdebit.Mandate) error {
		reset, err := m.ChangeBankAccount(account.toDomain())
		if err != nil {
			return err
		}
		if reset {
			s.logger.Info("Mandate sequence reset to first",
				zap.String("mandate_id", m.ID.String()),
				zap.String("reference", m.Reference))
		}
		return nil
	})
}

// SweepExpired expires the mandates unused for the configured period. It
// does nothing unless the sweep is enabled.
func (s *MandateService) SweepExpired(ctx context.Context) (int, error) {
	if !s.sweep.Enabled {
		s.logger.Info("Mandate expiry sweep is disabled")
		return 0, nil
	}
	now := s.clock()
	s.logger.Info("Searching for mandates that must be set to expired",
		zap.Time("limit", s.sweep.Limit(now)))

	candidates, err := s.repo.FindExpiryCandidates(ctx, s.sweep.Limit(now))
	if err != nil {
		return 0, err
	}
	expired := s.sweep.Run(candidates, now)
	if len(expired) == 0 {
		s.logger.Info("No mandates must be set to expired")
		return 0, nil
	}
	if err := s.repo.SaveBatch(ctx, expired); err != nil {
		return 0, fmt.Errorf("failed to save expired mandates: %w", err)
	}
	refs := make([]string, 0, len(expired))
	for _, m := range expired {
		refs = append(refs, m.Reference)
		s.publish(ctx, m)
	}
	s.logger.Info("Mandates set to expired", zap.Strings("references", refs))
	return len(expired), nil
}

func (s *MandateService) update(ctx context.Context, id uuid.UUID, action string, apply func(*directdebit.Mandate) error) (*MandateResponse, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(m); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, m); err != nil {
		return nil, err
	}
	s.publish(ctx, m)
	s.logger.Info("Mandate "+action,
		zap.String("mandate_id", m.ID.String()),
		zap.String("reference", m.Reference),
		zap.String("state", string(m.State)))
	return ToMandateResponse(m), nil
}

func (s *MandateService) find(ctx context.Context, id uuid.UUID) (*directdebit.Mandate, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, shared.NewDomainErrorf("NOT_FOUND", "Mandate %s not found", id)
	}
	return m, nil
}

func (s *MandateService) publish(ctx context.Context, m *directdebit.Mandate) {
	events := m.GetDomainEvents()
	m.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish mandate events",
			zap.String("mandate_id", m.ID.String()),
			zap.Error(err))
	}
}
