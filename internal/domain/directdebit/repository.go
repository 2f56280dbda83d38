package directdebit

import (
	"context"
	"time"

	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
)

// MandateFilter defines filtering options for mandate queries
type MandateFilter struct {
	shared.Filter
	State       *MandateState // Filter by state
	Type        *MandateType  // Filter by mandate type
	PartnerName string        // Filter by partner name (contains)
}

// MandateRepository defines the interface for mandate persistence
type MandateRepository interface {
	// FindByID finds a mandate by ID, returning nil when it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Mandate, error)

	// FindByIDs loads the mandates referenced by a batch
	FindByIDs(ctx context.Context, ids []uuid.UUID) (MandateSet, error)

	// FindByReference finds a mandate by its unique reference for a company
	FindByReference(ctx context.Context, companyID uuid.UUID, reference string) (*Mandate, error)

	// ExistsByReference checks the per-company uniqueness of a reference
	ExistsByReference(ctx context.Context, companyID uuid.UUID, reference string) (bool, error)

	// FindExpiryCandidates finds valid mandates signed and last used on or before limit
	FindExpiryCandidates(ctx context.Context, limit time.Time) ([]*Mandate, error)

	// List finds mandates for a company with filtering
	List(ctx context.Context, companyID uuid.UUID, filter MandateFilter) ([]Mandate, int64, error)

	// Save creates or updates a mandate
	Save(ctx context.Context, mandate *Mandate) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, mandate *Mandate) error

	// SaveBatch saves several mandates in one transaction
	SaveBatch(ctx context.Context, mandates []*Mandate) error
}

// OrderFilter defines filtering options for payment order queries
type OrderFilter struct {
	shared.Filter
	State     *OrderState // Filter by state
	ToProcess *bool       // Filter by processing flag
}

// PaymentOrderRepository defines the interface for payment order persistence
type PaymentOrderRepository interface {
	// FindByID finds an order with its lines, returning nil when it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentOrder, error)

	// FindByIDs finds orders with their lines, keeping the order of ids
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*PaymentOrder, error)

	// FindWithJob finds orders holding a post job id, by processing flag
	FindWithJob(ctx context.Context, ids []uuid.UUID, toProcess bool) ([]*PaymentOrder, error)

	// Save creates or updates an order and its lines
	Save(ctx context.Context, order *PaymentOrder) error

	// SaveBatch saves several orders in one transaction
	SaveBatch(ctx context.Context, orders []*PaymentOrder) error

	// List finds the orders of a company, newest first
	List(ctx context.Context, companyID uuid.UUID, filter OrderFilter) ([]PaymentOrder, int64, error)

	// AssignJob stores the id of the job that will process an order
	AssignJob(ctx context.Context, id uuid.UUID, jobID string) error

	// SetToProcess writes the processing flag of the given orders
	SetToProcess(ctx context.Context, ids []uuid.UUID, toProcess bool) error

	// UpdateLineDates writes corrected requested dates back to payment lines
	UpdateLineDates(ctx context.Context, changes []LineDateChange) error
}

// SddFileRepository defines the interface for generated file persistence
type SddFileRepository interface {
	// FindByID finds a file, returning nil when it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*SddFile, error)

	// List finds the files of a company, newest first
	List(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]SddFile, int64, error)

	// Save creates or updates a file and its order links
	Save(ctx context.Context, file *SddFile) error

	// Delete removes a file and its order links
	Delete(ctx context.Context, id uuid.UUID) error
}
