package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentOrderRepository implements directdebit.PaymentOrderRepository using GORM
type GormPaymentOrderRepository struct {
	db *gorm.DB
}

// NewGormPaymentOrderRepository creates a new GormPaymentOrderRepository
func NewGormPaymentOrderRepository(db *gorm.DB) *GormPaymentOrderRepository {
	return &GormPaymentOrderRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByID finds an order with its lines
func (r *GormPaymentOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*directdebit.PaymentOrder, error) {
	var order directdebit.PaymentOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines", preloadLines).
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// FindByIDs finds orders with their lines in the order of ids. Unknown
// ids are skipped.
func (r *GormPaymentOrderRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*directdebit.PaymentOrder, error) {
	if len(ids) == 0 {
		return []*directdebit.PaymentOrder{}, nil
	}
	var found []*directdebit.PaymentOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines", preloadLines).
		Where("id IN ?", ids).
		Find(&found).Error; err != nil {
		return nil, err
	}
	return orderedByIDs(found, ids), nil
}

// FindWithJob finds the orders among ids that hold a post job id and
// carry the given processing flag
func (r *GormPaymentOrderRepository) FindWithJob(ctx context.Context, ids []uuid.UUID, toProcess bool) ([]*directdebit.PaymentOrder, error) {
	if len(ids) == 0 {
		return []*directdebit.PaymentOrder{}, nil
	}
	var found []*directdebit.PaymentOrder
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND to_process = ? AND post_job_id <> ''", ids, toProcess).
		Find(&found).Error; err != nil {
		return nil, err
	}
	return orderedByIDs(found, ids), nil
}

func orderedByIDs(found []*directdebit.PaymentOrder, ids []uuid.UUID) []*directdebit.PaymentOrder {
	byID := make(map[uuid.UUID]*directdebit.PaymentOrder, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	orders := make([]*directdebit.PaymentOrder, 0, len(found))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			orders = append(orders, o)
			delete(byID, id)
		}
	}
	return orders
}

// Save creates or updates an order and replaces its lines
func (r *GormPaymentOrderRepository) Save(ctx context.Context, order *directdebit.PaymentOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveOrder(tx, order)
	})
}

// SaveBatch saves several orders in one transaction
func (r *GormPaymentOrderRepository) SaveBatch(ctx context.Context, orders []*directdebit.PaymentOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			if err := saveOrder(tx, order); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveOrder(tx *gorm.DB, order *directdebit.PaymentOrder) error {
	if err := tx.Omit("Lines").Save(order).Error; err != nil {
		return err
	}

	// Drop lines that left the order, such as those moved to a split copy
	currentLineIDs := make([]uuid.UUID, len(order.Lines))
	for i, line := range order.Lines {
		currentLineIDs[i] = line.ID
	}
	stale := tx.Where("order_id = ?", order.ID)
	if len(currentLineIDs) > 0 {
		stale = stale.Where("id NOT IN ?", currentLineIDs)
	}
	if err := stale.Delete(&directdebit.PaymentLine{}).Error; err != nil {
		return err
	}

	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		if err := tx.Save(&order.Lines[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// List finds the orders of a company without their lines
func (r *GormPaymentOrderRepository) List(ctx context.Context, companyID uuid.UUID, filter directdebit.OrderFilter) ([]directdebit.PaymentOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&directdebit.PaymentOrder{}).Where("company_id = ?", companyID)

	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.ToProcess != nil {
		query = query.Where("to_process = ?", *filter.ToProcess)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(reference) LIKE ?", searchPattern(filter.Search))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []directdebit.PaymentOrder
	if err := paginate(query, filter.Filter, OrderSortFields).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// AssignJob stores the id of the job that will post an order
func (r *GormPaymentOrderRepository) AssignJob(ctx context.Context, id uuid.UUID, jobID string) error {
	result := r.db.WithContext(ctx).Model(&directdebit.PaymentOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{"post_job_id": jobID, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetToProcess writes the processing flag of the given orders. The post
// job id is left alone so a pending job can still be cancelled.
func (r *GormPaymentOrderRepository) SetToProcess(ctx context.Context, ids []uuid.UUID, toProcess bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&directdebit.PaymentOrder{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"to_process": toProcess, "updated_at": time.Now()}).Error
}

// UpdateLineDates writes corrected requested dates back to payment lines
func (r *GormPaymentOrderRepository) UpdateLineDates(ctx context.Context, changes []directdebit.LineDateChange) error {
	if len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, change := range changes {
			result := tx.Model(&directdebit.PaymentLine{}).
				Where("id = ? AND order_id = ?", change.LineID, change.OrderID).
				Updates(map[string]any{"date": directdebit.DateOf(change.To), "updated_at": time.Now()})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.ErrNotFound
			}
		}
		return nil
	})
}

var _ directdebit.PaymentOrderRepository = (*GormPaymentOrderRepository)(nil)
