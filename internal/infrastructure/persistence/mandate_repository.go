package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMandateRepository implements directdebit.MandateRepository using GORM
type GormMandateRepository struct {
	db *gorm.DB
}

// NewGormMandateRepository creates a new GormMandateRepository
func NewGormMandateRepository(db *gorm.DB) *GormMandateRepository {
	return &GormMandateRepository{db: db}
}

// FindByID finds a mandate by its ID
func (r *GormMandateRepository) FindByID(ctx context.Context, id uuid.UUID) (*directdebit.Mandate, error) {
	var mandate directdebit.Mandate
	if err := r.db.WithContext(ctx).First(&mandate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mandate, nil
}

// FindByIDs loads several mandates at once
func (r *GormMandateRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (directdebit.MandateSet, error) {
	if len(ids) == 0 {
		return directdebit.MandateSet{}, nil
	}
	var mandates []*directdebit.Mandate
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&mandates).Error; err != nil {
		return nil, err
	}
	return directdebit.NewMandateSet(mandates...), nil
}

// FindByReference finds a mandate by its reference within a company
func (r *GormMandateRepository) FindByReference(ctx context.Context, companyID uuid.UUID, reference string) (*directdebit.Mandate, error) {
	var mandate directdebit.Mandate
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND reference = ?", companyID, strings.TrimSpace(reference)).
		First(&mandate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mandate, nil
}

// ExistsByReference checks if a reference is already taken within a company
func (r *GormMandateRepository) ExistsByReference(ctx context.Context, companyID uuid.UUID, reference string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&directdebit.Mandate{}).
		Where("company_id = ? AND reference = ?", companyID, strings.TrimSpace(reference)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindExpiryCandidates finds valid mandates signed on or before limit whose
// last debit, if any, is also on or before limit
func (r *GormMandateRepository) FindExpiryCandidates(ctx context.Context, limit time.Time) ([]*directdebit.Mandate, error) {
	var mandates []*directdebit.Mandate
	day := directdebit.DateOf(limit)
	if err := r.db.WithContext(ctx).
		Where("state = ?", directdebit.MandateStateValid).
		Where("signature_date IS NOT NULL AND signature_date <= ?", day).
		Where("last_debit_date IS NULL OR last_debit_date <= ?", day).
		Order("signature_date ASC").
		Find(&mandates).Error; err != nil {
		return nil, err
	}
	return mandates, nil
}

// List finds mandates for a company matching the filter
func (r *GormMandateRepository) List(ctx context.Context, companyID uuid.UUID, filter directdebit.MandateFilter) ([]directdebit.Mandate, int64, error) {
	query := r.db.WithContext(ctx).Model(&directdebit.Mandate{}).Where("company_id = ?", companyID)

	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.PartnerName != "" {
		query = query.Where("LOWER(partner_name) LIKE ?", searchPattern(filter.PartnerName))
	}
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where("LOWER(reference) LIKE ? OR LOWER(partner_name) LIKE ? OR LOWER(debtor_iban) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var mandates []directdebit.Mandate
	if err := paginate(query, filter.Filter, MandateSortFields).Find(&mandates).Error; err != nil {
		return nil, 0, err
	}
	return mandates, total, nil
}

// Save creates or updates a mandate
func (r *GormMandateRepository) Save(ctx context.Context, mandate *directdebit.Mandate) error {
	return r.db.WithContext(ctx).Save(mandate).Error
}

// SaveWithLock saves a mandate with optimistic locking. Domain mutations
// bump the version, so the stored row must still hold the previous one.
func (r *GormMandateRepository) SaveWithLock(ctx context.Context, mandate *directdebit.Mandate) error {
	result := r.db.WithContext(ctx).
		Model(&directdebit.Mandate{}).
		Where("id = ? AND version = ?", mandate.ID, mandate.Version-1).
		Select("*").
		Omit("id", "company_id", "created_at").
		Updates(mandate)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveBatch saves several mandates in one transaction
func (r *GormMandateRepository) SaveBatch(ctx context.Context, mandates []*directdebit.Mandate) error {
	if len(mandates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range mandates {
			if err := tx.Save(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var _ directdebit.MandateRepository = (*GormMandateRepository)(nil)
