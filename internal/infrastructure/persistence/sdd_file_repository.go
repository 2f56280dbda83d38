package persistence

import (
	"context"
	"errors"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSddFileRepository implements directdebit.SddFileRepository using GORM
type GormSddFileRepository struct {
	db *gorm.DB
}

// NewGormSddFileRepository creates a new GormSddFileRepository
func NewGormSddFileRepository(db *gorm.DB) *GormSddFileRepository {
	return &GormSddFileRepository{db: db}
}

func preloadFileOrders(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByID finds a file with its order links
func (r *GormSddFileRepository) FindByID(ctx context.Context, id uuid.UUID) (*directdebit.SddFile, error) {
	var file directdebit.SddFile
	if err := r.db.WithContext(ctx).
		Preload("Orders", preloadFileOrders).
		Preload("Mandates").
		First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// List finds the files of a company. The XML content is not loaded.
func (r *GormSddFileRepository) List(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]directdebit.SddFile, int64, error) {
	query := r.db.WithContext(ctx).Model(&directdebit.SddFile{}).Where("company_id = ?", companyID)

	if filter.Search != "" {
		query = query.Where("LOWER(filename) LIKE ?", searchPattern(filter.Search))
	}
	if state, ok := filter.Filters["state"]; ok {
		query = query.Where("state = ?", state)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var files []directdebit.SddFile
	if err := paginate(query, filter, FileSortFields).
		Omit("content").
		Preload("Orders", preloadFileOrders).
		Find(&files).Error; err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

// Save creates or updates a file and replaces its order and mandate links
func (r *GormSddFileRepository) Save(ctx context.Context, file *directdebit.SddFile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Orders", "Mandates").Save(file).Error; err != nil {
			return err
		}
		if err := deleteFileLinks(tx, file.ID); err != nil {
			return err
		}
		for i := range file.Orders {
			file.Orders[i].FileID = file.ID
		}
		for i := range file.Mandates {
			file.Mandates[i].FileID = file.ID
		}
		if len(file.Orders) > 0 {
			if err := tx.Create(&file.Orders).Error; err != nil {
				return err
			}
		}
		if len(file.Mandates) > 0 {
			return tx.Create(&file.Mandates).Error
		}
		return nil
	})
}

func deleteFileLinks(tx *gorm.DB, fileID uuid.UUID) error {
	if err := tx.Where("file_id = ?", fileID).Delete(&directdebit.SddFileOrder{}).Error; err != nil {
		return err
	}
	return tx.Where("file_id = ?", fileID).Delete(&directdebit.SddFileMandate{}).Error
}

// Delete removes a file and its links
func (r *GormSddFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteFileLinks(tx, id); err != nil {
			return err
		}
		result := tx.Delete(&directdebit.SddFile{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

var _ directdebit.SddFileRepository = (*GormSddFileRepository)(nil)
