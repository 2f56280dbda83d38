package persistence

import (
	"context"

	ddapp "github.com/erp/directdebit/internal/application/directdebit"
	"github.com/erp/directdebit/internal/domain/directdebit"
	"gorm.io/gorm"
)

// GormTransactionScope runs repository writes in one GORM transaction
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn in a transaction. It commits when fn returns nil and
// rolls back otherwise. Repository methods that open their own transaction
// run as nested savepoints.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos ddapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Mandates() directdebit.MandateRepository {
	return NewGormMandateRepository(r.tx)
}

func (r *gormTransactionalRepositories) Orders() directdebit.PaymentOrderRepository {
	return NewGormPaymentOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) Files() directdebit.SddFileRepository {
	return NewGormSddFileRepository(r.tx)
}

var (
	_ ddapp.TransactionScope          = (*GormTransactionScope)(nil)
	_ ddapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
