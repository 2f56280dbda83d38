package directdebit

import (
	"context"

	"github.com/erp/directdebit/internal/domain/directdebit"
)

// TransactionScope runs the writes of one use case in a single database
// transaction. The transaction is rolled back when fn returns an error.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories hands out repositories bound to the running
// transaction. Reads made before Execute go through the plain repositories.
type TransactionalRepositories interface {
	Mandates() directdebit.MandateRepository
	Orders() directdebit.PaymentOrderRepository
	Files() directdebit.SddFileRepository
}

// NoOpTransactionScope runs fn on the plain repositories without a
// transaction. Writes are not atomic across repositories.
type NoOpTransactionScope struct {
	mandates directdebit.MandateRepository
	orders   directdebit.PaymentOrderRepository
	files    directdebit.SddFileRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	mandates directdebit.MandateRepository,
	orders directdebit.PaymentOrderRepository,
	files directdebit.SddFileRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{mandates: mandates, orders: orders, files: files}
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Mandates() directdebit.MandateRepository    { return s.mandates }
func (s *NoOpTransactionScope) Orders() directdebit.PaymentOrderRepository { return s.orders }
func (s *NoOpTransactionScope) Files() directdebit.SddFileRepository       { return s.files }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
