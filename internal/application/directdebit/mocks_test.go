package directdebit

import (
	"context"
	"testing"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockMandateRepository is a mock implementation of directdebit.MandateRepository
type MockMandateRepository struct {
	mock.Mock
}

func (m *MockMandateRepository) FindByID(ctx context.Context, id uuid.UUID) (*directdebit.Mandate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directdebit.Mandate), args.Error(1)
}

func (m *MockMandateRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (directdebit.MandateSet, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(directdebit.MandateSet), args.Error(1)
}

func (m *MockMandateRepository) FindByReference(ctx context.Context, companyID uuid.UUID, reference string) (*directdebit.Mandate, error) {
	args := m.Called(ctx, companyID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directdebit.Mandate), args.Error(1)
}

func (m *MockMandateRepository) ExistsByReference(ctx context.Context, companyID uuid.UUID, reference string) (bool, error) {
	args := m.Called(ctx, companyID, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockMandateRepository) FindExpiryCandidates(ctx context.Context, limit time.Time) ([]*directdebit.Mandate, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*directdebit.Mandate), args.Error(1)
}

func (m *MockMandateRepository) List(ctx context.Context, companyID uuid.UUID, filter directdebit.MandateFilter) ([]directdebit.Mandate, int64, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]directdebit.Mandate), args.Get(1).(int64), args.Error(2)
}

func (m *MockMandateRepository) Save(ctx context.Context, mandate *directdebit.Mandate) error {
	args := m.Called(ctx, mandate)
	return args.Error(0)
}

func (m *MockMandateRepository) SaveWithLock(ctx context.Context, mandate *directdebit.Mandate) error {
	args := m.Called(ctx, mandate)
	return args.Error(0)
}

func (m *MockMandateRepository) SaveBatch(ctx context.Context, mandates []*directdebit.Mandate) error {
	args := m.Called(ctx, mandates)
	return args.Error(0)
}

// MockPaymentOrderRepository is a mock implementation of directdebit.PaymentOrderRepository
type MockPaymentOrderRepository struct {
	mock.Mock
}

func (m *MockPaymentOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*directdebit.PaymentOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directdebit.PaymentOrder), args.Error(1)
}

func (m *MockPaymentOrderRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*directdebit.PaymentOrder, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*directdebit.PaymentOrder), args.Error(1)
}

func (m *MockPaymentOrderRepository) FindWithJob(ctx context.Context, ids []uuid.UUID, toProcess bool) ([]*directdebit.PaymentOrder, error) {
	args := m.Called(ctx, ids, toProcess)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*directdebit.PaymentOrder), args.Error(1)
}

func (m *MockPaymentOrderRepository) Save(ctx context.Context, order *directdebit.PaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPaymentOrderRepository) SaveBatch(ctx context.Context, orders []*directdebit.PaymentOrder) error {
	args := m.Called(ctx, orders)
	return args.Error(0)
}

func (m *MockPaymentOrderRepository) List(ctx context.Context, companyID uuid.UUID, filter directdebit.OrderFilter) ([]directdebit.PaymentOrder, int64, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]directdebit.PaymentOrder), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentOrderRepository) AssignJob(ctx context.Context, id uuid.UUID, jobID string) error {
	args := m.Called(ctx, id, jobID)
	return args.Error(0)
}

func (m *MockPaymentOrderRepository) SetToProcess(ctx context.Context, ids []uuid.UUID, toProcess bool) error {
	args := m.Called(ctx, ids, toProcess)
	return args.Error(0)
}

func (m *MockPaymentOrderRepository) UpdateLineDates(ctx context.Context, changes []directdebit.LineDateChange) error {
	args := m.Called(ctx, changes)
	return args.Error(0)
}

// MockSddFileRepository is a mock implementation of directdebit.SddFileRepository
type MockSddFileRepository struct {
	mock.Mock
}

func (m *MockSddFileRepository) FindByID(ctx context.Context, id uuid.UUID) (*directdebit.SddFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*directdebit.SddFile), args.Error(1)
}

func (m *MockSddFileRepository) List(ctx context.Context, companyID uuid.UUID, filter shared.Filter) ([]directdebit.SddFile, int64, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]directdebit.SddFile), args.Get(1).(int64), args.Error(2)
}

func (m *MockSddFileRepository) Save(ctx context.Context, file *directdebit.SddFile) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *MockSddFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// =============================================================================
// Mock Ports
// =============================================================================

// MockFileStorage is a mock implementation of FileStorage
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	args := m.Called(ctx, storageKey, data, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockFileStorage) DeleteObject(ctx context.Context, storageKey string) error {
	args := m.Called(ctx, storageKey)
	return args.Error(0)
}

// MockJobQueue is a mock implementation of JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, orderID uuid.UUID, eta time.Time) (string, error) {
	args := m.Called(ctx, orderID, eta)
	return args.String(0), args.Error(1)
}

func (m *MockJobQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

// MockProcessingLock is a mock implementation of ProcessingLock
type MockProcessingLock struct {
	mock.Mock
}

func (m *MockProcessingLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockProcessingLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockFileExporter is a mock implementation of FileExporter
type MockFileExporter struct {
	mock.Mock
}

func (m *MockFileExporter) CreateFile(ctx context.Context, input CreateFileInput) (*FileResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FileResponse), args.Error(1)
}

func (m *MockFileExporter) SendFile(ctx context.Context, fileID uuid.UUID) (*FileResponse, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FileResponse), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// =============================================================================
// Fixtures
// =============================================================================

var (
	testNow       = time.Date(2025, 3, 3, 9, 30, 15, 0, time.UTC) // Monday
	testSignature = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	testCompanyID = uuid.MustParse("6f1c9d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f")

	debtorAccount = directdebit.BankAccount{IBAN: "NL91ABNA0417164300", BIC: "ABNANL2A"}
	creditorBank  = directdebit.BankAccount{IBAN: "NL39RABO0300065264", BIC: "RABONL2U"}
)

func fixedClock() time.Time { return testNow }

func createValidMandate(t *testing.T, reference string, mandateType directdebit.MandateType) *directdebit.Mandate {
	t.Helper()
	m, err := directdebit.NewMandate(testCompanyID, reference, "Jan de Vries", mandateType)
	require.NoError(t, err)
	require.NoError(t, m.Sign(testSignature, debtorAccount))
	require.NoError(t, m.Validate(testNow))
	m.ClearDomainEvents()
	return m
}

func createOpenOrder(t *testing.T, reference string, mandates ...*directdebit.Mandate) *directdebit.PaymentOrder {
	t.Helper()
	mode := directdebit.PaymentMode{
		Flavor:         directdebit.FlavorPain00800102,
		ConvertToASCII: true,
		CreditorName:   "Stichting Voorbeeld",
		CreditorBank:   creditorBank,
	}
	company := directdebit.CompanyProfile{
		Name:                      "Stichting Voorbeeld",
		InitiatingPartyIdentifier: "12345678",
		CreditorIdentifier:        "NL98ZZZ999999999999",
	}
	o, err := directdebit.NewPaymentOrder(testCompanyID, reference, mode, company, directdebit.DatePreferenceNow)
	require.NoError(t, err)
	for i, m := range mandates {
		line, err := directdebit.NewPaymentLine(m.PartnerName, decimal.NewFromInt(int64(10*(i+1))), "EUR")
		require.NoError(t, err)
		line.AttachMandate(m)
		line.Communication = "Contribution " + reference
		require.NoError(t, o.AddLine(line))
	}
	require.NoError(t, o.Confirm())
	return o
}
