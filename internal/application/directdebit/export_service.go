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

const xmlContentType = "application/xml"

// ExportService generates direct debit files from open payment orders and
// books them once they are sent to the bank
type ExportService struct {
	mandates      directdebit.MandateRepository
	orders        directdebit.PaymentOrderRepository
	files         directdebit.SddFileRepository
	txScope       TransactionScope
	storage       FileStorage
	events        shared.EventPublisher
	builder       *directdebit.SddFileBuilder
	defaults      ExportDefaults
	presignExpiry time.Duration
	clock         func() time.Time
	logger        *zap.Logger
}

// ExportServiceConfig holds the collaborators of the export service
type ExportServiceConfig struct {
	Mandates       directdebit.MandateRepository
	Orders         directdebit.PaymentOrderRepository
	Files          directdebit.SddFileRepository
	TxScope        TransactionScope      // optional, defaults to the plain repositories
	Storage        FileStorage           // optional
	EventPublisher shared.EventPublisher // optional
	Builder        *directdebit.SddFileBuilder
	Defaults       ExportDefaults
	PresignExpiry  time.Duration
	Clock          func() time.Time
	Logger         *zap.Logger
}

// NewExportService creates a new ExportService
func NewExportService(cfg ExportServiceConfig) *ExportService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	builder := cfg.Builder
	if builder == nil {
		builder = directdebit.NewSddFileBuilder(directdebit.WithClock(clock))
	}
	defaults := cfg.Defaults
	if defaults.ChargeBearer == "" {
		defaults.ChargeBearer = directdebit.ChargeBearerServiceLevel
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	txScope := cfg.TxScope
	if txScope == nil {
		txScope = NewNoOpTransactionScope(cfg.Mandates, cfg.Orders, cfg.Files)
	}
	return &ExportService{
		mandates:      cfg.Mandates,
		orders:        cfg.Orders,
		files:         cfg.Files,
		txScope:       txScope,
		storage:       cfg.Storage,
		events:        cfg.EventPublisher,
		builder:       builder,
		defaults:      defaults,
		presignExpiry: expiry,
		clock:         clock,
		logger:        logger,
	}
}

// CreateFile renders the given open orders into one draft file. Nothing is
// stored when the orders cannot be rendered.
func (s *ExportService) CreateFile(ctx context.Context, input CreateFileInput) (*FileResponse, error) {
	if len(input.OrderIDs) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one payment order is required")
	}

	orders, err := s.loadOrders(ctx, input.OrderIDs)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.State != directdebit.OrderStateOpen {
			return nil, shared.NewDomainErrorf("INVALID_STATE", "Payment order '%s' is %s, only open orders can be exported", o.Reference, o.State)
		}
	}
	mandates, err := s.loadMandates(ctx, orders)
	if err != nil {
		return nil, err
	}

	opts := directdebit.BuildOptions{
		ChargeBearer: input.ChargeBearer,
		BatchBooking: s.defaults.BatchBooking,
	}
	if opts.ChargeBearer == "" {
		opts.ChargeBearer = s.defaults.ChargeBearer
	}
	if input.BatchBooking != nil {
		opts.BatchBooking = *input.BatchBooking
	}
	if input.Flavor != "" {
		flavor, err := directdebit.ParseFlavor(input.Flavor)
		if err != nil {
			return nil, err
		}
		opts.Flavor = flavor
	}

	result, err := s.builder.Build(directdebit.Batch{Orders: orders, Mandates: mandates}, opts)
	if err != nil {
		s.logger.Warn("Direct debit file generation failed",
			zap.Int("order_count", len(orders)),
			zap.String("reference", orders[0].Reference),
			zap.Error(err))
		return nil, err
	}
	file := result.File

	if s.storage != nil {
		key := fmt.Sprintf("sdd/%s/%s/%s", file.CompanyID, file.ID, file.Filename)
		if err := s.storage.Upload(ctx, key, file.Content, xmlContentType); err != nil {
			return nil, fmt.Errorf("failed to archive direct debit file: %w", err)
		}
		file.StorageKey = key
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if len(result.DateChanges) > 0 {
			if err := repos.Orders().UpdateLineDates(ctx, result.DateChanges); err != nil {
				return fmt.Errorf("failed to update payment line dates: %w", err)
			}
		}
		if err := repos.Files().Save(ctx, file); err != nil {
			return fmt.Errorf("failed to save direct debit file: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discardArchive(ctx, file)
		return nil, err
	}
	s.publish(ctx, file)

	s.logger.Info("Direct debit file generated",
		zap.String("file_id", file.ID.String()),
		zap.String("filename", file.Filename),
		zap.String("flavor", string(file.Flavor)),
		zap.Int("nb_transactions", file.NbTransactions),
		zap.String("total_amount", file.TotalAmount.StringFixedBank(2)),
		zap.Int("groups", len(result.Groups)),
		zap.Int("date_changes", len(result.DateChanges)))

	resp := ToFileResponse(file)
	resp.Groups = toGroupResponses(result.Groups)
	resp.DateChanges = len(result.DateChanges)
	return resp, nil
}

// SendFile marks a draft file as sent and books it: the mandates advance
// to the sequence the file billed them with and the orders are done. The
// mandates, orders and file are written in one transaction. A mandate
// changed since it was loaded fails the send with a concurrency conflict.
func (s *ExportService) SendFile(ctx context.Context, fileID uuid.UUID) (*FileResponse, error) {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := file.MarkSent(now); err != nil {
		return nil, err
	}

	orders, err := s.loadOrders(ctx, file.OrderIDs())
	if err != nil {
		return nil, err
	}
	mandates, err := s.loadMandates(ctx, orders)
	if err != nil {
		return nil, err
	}

	changes, splits, err := directdebit.AdvanceFile(file, orders, mandates, now)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := o.MarkDone(now); err != nil {
			return nil, err
		}
	}

	changed := make([]*directdebit.Mandate, 0, len(changes))
	for _, c := range changes {
		changed = append(changed, mandates[c.MandateID])
	}
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, m := range changed {
			if err := repos.Mandates().SaveWithLock(ctx, m); err != nil {
				return fmt.Errorf("failed to save mandate %s: %w", m.Reference, err)
			}
		}
		if err := repos.Orders().SaveBatch(ctx, orders); err != nil {
			return fmt.Errorf("failed to save payment orders: %w", err)
		}
		if err := repos.Files().Save(ctx, file); err != nil {
			return fmt.Errorf("failed to save direct debit file: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, file)
	for _, m := range changed {
		s.publish(ctx, m)
	}

	for i, o := range orders {
		s.logger.Info("Payment order booked",
			zap.String("order_id", o.ID.String()),
			zap.String("reference", o.Reference),
			zap.String("first_amount", splits[i].First.StringFixedBank(2)),
			zap.String("recurring_amount", splits[i].Recurring.StringFixedBank(2)))
	}
	s.logger.Info("Direct debit file sent",
		zap.String("file_id", file.ID.String()),
		zap.String("filename", file.Filename),
		zap.Int("mandates_advanced", len(changes)))

	return ToFileResponse(file), nil
}

// CancelFile drops a draft file
func (s *ExportService) CancelFile(ctx context.Context, fileID uuid.UUID) error {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !file.CanCancel() {
		return shared.NewDomainErrorf("INVALID_STATE", "File '%s' is %s and cannot be cancelled", file.Filename, file.State.Label())
	}
	if err := s.files.Delete(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to delete direct debit file: %w", err)
	}
	s.discardArchive(ctx, file)
	s.logger.Info("Direct debit file cancelled",
		zap.String("file_id", file.ID.String()),
		zap.String("filename", file.Filename))
	return nil
}

// GetFile returns a file
func (s *ExportService) GetFile(ctx context.Context, fileID uuid.UUID) (*FileResponse, error) {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return ToFileResponse(file), nil
}

// FileContent returns the file name and XML payload of a file
func (s *ExportService) FileContent(ctx context.Context, fileID uuid.UUID) (string, []byte, error) {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return "", nil, err
	}
	return file.Filename, file.Content, nil
}

// ListFiles lists the files of a company
func (s *ExportService) ListFiles(ctx context.Context, companyID uuid.UUID, filter shared.Filter) (shared.Paginated[FileResponse], error) {
	files, total, err := s.files.List(ctx, companyID, filter)
	if err != nil {
		return shared.Paginated[FileResponse]{}, err
	}
	items := make([]FileResponse, 0, len(files))
	for i := range files {
		items = append(items, *ToFileResponse(&files[i]))
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// DownloadURL returns a presigned link to the archived file
func (s *ExportService) DownloadURL(ctx context.Context, fileID uuid.UUID) (string, time.Time, error) {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return "", time.Time{}, err
	}
	if s.storage == nil || file.StorageKey == "" {
		return "", time.Time{}, shared.NewDomainErrorf("NOT_ARCHIVED", "File '%s' is not archived in object storage", file.Filename)
	}
	return s.storage.GenerateDownloadURL(ctx, file.StorageKey, s.presignExpiry)
}

func (s *ExportService) getFile(ctx context.Context, id uuid.UUID) (*directdebit.SddFile, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, shared.NewDomainErrorf("NOT_FOUND", "Direct debit file %s not found", id)
	}
	return file, nil
}

func (s *ExportService) loadOrders(ctx context.Context, ids []uuid.UUID) ([]*directdebit.PaymentOrder, error) {
	orders, err := s.orders.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(orders) != len(ids) {
		return nil, shared.NewDomainErrorf("NOT_FOUND", "Found %d of %d payment orders", len(orders), len(ids))
	}
	return orders, nil
}

func (s *ExportService) loadMandates(ctx context.Context, orders []*directdebit.PaymentOrder) (directdebit.MandateSet, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, o := range orders {
		for _, l := range o.Lines {
			if l.MandateID != nil && !seen[*l.MandateID] {
				seen[*l.MandateID] = true
				ids = append(ids, *l.MandateID)
			}
		}
	}
	if len(ids) == 0 {
		return directdebit.NewMandateSet(), nil
	}
	return s.mandates.FindByIDs(ctx, ids)
}

// discardArchive removes an archived object, logging failures
func (s *ExportService) discardArchive(ctx context.Context, file *directdebit.SddFile) {
	if s.storage == nil || file.StorageKey == "" {
		return
	}
	if err := s.storage.DeleteObject(ctx, file.StorageKey); err != nil {
		s.logger.Warn("Failed to delete archived direct debit file",
			zap.String("storage_key", file.StorageKey),
			zap.Error(err))
	}
}

func (s *ExportService) publish(ctx context.Context, agg shared.AggregateRoot) {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish domain events",
			zap.String("aggregate_id", agg.GetID().String()),
			zap.Error(err))
	}
}
