package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	repoCompanyID = uuid.MustParse("2f6a7c1e-0d7b-4f4e-9a55-0b3c1f3d9e21")
	repoNow       = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)
	repoDebtor    = directdebit.BankAccount{IBAN: "NL91ABNA0417164300", BIC: "ABNANL2A"}
	repoCreditor  = directdebit.BankAccount{IBAN: "NL39RABO0300065264", BIC: "RABONL2U"}
)

func newRepoMandate(t *testing.T, reference string, signed time.Time) *directdebit.Mandate {
	t.Helper()
	m, err := directdebit.NewMandate(repoCompanyID, reference, "Jan de Vries", directdebit.MandateTypeRecurrent)
	require.NoError(t, err)
	require.NoError(t, m.Sign(signed, repoDebtor))
	require.NoError(t, m.Validate(repoNow))
	m.ClearDomainEvents()
	return m
}

func newRepoOrder(t *testing.T, reference string, mandates ...*directdebit.Mandate) *directdebit.PaymentOrder {
	t.Helper()
	mode := directdebit.PaymentMode{
		Flavor:       directdebit.FlavorPain00800102,
		CreditorName: "Stichting Voorbeeld",
		CreditorBank: repoCreditor,
	}
	company := directdebit.CompanyProfile{Name: "Stichting Voorbeeld", CreditorIdentifier: "NL98ZZZ999999999999"}
	o, err := directdebit.NewPaymentOrder(repoCompanyID, reference, mode, company, directdebit.DatePreferenceNow)
	require.NoError(t, err)
	for i, m := range mandates {
		line, err := directdebit.NewPaymentLine(m.PartnerName, decimal.NewFromInt(int64(5*(i+1))), "EUR")
		require.NoError(t, err)
		line.AttachMandate(m)
		require.NoError(t, o.AddLine(line))
	}
	return o
}

func TestGormMandateRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	repo := NewGormMandateRepository(db.DB)

	old := newRepoMandate(t, "MND-OLD", time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	recent := newRepoMandate(t, "MND-NEW", time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC))
	usedLately := newRepoMandate(t, "MND-USED", time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	usedLately.LastDebitDate = directdebit.DatePtr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveBatch(ctx, []*directdebit.Mandate{old, recent, usedLately}))

	t.Run("finds by id and reference", func(t *testing.T) {
		found, err := repo.FindByID(ctx, old.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "MND-OLD", found.Reference)
		assert.Equal(t, repoDebtor, found.BankAccount)
		assert.Equal(t, directdebit.SequenceFirst, found.SequenceType)

		byRef, err := repo.FindByReference(ctx, repoCompanyID, "MND-NEW")
		require.NoError(t, err)
		require.NotNil(t, byRef)
		assert.Equal(t, recent.ID, byRef.ID)
	})

	t.Run("returns nil for unknown mandate", func(t *testing.T) {
		found, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("reference uniqueness is per company", func(t *testing.T) {
		exists, err := repo.ExistsByReference(ctx, repoCompanyID, "MND-OLD")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.ExistsByReference(ctx, uuid.New(), "MND-OLD")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("loads a mandate set", func(t *testing.T) {
		set, err := repo.FindByIDs(ctx, []uuid.UUID{old.ID, recent.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, set, 2)
		assert.NotNil(t, set.Get(&recent.ID))
	})

	t.Run("finds expiry candidates", func(t *testing.T) {
		limit := time.Date(2022, 3, 3, 0, 0, 0, 0, time.UTC)
		candidates, err := repo.FindExpiryCandidates(ctx, limit)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "MND-OLD", candidates[0].Reference)
	})

	t.Run("lists with filter and pagination", func(t *testing.T) {
		filter := directdebit.MandateFilter{Filter: shared.Filter{Page: 1, PageSize: 2, OrderBy: "reference", OrderDir: "asc"}}
		mandates, total, err := repo.List(ctx, repoCompanyID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, mandates, 2)
		assert.Equal(t, "MND-NEW", mandates[0].Reference)
		assert.Equal(t, "MND-OLD", mandates[1].Reference)

		filter = directdebit.MandateFilter{Filter: shared.Filter{Search: "used"}}
		mandates, total, err = repo.List(ctx, repoCompanyID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "MND-USED", mandates[0].Reference)
	})

	t.Run("save with lock detects concurrent modification", func(t *testing.T) {
		first, err := repo.FindByID(ctx, recent.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, recent.ID)
		require.NoError(t, err)

		require.NoError(t, first.Cancel())
		require.NoError(t, repo.SaveWithLock(ctx, first))

		second.Expire("unused")
		err = repo.SaveWithLock(ctx, second)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		stored, err := repo.FindByID(ctx, recent.ID)
		require.NoError(t, err)
		assert.Equal(t, directdebit.MandateStateCancel, stored.State)
		assert.Equal(t, first.Version, stored.Version)
	})
}

func TestGormMandateRepository_SaveWithLock_SQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormMandateRepository(db.DB)

	m := newRepoMandate(t, "MND-1", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	mock.ExpectExec(`UPDATE "sdd_mandates" SET .* WHERE \(?id = \$\d+ AND version = \$\d+\)?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveWithLock(context.Background(), m)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPaymentOrderRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	mandates := NewGormMandateRepository(db.DB)
	repo := NewGormPaymentOrderRepository(db.DB)

	m1 := newRepoMandate(t, "MND-A", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	m2 := newRepoMandate(t, "MND-B", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	m3 := newRepoMandate(t, "MND-C", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, mandates.SaveBatch(ctx, []*directdebit.Mandate{m1, m2, m3}))

	first := newRepoOrder(t, "ORD-1", m1, m2, m3)
	second := newRepoOrder(t, "ORD-2", m1)
	require.NoError(t, repo.SaveBatch(ctx, []*directdebit.PaymentOrder{first, second}))

	t.Run("loads lines in position order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		require.Len(t, found.Lines, 3)
		for i, line := range found.Lines {
			assert.Equal(t, first.Lines[i].ID, line.ID)
			assert.Equal(t, first.ID, line.OrderID)
		}
		assert.True(t, decimal.NewFromInt(30).Equal(found.Total))
		assert.Equal(t, repoCreditor, found.Mode.CreditorBank)
	})

	t.Run("keeps the requested order of ids", func(t *testing.T) {
		orders, err := repo.FindByIDs(ctx, []uuid.UUID{second.ID, uuid.New(), first.ID})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "ORD-2", orders[0].Reference)
		assert.Equal(t, "ORD-1", orders[1].Reference)
	})

	t.Run("processing flag and job id", func(t *testing.T) {
		ids := []uuid.UUID{first.ID, second.ID}
		require.NoError(t, repo.SetToProcess(ctx, ids, true))
		require.NoError(t, repo.AssignJob(ctx, first.ID, "job-1"))

		withJob, err := repo.FindWithJob(ctx, ids, true)
		require.NoError(t, err)
		require.Len(t, withJob, 1)
		assert.Equal(t, "job-1", withJob[0].PostJobID)

		require.NoError(t, repo.SetToProcess(ctx, ids, false))
		withJob, err = repo.FindWithJob(ctx, ids, false)
		require.NoError(t, err)
		require.Len(t, withJob, 1)
		assert.Equal(t, first.ID, withJob[0].ID)

		assert.ErrorIs(t, repo.AssignJob(ctx, uuid.New(), "job-2"), shared.ErrNotFound)
	})

	t.Run("writes corrected line dates", func(t *testing.T) {
		day := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
		change := directdebit.LineDateChange{LineID: first.Lines[1].ID, OrderID: first.ID, To: day}
		require.NoError(t, repo.UpdateLineDates(ctx, []directdebit.LineDateChange{change}))

		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, found.Lines[1].Date)
		assert.True(t, day.Equal(directdebit.DateOf(*found.Lines[1].Date)))
		assert.Nil(t, found.Lines[0].Date)

		missing := directdebit.LineDateChange{LineID: uuid.New(), OrderID: first.ID, To: day}
		assert.ErrorIs(t, repo.UpdateLineDates(ctx, []directdebit.LineDateChange{missing}), shared.ErrNotFound)
	})

	t.Run("split moves lines to the copies", func(t *testing.T) {
		order, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		copies, err := order.Split(2)
		require.NoError(t, err)
		require.Len(t, copies, 1)

		require.NoError(t, repo.SaveBatch(ctx, append([]*directdebit.PaymentOrder{order}, copies...)))

		reloaded, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Len(t, reloaded.Lines, 2)

		copied, err := repo.FindByID(ctx, copies[0].ID)
		require.NoError(t, err)
		require.NotNil(t, copied)
		assert.Equal(t, "ORD-1-2", copied.Reference)
		assert.Len(t, copied.Lines, 1)
	})

	t.Run("lists by state", func(t *testing.T) {
		draft := directdebit.OrderStateDraft
		orders, total, err := repo.List(ctx, repoCompanyID, directdebit.OrderFilter{Filter: shared.DefaultFilter(), State: &draft})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, orders, 3)
		assert.Empty(t, orders[0].Lines)
	})
}

func TestGormSddFileRepository(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	repo := NewGormSddFileRepository(db.DB)

	orderA, orderB := uuid.New(), uuid.New()
	file := &directdebit.SddFile{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(repoCompanyID),
		Filename:             "sdd_ORD-1.xml",
		Content:              []byte("<Document/>"),
		TotalAmount:          decimal.RequireFromString("42.50"),
		NbTransactions:       3,
		Flavor:               directdebit.FlavorPain00800102,
		ChargeBearer:         directdebit.ChargeBearerServiceLevel,
		BatchBooking:         true,
		State:                directdebit.FileStateDraft,
	}
	file.Orders = []directdebit.SddFileOrder{
		{FileID: file.ID, PaymentOrderID: orderB, Position: 0},
		{FileID: file.ID, PaymentOrderID: orderA, Position: 1},
	}
	mandateID := uuid.New()
	file.Mandates = []directdebit.SddFileMandate{{MandateID: mandateID, Sequence: directdebit.CodeFirst}}
	require.NoError(t, repo.Save(ctx, file))

	t.Run("finds file with its order links", func(t *testing.T) {
		found, err := repo.FindByID(ctx, file.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, []uuid.UUID{orderB, orderA}, found.OrderIDs())
		assert.Equal(t, []byte("<Document/>"), found.Content)
		assert.True(t, decimal.RequireFromString("42.50").Equal(found.TotalAmount))
		assert.Equal(t, directdebit.BilledSequences{mandateID: directdebit.CodeFirst}, found.BilledSequences())
	})

	t.Run("saves the sent state", func(t *testing.T) {
		found, err := repo.FindByID(ctx, file.ID)
		require.NoError(t, err)
		require.NoError(t, found.MarkSent(repoNow))
		require.NoError(t, repo.Save(ctx, found))

		reloaded, err := repo.FindByID(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, directdebit.FileStateSent, reloaded.State)
		require.NotNil(t, reloaded.SentAt)
		assert.Len(t, reloaded.Orders, 2)
	})

	t.Run("lists without content", func(t *testing.T) {
		files, total, err := repo.List(ctx, repoCompanyID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, files, 1)
		assert.Empty(t, files[0].Content)
		assert.Equal(t, "sdd_ORD-1.xml", files[0].Filename)
	})

	t.Run("deletes file and links", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, file.ID))

		found, err := repo.FindByID(ctx, file.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		var links int64
		require.NoError(t, db.DB.Model(&directdebit.SddFileOrder{}).Count(&links).Error)
		assert.Zero(t, links)
		require.NoError(t, db.DB.Model(&directdebit.SddFileMandate{}).Count(&links).Error)
		assert.Zero(t, links)

		assert.ErrorIs(t, repo.Delete(ctx, file.ID), shared.ErrNotFound)
	})
}
