package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/database"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return NewFactory(db).GetRepositories()
}

func newPayout(purchaseID uint, status models.PayoutStatus) *models.Payout {
	return &models.Payout{
		PurchaseID:         purchaseID,
		DeveloperUserID:    1,
		DestinationAddress: "dev@getalby.com",
		AmountMsat:         5_000_000,
		Status:             status,
		IdempotencyKey:     uuid.NewString(),
	}
}

func TestPayoutCreateRejectsSecondPayoutForPurchase(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Payout.Create(ctx, newPayout(100, models.PayoutStatusScheduled)))
	err := repos.Payout.Create(ctx, newPayout(100, models.PayoutStatusScheduled))
	assert.ErrorIs(t, err, ErrConflict)

	p, err := repos.Payout.GetByPurchaseID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusScheduled, p.Status)
}

func TestPayoutListDueOrdersOldestFirst(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		purchase uint
		status   models.PayoutStatus
		created  time.Time
	}{
		{1, models.PayoutStatusRetrying, base.Add(2 * time.Minute)},
		{2, models.PayoutStatusScheduled, base},
		{3, models.PayoutStatusSubmitted, base.Add(-time.Hour)},
		{4, models.PayoutStatusScheduled, base.Add(time.Minute)},
		{5, models.PayoutStatusSent, base.Add(-2 * time.Hour)},
	}
	for _, s := range seed {
		p := newPayout(s.purchase, s.status)
		p.CreatedAt = s.created
		require.NoError(t, repos.Payout.Create(ctx, p))
	}

	due, err := repos.Payout.ListDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, []uint{2, 4, 1}, []uint{due[0].PurchaseID, due[1].PurchaseID, due[2].PurchaseID})

	limited, err := repos.Payout.ListDue(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPayoutUpdateIfStatusIsConditional(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	p := newPayout(200, models.PayoutStatusSent)
	require.NoError(t, repos.Payout.Create(ctx, p))

	changed, err := repos.Payout.UpdateIfStatus(ctx, p.ID, models.DueStatuses(), map[string]interface{}{
		"status": models.PayoutStatusSubmitted,
	})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repos.Payout.UpdateIfStatus(ctx, p.ID, []models.PayoutStatus{models.PayoutStatusSent}, map[string]interface{}{
		"last_error": "note",
	})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := repos.Payout.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusSent, got.Status)
	assert.Equal(t, "note", got.LastError)
}

func TestPayoutLookupByWithdrawalID(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	wid := "wd_123"
	p := newPayout(300, models.PayoutStatusSubmitted)
	p.ProviderWithdrawalID = &wid
	p.ProviderMeta = datatypes.NewJSONType(models.NewMockMeta(models.MockWithdrawalSnapshot{
		ID:         wid,
		AmountSats: 5000,
		Invoice:    "lnbc1",
	}))
	require.NoError(t, repos.Payout.Create(ctx, p))

	got, err := repos.Payout.GetByProviderWithdrawalID(ctx, "wd_123")
	require.NoError(t, err)
	assert.Equal(t, uint(300), got.PurchaseID)
	meta := got.ProviderMeta.Data()
	assert.Equal(t, models.PayoutProviderMock, meta.Kind)
	require.NotNil(t, meta.Mock)
	assert.Equal(t, int64(5000), meta.Mock.AmountSats)

	_, err = repos.Payout.GetByProviderWithdrawalID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPayoutCountByStatus(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Payout.Create(ctx, newPayout(1, models.PayoutStatusScheduled)))
	require.NoError(t, repos.Payout.Create(ctx, newPayout(2, models.PayoutStatusScheduled)))
	require.NoError(t, repos.Payout.Create(ctx, newPayout(3, models.PayoutStatusFailed)))

	counts, err := repos.Payout.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.PayoutStatusScheduled])
	assert.Equal(t, int64(1), counts[models.PayoutStatusFailed])
}

func TestTransactionRollsBackOnError(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	p := newPayout(400, models.PayoutStatusScheduled)
	require.NoError(t, repos.Payout.Create(ctx, p))

	err := repos.Transaction(ctx, func(tx *Repositories) error {
		_, err := tx.Payout.UpdateIfStatus(ctx, p.ID, models.DueStatuses(), map[string]interface{}{
			"status": models.PayoutStatusSubmitted,
		})
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := repos.Payout.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusScheduled, got.Status)
}

func TestLedgerListCreatedBetween(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{-time.Hour, 0, time.Hour, 25 * time.Hour} {
		key := uuid.NewString()
		require.NoError(t, repos.Ledger.Insert(ctx, &models.LedgerEntry{
			PurchaseID: uint(i + 1),
			Type:       models.LedgerPayoutSubmitted,
			AmountMsat: 1000,
			DedupeKey:  &key,
			CreatedAt:  base.Add(offset),
		}))
	}

	entries, err := repos.Ledger.ListCreatedBetween(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint(2), entries[0].PurchaseID)
	assert.Equal(t, uint(3), entries[1].PurchaseID)
}

func TestWebhookEventJournal(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	ev := &models.PayoutWebhookEvent{Provider: models.PayoutProviderOpenNode, ProviderWithdrawalID: "wd_x", Status: "confirmed"}
	require.NoError(t, repos.WebhookEvent.Create(ctx, ev))
	require.NoError(t, repos.WebhookEvent.MarkProcessed(ctx, ev.ID, WebhookEventResult{Outcome: "lookup_miss", TriageFlags: "lookup_miss"}))

	clean := &models.PayoutWebhookEvent{Provider: models.PayoutProviderOpenNode, ProviderWithdrawalID: "wd_y", Status: "confirmed"}
	require.NoError(t, repos.WebhookEvent.Create(ctx, clean))
	require.NoError(t, repos.WebhookEvent.MarkProcessed(ctx, clean.ID, WebhookEventResult{Outcome: "sent"}))

	triage, err := repos.WebhookEvent.ListNeedingTriage(ctx, 10)
	require.NoError(t, err)
	require.Len(t, triage, 1)
	assert.Equal(t, "wd_x", triage[0].ProviderWithdrawalID)
	assert.NotNil(t, triage[0].ProcessedAt)
}

func newMySQLMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return db, mock
}

func TestLedgerInsertMySQLIgnoredDuplicateIsConflict(t *testing.T) {
	db, mock := newMySQLMock(t)
	key := "payout_submitted:5"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `ledger_entries`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := NewLedgerRepository(db).Insert(context.Background(), &models.LedgerEntry{
		PurchaseID: 5,
		Type:       models.LedgerPayoutSubmitted,
		AmountMsat: 1000,
		DedupeKey:  &key,
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerInsertMySQLDuplicateErrorIsConflict(t *testing.T) {
	db, mock := newMySQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `ledger_entries`").WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := NewLedgerRepository(db).Insert(context.Background(), &models.LedgerEntry{
		PurchaseID: 5,
		Type:       models.LedgerPayoutFailed,
		AmountMsat: 1000,
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
