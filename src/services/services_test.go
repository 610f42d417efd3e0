package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/state"
	"github.com/username/easyledger/backend/src/storage"
	"github.com/username/easyledger/backend/src/storage/blob"
	"github.com/username/easyledger/backend/src/storage/storagetest"
	"github.com/xuri/excelize/v2"
)

type staticSource struct{ adapter storage.Adapter }

func (s staticSource) Adapter(context.Context) (storage.Adapter, error) { return s.adapter, nil }

// newLedger returns an initialized coordinator over a blob store holding one
// default account with an income and an expense.
func newLedger(t *testing.T) (*state.Coordinator, storage.Adapter, models.Account) {
	t.Helper()
	ctx := context.Background()
	store := blob.New(blob.NewCacheKV())
	require.NoError(t, store.Initialize(ctx))

	acc := storagetest.MustCreateAccount(t, ctx, store, "Cash", true)
	storagetest.MustCreateTransaction(t, ctx, store, acc.ID, models.TransactionTypeIncome, "1500", storagetest.Day(1))
	storagetest.MustCreateTransaction(t, ctx, store, acc.ID, models.TransactionTypeExpense, "20.5", storagetest.Day(2))

	c := state.New(staticSource{adapter: store}, 0)
	require.NoError(t, c.Init(ctx))
	return c, store, acc
}

func TestBackupExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger, _, acc := newLedger(t)
	svc := NewBackupService(ledger, 1<<20)

	var buf bytes.Buffer
	exported, err := svc.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"version": "1.0"`)
	assert.Contains(t, buf.String(), `"amount": 1500`)

	other, _, _ := newLedger(t)
	imported, err := NewBackupService(other, 1<<20).Import(ctx, &buf)
	require.NoError(t, err)
	storagetest.AssertSameDataset(t, exported, imported)

	s := other.Snapshot()
	require.NotNil(t, s.CurrentAccount)
	assert.Equal(t, acc.ID, s.CurrentAccount.ID)
	assert.Len(t, s.Accounts, 1)
}

func TestDecodeBackupRejectsBadInput(t *testing.T) {
	_, err := DecodeBackup(strings.NewReader(`{"accounts": [`), 0)
	assert.ErrorIs(t, err, ErrBackupDecode)

	_, err = DecodeBackup(strings.NewReader(`{"version":"1.0","wallets":[]}`), 0)
	assert.ErrorIs(t, err, ErrBackupDecode)

	_, err = DecodeBackup(strings.NewReader(`{"version":"1.0"} {"version":"1.0"}`), 0)
	assert.ErrorIs(t, err, ErrBackupDecode)

	big := `{"version":"1.0","accounts":[],"categories":[],"transactions":[]` + strings.Repeat(" ", 200) + `}`
	_, err = DecodeBackup(strings.NewReader(big), 64)
	assert.ErrorIs(t, err, ErrBackupTooLarge)
	assert.True(t, IsClientError(err))
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	ledger, _, _ := newLedger(t)
	_, err := NewBackupService(ledger, 0).Import(context.Background(),
		strings.NewReader(`{"version":"2.0","accounts":[],"categories":[],"transactions":[]}`))
	assert.ErrorIs(t, err, storage.ErrUnsupportedVersion)
	assert.Len(t, ledger.Snapshot().Accounts, 1)
}

func TestReportServiceCachesUntilStateChanges(t *testing.T) {
	ctx := context.Background()
	ledger, _, acc := newLedger(t)
	reportCache := cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	svc := NewReportService(ledger, reportCache)

	summary, err := svc.GetSummary(ctx, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1579.5", summary.Balance.String())
	assert.Equal(t, 1, reportCache.ItemCount())

	_, err = ledger.CreateTransaction(ctx, models.NewTransaction{
		AccountID: acc.ID, CategoryID: "food", Amount: summary.Income, Type: models.TransactionTypeExpense, Date: storagetest.Day(3),
	})
	require.NoError(t, err)
	assert.Zero(t, reportCache.ItemCount(), "state change flushes cached summaries")

	summary, err = svc.GetSummary(ctx, acc.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "79.5", summary.Balance.String())
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newLedger(t)

	var buf bytes.Buffer
	require.NoError(t, NewExportService(ledger).WriteTransactions(ctx, &buf, FormatCSV, "", nil))

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), "\ufeff")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Type,Category,Amount,Description,Currency", lines[0])
	assert.Equal(t, "2025-01-02,expense,Food,-20.50,entry 20.5,USD", lines[1])
	assert.Equal(t, "2025-01-01,income,Salary,1500.00,entry 1500,USD", lines[2])
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	ledger, _, _ := newLedger(t)

	var buf bytes.Buffer
	require.NoError(t, NewExportService(ledger).WriteTransactions(ctx, &buf, FormatXLSX, "", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(transactionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "Food", rows[1][2])
	assert.Equal(t, "-20.5", rows[1][3])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	ledger, _, _ := newLedger(t)
	err := NewExportService(ledger).WriteTransactions(context.Background(), &bytes.Buffer{}, "pdf", "", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// racingLedger delivers a settled state change while a summary is being
// computed, as a concurrent action would.
type racingLedger struct {
	*state.Coordinator
	subscribers []func(state.State)
}

func (l *racingLedger) Subscribe(fn func(state.State)) func() {
	l.subscribers = append(l.subscribers, fn)
	return l.Coordinator.Subscribe(fn)
}

func (l *racingLedger) Report(ctx context.Context, accountID string, start, end *time.Time) (models.Summary, error) {
	summary, err := l.Coordinator.Report(ctx, accountID, start, end)
	for _, fn := range l.subscribers {
		fn(l.Coordinator.Snapshot())
	}
	return summary, err
}

func TestReportServiceSkipsCachingWhenStateChangesMidReport(t *testing.T) {
	ctx := context.Background()
	coordinator, _, acc := newLedger(t)
	reportCache := cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	svc := NewReportService(&racingLedger{Coordinator: coordinator}, reportCache)

	summary, err := svc.GetSummary(ctx, acc.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1579.5", summary.Balance.String(), "the caller still gets its summary")
	assert.Zero(t, reportCache.ItemCount(), "a summary computed across a state change is not cached")
}

func TestDecodeBackupAcceptsCalendarDates(t *testing.T) {
	doc := `{"version": "1.0", "exportedAt": "2024-02-01T00:00:00.000Z",
		"accounts": [{"id": "a1", "name": "Cash", "currency": "USD", "initialBalance": 0, "isDefault": true}],
		"categories": [{"id": "food", "name": "Food", "type": "expense", "icon": "", "color": ""}],
		"transactions": [{"id": "t1", "accountId": "a1", "categoryId": "food", "amount": 12, "type": "expense",
			"description": "", "date": "2024-01-15"}]}`

	data, err := DecodeBackup(strings.NewReader(doc), 0)
	require.NoError(t, err)
	require.Len(t, data.Transactions, 1)
	assert.Equal(t, "2024-01-15T00:00:00.000Z", models.FormatTime(data.Transactions[0].Date))
}
