package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/services"
	"github.com/username/easyledger/backend/src/state"
	"github.com/username/easyledger/backend/src/storage"
	"github.com/username/easyledger/backend/src/storage/blob"
	"github.com/username/easyledger/backend/src/storage/storagetest"
)

type staticSource struct{ adapter storage.Adapter }

func (s staticSource) Adapter(context.Context) (storage.Adapter, error) { return s.adapter, nil }

type testServer struct {
	handler http.Handler
	ledger  *state.Coordinator
	account models.Account
}

func newTestServer(t *testing.T, cfg RouterConfig) testServer {
	t.Helper()
	ctx := context.Background()
	store := blob.New(blob.NewCacheKV())
	require.NoError(t, store.Initialize(ctx))
	acc := storagetest.MustCreateAccount(t, ctx, store, "Cash", true)
	storagetest.MustCreateTransaction(t, ctx, store, acc.ID, models.TransactionTypeIncome, "1500", storagetest.Day(1))
	storagetest.MustCreateTransaction(t, ctx, store, acc.ID, models.TransactionTypeExpense, "20.5", storagetest.Day(2))

	ledger := state.New(staticSource{adapter: store}, 0)
	require.NoError(t, ledger.Init(ctx))

	if cfg.MaxImportSizeBytes == 0 {
		cfg.MaxImportSizeBytes = 1 << 20
	}
	handler := NewRouter(ledger,
		services.NewBackupService(ledger, cfg.MaxImportSizeBytes),
		services.NewReportService(ledger, cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)),
		services.NewExportService(ledger),
		cfg)
	return testServer{handler: handler, ledger: ledger, account: acc}
}

func (s testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	return decodeBody[map[string]string](t, rr)["error"]
}

func TestGetStateReturnsSnapshot(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	got := decodeBody[state.State](t, rr)
	assert.Equal(t, state.PhaseReady, got.Phase)
	require.NotNil(t, got.CurrentAccount)
	assert.Equal(t, srv.account.ID, got.CurrentAccount.ID)
	assert.Len(t, got.Transactions, 2)
	assert.Len(t, got.Categories, 4)
}

func TestAccountLifecycle(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/api/accounts", map[string]any{
		"name": "  Savings ", "currency": "eur", "initialBalance": "250.75",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[models.Account](t, rr)
	assert.Equal(t, "Savings", created.Name)
	assert.Equal(t, "EUR", created.Currency)
	assert.Equal(t, "250.75", created.InitialBalance.String())

	rr = srv.do(t, http.MethodPut, "/api/accounts/"+created.ID, map[string]any{
		"name": "Rainy day", "currency": "EUR", "initialBalance": 300,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decodeBody[models.Account](t, rr)
	assert.Equal(t, "Rainy day", updated.Name)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	rr = srv.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Account](t, rr), 2)

	rr = srv.do(t, http.MethodDelete, "/api/accounts/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Len(t, srv.ledger.Snapshot().Accounts, 1)
}

func TestUpdateUnknownAccountIsNoContent(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	rr := srv.do(t, http.MethodPut, "/api/accounts/missing", map[string]any{"name": "Ghost", "currency": "USD"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCreateAccountValidation(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "", "currency": "USD"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorMessage(t, rr), "Name")

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorMessage(t, rec))
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	payload := map[string]any{
		"accountId": srv.account.ID, "categoryId": "food", "amount": "12.30",
		"type": "expense", "description": "<b>Lunch</b>", "date": "2025-01-05",
	}

	rr := srv.do(t, http.MethodPost, "/api/transactions", payload)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[models.Transaction](t, rr)
	assert.Equal(t, "Lunch", created.Description)
	assert.Equal(t, created.ID, srv.ledger.Snapshot().Transactions[0].ID, "newest transaction heads the window")

	payload["amount"] = "15"
	rr = srv.do(t, http.MethodPut, "/api/transactions/"+created.ID, payload)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Equal(t, "15", srv.ledger.Snapshot().Transactions[0].Amount.String())

	rr = srv.do(t, http.MethodDelete, "/api/transactions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Len(t, srv.ledger.Snapshot().Transactions, 2)
}

func TestCreateTransactionRejectsUnknownReferences(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId": srv.account.ID, "categoryId": "nope", "amount": 5,
		"type": "expense", "date": "2025-01-05",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"accountId": srv.account.ID, "categoryId": "food", "amount": -5,
		"type": "expense", "date": "2025-01-05",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestQueryTransactionsWithFilters(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodGet, "/api/transactions?type=income", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeBody[transactionsResponse](t, rr)
	assert.Equal(t, srv.account.ID, got.Account.ID)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, models.TransactionTypeIncome, got.Transactions[0].Type)
	assert.Len(t, srv.ledger.Snapshot().Transactions, 2, "a query leaves the window alone")

	rr = srv.do(t, http.MethodGet, "/api/transactions?startDate=2025-02-01&endDate=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/transactions?accountId=missing", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLoadTransactionsReplacesWindow(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/api/state/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decodeBody[[]models.Transaction](t, rr), 1)
	assert.Len(t, srv.ledger.Snapshot().Transactions, 1)
}

func TestSetCurrentAccount(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodPut, "/api/state/current-account", map[string]string{"accountId": "missing"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Card", "currency": "USD"})
	require.Equal(t, http.StatusCreated, rr.Code)
	card := decodeBody[models.Account](t, rr)

	rr = srv.do(t, http.MethodPut, "/api/state/current-account", map[string]string{"accountId": card.ID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeBody[state.State](t, rr)
	assert.Equal(t, card.ID, got.CurrentAccount.ID)
	assert.Empty(t, got.Transactions)
}

func TestCreateCategory(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Pets", "type": "expense"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	category := decodeBody[models.Category](t, rr)
	assert.False(t, category.IsSystem)
	assert.Equal(t, "#6B7280", category.Color)

	rr = srv.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]models.Category](t, rr), 5)
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	summary := decodeBody[models.Summary](t, rr)
	assert.Equal(t, "1579.5", summary.Balance.String())

	rr = srv.do(t, http.MethodGet, "/api/summary?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExportTransactions(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodGet, "/api/transactions/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "transactions.csv")
	assert.Contains(t, rr.Body.String(), "Date,Type,Category,Amount,Description,Currency")

	rr = srv.do(t, http.MethodGet, "/api/transactions/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PK", rr.Body.String()[:2], "xlsx is a zip archive")

	rr = srv.do(t, http.MethodGet, "/api/transactions/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func multipartUpload(t *testing.T, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="backup.json"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (s testServer) upload(t *testing.T, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, formType := multipartUpload(t, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/api/backup", body)
	req.Header.Set("Content-Type", formType)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestBackupExportThenImport(t *testing.T) {
	source := newTestServer(t, RouterConfig{})
	rr := source.do(t, http.MethodGet, "/api/backup", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "easyledger-backup-")
	exported := rr.Body.Bytes()

	target := newTestServer(t, RouterConfig{})
	rr = target.upload(t, "application/json", exported)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	counts := decodeBody[importResponse](t, rr)
	assert.Equal(t, importResponse{Accounts: 1, Categories: 4, Transactions: 2}, counts)

	snapshot := target.ledger.Snapshot()
	require.NotNil(t, snapshot.CurrentAccount)
	assert.Equal(t, source.account.ID, snapshot.CurrentAccount.ID)
}

func TestBackupImportRejections(t *testing.T) {
	srv := newTestServer(t, RouterConfig{MaxImportSizeBytes: 512})

	rr := srv.upload(t, "image/png", []byte(`{"version":"1.0"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.upload(t, "application/json", []byte("\x00\x01binary"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.upload(t, "application/json", []byte(`{"version":"9.9","accounts":[],"categories":[],"transactions":[]}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = srv.upload(t, "application/json", []byte(`{"version":"1.0","accounts":[],"categories":[],"transactions":[{"id":"t1","accountId":"ghost","categoryId":"food","amount":1,"type":"expense","date":"2025-01-01T00:00:00Z"}]}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = srv.upload(t, "application/json", []byte(`{"version":"1.0"`+strings.Repeat(" ", 1024)+`}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Len(t, srv.ledger.Snapshot().Accounts, 1, "rejected imports leave the ledger untouched")
}

func TestClearData(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	rr := srv.do(t, http.MethodDelete, "/api/data", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	snapshot := srv.ledger.Snapshot()
	assert.Empty(t, snapshot.Accounts)
	assert.Nil(t, snapshot.CurrentAccount)
	assert.Len(t, snapshot.Categories, 4, "system categories are seeded again")
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/state", nil).Code)
	rr := srv.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestCORSMiddleware(t *testing.T) {
	srv := newTestServer(t, RouterConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.BackendError("read", assert.AnError), http.StatusInternalServerError},
		{storage.ErrInvalidReference, http.StatusUnprocessableEntity},
		{storage.ErrConflict, http.StatusConflict},
		{services.ErrBackupTooLarge, http.StatusBadRequest},
		{state.ErrUnknownAccount, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), tt.err.Error())
	}
}
