package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/easyledger/backend/src/services"
	"github.com/username/easyledger/backend/src/state"
)

// RouterConfig carries what NewRouter needs beyond the coordinator.
type RouterConfig struct {
	MaxImportSizeBytes int64
	RateLimitRPS       float64
	RateLimitBurst     int
	AllowedOrigins     []string
}

// NewRouter wires the host API over ledger. Every route lives under /api.
func NewRouter(ledger *state.Coordinator, backupService services.BackupService, reportService services.ReportService, exportService services.ExportService, cfg RouterConfig) http.Handler {
	stateHandler := NewStateHandler(ledger)
	accountHandler := NewAccountHandler(ledger)
	transactionHandler := NewTransactionHandler(ledger, exportService)
	categoryHandler := NewCategoryHandler(ledger)
	backupHandler := NewBackupHandler(ledger, backupService, reportService, cfg.MaxImportSizeBytes)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, map[string]string{"message": "easyledger host API is running"}, http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/state", func(r chi.Router) {
			r.Get("/", stateHandler.HandleGetState)
			r.Post("/init", stateHandler.HandleInit)
			r.Put("/current-account", stateHandler.HandleSetCurrentAccount)
			r.Post("/transactions", stateHandler.HandleLoadTransactions)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.HandleListAccounts)
			r.Post("/", accountHandler.HandleCreateAccount)
			r.Put("/{accountID}", accountHandler.HandleUpdateAccount)
			r.Delete("/{accountID}", accountHandler.HandleDeleteAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactionHandler.HandleQueryTransactions)
			r.Post("/", transactionHandler.HandleCreateTransaction)
			r.Get("/export", transactionHandler.HandleExportTransactions)
			r.Put("/{transactionID}", transactionHandler.HandleUpdateTransaction)
			r.Delete("/{transactionID}", transactionHandler.HandleDeleteTransaction)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.HandleListCategories)
			r.Post("/", categoryHandler.HandleCreateCategory)
		})

		r.Get("/backup", backupHandler.HandleExportBackup)
		r.Post("/backup", backupHandler.HandleImportBackup)
		r.Delete("/data", backupHandler.HandleClearData)
		r.Get("/summary", backupHandler.HandleGetSummary)
	})

	return r
}
