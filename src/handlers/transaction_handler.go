// backend/src/handlers/transaction_handler.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/services"
	"github.com/username/easyledger/backend/src/state"
)

type TransactionHandler struct {
	ledger        *state.Coordinator
	exportService services.ExportService
}

func NewTransactionHandler(ledger *state.Coordinator, exportService services.ExportService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, exportService: exportService}
}

type transactionsResponse struct {
	Account      models.Account       `json:"account"`
	Transactions []models.Transaction `json:"transactions"`
}

// HandleQueryTransactions reads an account's transactions straight from
// storage without touching the coordinator's window. accountId defaults to
// the current account.
func (h *TransactionHandler) HandleQueryTransactions(w http.ResponseWriter, r *http.Request) {
	opts, err := queryOptionsFromRequest(r)
	if err != nil {
		sendError(w, r, "query transactions", err)
		return
	}
	account, txs, err := h.ledger.QueryTransactions(r.Context(), r.URL.Query().Get("accountId"), opts)
	if err != nil {
		sendError(w, r, "query transactions", err)
		return
	}
	sendJSON(w, transactionsResponse{Account: account, Transactions: txs}, http.StatusOK)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var input validation.TransactionInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	newTx, err := input.Validate()
	if err != nil {
		sendError(w, r, "create transaction", err)
		return
	}

	tx, err := h.ledger.CreateTransaction(r.Context(), newTx)
	if err != nil {
		sendError(w, r, "create transaction", err)
		return
	}
	logger.FromContext(r.Context()).Info("Transaction created", "transactionID", tx.ID, "accountID", tx.AccountID)
	sendJSON(w, tx, http.StatusCreated)
}

// HandleUpdateTransaction replaces a transaction's fields. Unknown ids are a
// no-op, so the response carries no body.
func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var input validation.TransactionInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	fields, err := input.Validate()
	if err != nil {
		sendError(w, r, "update transaction", err)
		return
	}

	tx := models.Transaction{
		ID:           chi.URLParam(r, "transactionID"),
		AccountID:    fields.AccountID,
		CategoryID:   fields.CategoryID,
		Amount:       fields.Amount,
		Type:         fields.Type,
		Description:  fields.Description,
		Date:         fields.Date,
		ReceiptImage: fields.ReceiptImage,
	}
	if err := h.ledger.UpdateTransaction(r.Context(), tx); err != nil {
		sendError(w, r, "update transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	if err := h.ledger.DeleteTransaction(r.Context(), id); err != nil {
		sendError(w, r, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var exportContentTypes = map[services.ExportFormat]string{
	services.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	services.FormatCSV:  "text/csv; charset=utf-8",
}

// HandleExportTransactions streams an account's transactions as xlsx (the
// default) or csv.
func (h *TransactionHandler) HandleExportTransactions(w http.ResponseWriter, r *http.Request) {
	format := services.ExportFormat(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = services.FormatXLSX
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		sendError(w, r, "export transactions", fmt.Errorf("%w: %q", services.ErrUnsupportedFormat, string(format)))
		return
	}
	opts, err := queryOptionsFromRequest(r)
	if err != nil {
		sendError(w, r, "export transactions", err)
		return
	}

	// Build into memory first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.exportService.WriteTransactions(r.Context(), &buf, format, r.URL.Query().Get("accountId"), opts); err != nil {
		sendError(w, r, "export transactions", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions.%s"`, format))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context()).Warn("Export response interrupted", "error", err)
	}
}
