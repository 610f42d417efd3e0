// backend/src/handlers/account_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/state"
)

type AccountHandler struct {
	ledger *state.Coordinator
}

func NewAccountHandler(ledger *state.Coordinator) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.FetchAccounts(r.Context()); err != nil {
		sendError(w, r, "load accounts", err)
		return
	}
	sendJSON(w, h.ledger.Snapshot().Accounts, http.StatusOK)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var input validation.AccountInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	newAccount, err := input.Validate()
	if err != nil {
		sendError(w, r, "create account", err)
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), newAccount)
	if err != nil {
		sendError(w, r, "create account", err)
		return
	}
	logger.FromContext(r.Context()).Info("Account created", "accountID", account.ID)
	sendJSON(w, account, http.StatusCreated)
}

// HandleUpdateAccount replaces the editable fields of an account. Updating an
// id that does not exist changes nothing and answers 204.
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "accountID")
	var input validation.AccountInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	fields, err := input.Validate()
	if err != nil {
		sendError(w, r, "update account", err)
		return
	}

	account := models.Account{
		ID:             id,
		Name:           fields.Name,
		Currency:       fields.Currency,
		InitialBalance: fields.InitialBalance,
		IsDefault:      fields.IsDefault,
	}
	if err := h.ledger.UpdateAccount(r.Context(), account); err != nil {
		sendError(w, r, "update account", err)
		return
	}
	for _, a := range h.ledger.Snapshot().Accounts {
		if a.ID == id {
			sendJSON(w, a, http.StatusOK)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "accountID")
	if err := h.ledger.DeleteAccount(r.Context(), id); err != nil {
		sendError(w, r, "delete account", err)
		return
	}
	logger.FromContext(r.Context()).Info("Account deleted", "accountID", id)
	w.WriteHeader(http.StatusNoContent)
}
