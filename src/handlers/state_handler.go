package handlers

import (
	"net/http"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/state"
)

// StateHandler exposes the coordinator's snapshot and its whole-state actions.
type StateHandler struct {
	ledger *state.Coordinator
}

func NewStateHandler(ledger *state.Coordinator) *StateHandler {
	return &StateHandler{ledger: ledger}
}

func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, h.ledger.Snapshot(), http.StatusOK)
}

// HandleInit reloads everything from storage.
func (h *StateHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Init(r.Context()); err != nil {
		sendError(w, r, "initialize ledger", err)
		return
	}
	sendJSON(w, h.ledger.Snapshot(), http.StatusOK)
}

type setCurrentAccountRequest struct {
	AccountID string `json:"accountId"`
}

func (h *StateHandler) HandleSetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	var req setCurrentAccountRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := validation.ValidateID(req.AccountID, "Account"); err != nil {
		sendError(w, r, "switch account", err)
		return
	}
	if err := h.ledger.SetCurrentAccount(r.Context(), models.Account{ID: req.AccountID}); err != nil {
		sendError(w, r, "switch account", err)
		return
	}
	logger.FromContext(r.Context()).Info("Current account switched", "accountID", req.AccountID)
	sendJSON(w, h.ledger.Snapshot(), http.StatusOK)
}

// HandleLoadTransactions replaces the transaction window of the current
// account with the filtered result given in the query string.
func (h *StateHandler) HandleLoadTransactions(w http.ResponseWriter, r *http.Request) {
	opts, err := queryOptionsFromRequest(r)
	if err != nil {
		sendError(w, r, "load transactions", err)
		return
	}
	if err := h.ledger.FetchTransactions(r.Context(), opts); err != nil {
		sendError(w, r, "load transactions", err)
		return
	}
	sendJSON(w, h.ledger.Snapshot().Transactions, http.StatusOK)
}

func queryOptionsFromRequest(r *http.Request) (*models.QueryOptions, error) {
	q := r.URL.Query()
	return validation.QueryInput{
		StartDate:  q.Get("startDate"),
		EndDate:    q.Get("endDate"),
		Type:       q.Get("type"),
		CategoryID: q.Get("categoryId"),
		Limit:      q.Get("limit"),
		Offset:     q.Get("offset"),
	}.Validate()
}
