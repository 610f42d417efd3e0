package handlers

import (
	"net/http"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/state"
)

type CategoryHandler struct {
	ledger *state.Coordinator
}

func NewCategoryHandler(ledger *state.Coordinator) *CategoryHandler {
	return &CategoryHandler{ledger: ledger}
}

func (h *CategoryHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.FetchCategories(r.Context()); err != nil {
		sendError(w, r, "load categories", err)
		return
	}
	sendJSON(w, h.ledger.Snapshot().Categories, http.StatusOK)
}

func (h *CategoryHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var input validation.CategoryInput
	if !decodeJSONBody(w, r, &input) {
		return
	}
	newCategory, err := input.Validate()
	if err != nil {
		sendError(w, r, "create category", err)
		return
	}
	category, err := h.ledger.CreateCategory(r.Context(), newCategory)
	if err != nil {
		sendError(w, r, "create category", err)
		return
	}
	logger.FromContext(r.Context()).Info("Category created", "categoryID", category.ID)
	sendJSON(w, category, http.StatusCreated)
}
