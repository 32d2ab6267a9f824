package handlers

import (
	"net/http"

	"expenseflow/internal/apperr"
	"expenseflow/internal/service"
)

// ListExpenses returns the caller's expenses, newest first.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	expenses, err := h.ledger.ListExpenses(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

// GetExpense returns one of the caller's expenses.
func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	expense, err := h.ledger.GetExpense(r.Context(), id.Email, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": expense})
}

type createExpenseRequest struct {
	Amount       flexAmount `json:"amount"`
	Category     string     `json:"category"`
	Description  string     `json:"description"`
	Date         string     `json:"date"`
	CreditCardID string     `json:"creditCardId"`
}

// CreateExpense records a new expense for the caller.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := req.Amount.pointer()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	expense, err := h.ledger.CreateExpense(r.Context(), id.Email, service.ExpenseInput{
		Amount:       amount,
		Category:     req.Category,
		Description:  req.Description,
		Date:         req.Date,
		CreditCardID: req.CreditCardID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	LoggerFromContext(r.Context()).Info("expense created", "id", expense.ID, "owner", id.Email)
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

type updateExpenseRequest struct {
	Amount      flexAmount `json:"amount"`
	Category    *string    `json:"category"`
	Description *string    `json:"description"`
	Date        *string    `json:"date"`
}

// UpdateExpense changes any subset of amount, category, description and date.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	amount, err := req.Amount.pointer()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	expense, err := h.ledger.UpdateExpense(r.Context(), id.Email, r.PathValue("id"), service.ExpenseUpdate{
		Amount:      amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": expense})
}

// DeleteExpense removes one of the caller's expenses.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ledger.DeleteExpense(r.Context(), id.Email, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListCards returns the caller's credit cards.
func (h *Handlers) ListCards(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cards, err := h.ledger.ListCards(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

type createCardRequest struct {
	Name           string `json:"name"`
	LastFourDigits string `json:"lastFourDigits"`
	Type           string `json:"type"`
}

// CreateCard adds a credit card for the caller.
func (h *Handlers) CreateCard(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req createCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	card, err := h.ledger.CreateCard(r.Context(), id.Email, service.CardInput{
		Name:           req.Name,
		LastFourDigits: req.LastFourDigits,
		Type:           req.Type,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"card": card})
}

// DeleteCard removes the caller's card named by the id query parameter.
func (h *Handlers) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cardID := r.URL.Query().Get("id")
	if cardID == "" {
		h.writeError(w, r, apperr.InvalidInput("Missing card id"))
		return
	}
	if err := h.ledger.DeleteCard(r.Context(), id.Email, cardID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
