package handlers

import (
	"net/http"
	"time"

	"expenseflow/internal/apperr"
	"expenseflow/internal/models"
	"expenseflow/internal/stats"
)

// DashboardResponse is the aggregated view of the caller's ledger.
type DashboardResponse struct {
	stats.Dashboard
	User        userResponse        `json:"user"`
	CreditCards []models.CreditCard `json:"creditCards"`
	Timezone    string              `json:"timezone"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// parseQuery reads view, month, category and card from the query string.
func parseQuery(r *http.Request) (stats.Query, error) {
	params := r.URL.Query()
	q := stats.DefaultQuery()

	view, ok := stats.ParseView(params.Get("view"))
	if !ok {
		return q, apperr.InvalidInput("Unknown view")
	}
	switch view {
	case stats.ViewMonthly:
		month := params.Get("month")
		if _, err := time.Parse("2006-01", month); err != nil {
			return q, apperr.InvalidInput("Month must be YYYY-MM")
		}
		q = q.SelectMonth(month)
	case stats.ViewAnnual:
		q = q.SelectAnnual()
	}

	if card := params.Get("card"); card != "" {
		q = q.SelectCard(card)
	}
	if category := params.Get("category"); category != "" && category != stats.All {
		c, ok := models.ParseCategory(category)
		if !ok {
			return q, apperr.InvalidInput("Unknown category")
		}
		q = q.SelectCategory(string(c))
	}
	return q, nil
}

// Dashboard computes totals, buckets and category breakdowns over the caller's
// expenses. The tz parameter overrides the server time zone for day and month
// boundaries.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, err := h.identity(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	loc := h.opts.Location
	if tz := r.URL.Query().Get("tz"); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			h.writeError(w, r, apperr.InvalidInput("Unknown time zone"))
			return
		}
	}

	expenses, err := h.ledger.ListExpenses(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cards, err := h.ledger.ListCards(r.Context(), id.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.now().In(loc)
	writeJSON(w, http.StatusOK, DashboardResponse{
		Dashboard:   stats.Compute(expenses, q, now),
		User:        userResponse{Email: id.Email, DisplayName: id.DisplayName},
		CreditCards: cards,
		Timezone:    loc.String(),
		GeneratedAt: now,
	})
}
