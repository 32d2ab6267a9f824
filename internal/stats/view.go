package stats

import (
	"time"

	"expenseflow/internal/models"
)

// View selects which expense subset feeds the derived statistics.
type View string

const (
	ViewDaily   View = "daily"
	ViewMonthly View = "monthly"
	ViewAnnual  View = "annual"
)

// ParseView maps s to a View. An empty string is the daily view.
func ParseView(s string) (View, bool) {
	switch v := View(s); v {
	case ViewDaily, ViewMonthly, ViewAnnual:
		return v, true
	case "":
		return ViewDaily, true
	}
	return "", false
}

// SelectView returns the expenses shown by view. The monthly view yields the
// members of the monthKey bucket, or nothing if there is no such bucket. The
// annual view lists yearly buckets for navigation only and shows every expense.
func SelectView(expenses []models.Expense, view View, monthKey string) []models.Expense {
	if view != ViewMonthly {
		return expenses
	}
	if b, ok := findMonth(GroupByMonth(expenses), monthKey); ok {
		return b.Expenses
	}
	return []models.Expense{}
}

func findMonth(buckets []MonthlyBucket, key string) (MonthlyBucket, bool) {
	for _, b := range buckets {
		if b.MonthKey == key {
			return b, true
		}
	}
	return MonthlyBucket{}, false
}

// Query is the state of the view selector: a view plus the orthogonal
// category and card filters. Transitions return a new Query.
type Query struct {
	View     View   `json:"view"`
	MonthKey string `json:"month,omitempty"`
	Category string `json:"category"`
	CardID   string `json:"card"`
}

// DefaultQuery is the daily view with no filters.
func DefaultQuery() Query {
	return Query{View: ViewDaily, Category: All, CardID: All}
}

func (q Query) normalized() Query {
	if q.View == "" {
		q.View = ViewDaily
	}
	if q.View != ViewMonthly {
		q.MonthKey = ""
	}
	if q.Category == "" {
		q.Category = All
	}
	if q.CardID == "" {
		q.CardID = All
	}
	return q
}

// moveTo switches view. The category filter resets when the expense basis changes.
func (q Query) moveTo(view View, monthKey string) Query {
	prev := q.normalized()
	next := prev
	next.View = view
	next.MonthKey = monthKey
	next = next.normalized()
	if basisOf(prev) != basisOf(next) {
		next.Category = All
	}
	return next
}

// basisOf identifies the expense subset a view shows.
func basisOf(q Query) string {
	if q.View == ViewMonthly {
		return "month:" + q.MonthKey
	}
	return All
}

// SelectMonth drills into the month bucket key.
func (q Query) SelectMonth(key string) Query { return q.moveTo(ViewMonthly, key) }

// SelectDaily switches to the daily view.
func (q Query) SelectDaily() Query { return q.moveTo(ViewDaily, "") }

// SelectAnnual switches to the annual view.
func (q Query) SelectAnnual() Query { return q.moveTo(ViewAnnual, "") }

// Back leaves a drill-down or the annual view for the daily view.
func (q Query) Back() Query { return q.SelectDaily() }

// SelectCategory sets the category filter without changing the view.
func (q Query) SelectCategory(category string) Query {
	q = q.normalized()
	q.Category = category
	return q.normalized()
}

// SelectCard sets the card filter without changing the view.
func (q Query) SelectCard(cardID string) Query {
	q = q.normalized()
	q.CardID = cardID
	return q.normalized()
}

// Dashboard is everything derived from one snapshot under one Query.
type Dashboard struct {
	Query      Query                `json:"query"`
	Total      float64              `json:"totalExpenses"`
	Today      float64              `json:"todayExpenses"`
	Week       float64              `json:"weeklyExpenses"`
	Months     []MonthlyBucket      `json:"monthlyData"`
	Years      []AnnualBucket       `json:"annualData"`
	MaxMonthly float64              `json:"maxMonthlyExpense"`
	Categories []CategoryTotal      `json:"categoryTotals"`
	Expenses   []models.Expense     `json:"filteredExpenses"`
	Cards      map[string]CardStats `json:"cardStats"`
}

// Compute derives the dashboard for q. A selected card re-bases every figure
// except Cards, which always covers the full snapshot.
func Compute(expenses []models.Expense, q Query, now time.Time) Dashboard {
	q = q.normalized()
	base := FilterCard(expenses, q.CardID)
	total := Total(base)
	months := GroupByMonth(base)

	view := base
	basis := total
	if q.View == ViewMonthly {
		view = []models.Expense{}
		basis = 0
		if b, ok := findMonth(months, q.MonthKey); ok {
			view = b.Expenses
			basis = b.Total
		}
	}

	return Dashboard{
		Query:      q,
		Total:      total,
		Today:      Today(base, now),
		Week:       Trailing7Days(base, now),
		Months:     months,
		Years:      GroupByYear(base),
		MaxMonthly: MaxMonthly(months),
		Categories: CategoryTotals(view, basis),
		Expenses:   FilterCategory(view, q.Category),
		Cards:      CardStatistics(expenses, now),
	}
}
