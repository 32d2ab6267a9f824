package stats

import (
	"testing"
	"time"

	"expenseflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExpenses() []models.Expense {
	return []models.Expense{
		onCard(exp("mar-food", 20, models.CategoryFoodDining, "2024-03-05"), "C"),
		onCard(exp("mar-travel", 60, models.CategoryTravel, "2024-03-20"), "C"),
		exp("apr-food", 30, models.CategoryFoodDining, "2024-04-01"),
		onCard(exp("apr-shop", 90, models.CategoryShopping, "2024-04-02"), "D"),
	}
}

func TestParseView(t *testing.T) {
	v, ok := ParseView("")
	assert.True(t, ok)
	assert.Equal(t, ViewDaily, v)

	v, ok = ParseView("annual")
	assert.True(t, ok)
	assert.Equal(t, ViewAnnual, v)

	_, ok = ParseView("weekly")
	assert.False(t, ok)
}

func TestSelectView(t *testing.T) {
	expenses := sampleExpenses()

	assert.Len(t, SelectView(expenses, ViewDaily, ""), 4)
	assert.Len(t, SelectView(expenses, ViewAnnual, "2024-03"), 4, "annual view shows every expense")

	march := SelectView(expenses, ViewMonthly, "2024-03")
	require.Len(t, march, 2)
	assert.Equal(t, "mar-food", march[0].ID)

	missing := SelectView(expenses, ViewMonthly, "1999-01")
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}

func TestComputeDailyView(t *testing.T) {
	now := time.Date(2024, 4, 2, 18, 0, 0, 0, time.UTC)
	d := Compute(sampleExpenses(), DefaultQuery(), now)

	assert.Equal(t, 200.0, d.Total)
	assert.Equal(t, 90.0, d.Today)
	assert.Equal(t, 120.0, d.Week)
	require.Len(t, d.Months, 2)
	assert.Equal(t, "2024-04", d.Months[0].MonthKey)
	assert.Equal(t, 120.0, d.MaxMonthly)
	require.Len(t, d.Years, 1)
	assert.Len(t, d.Expenses, 4)

	// Daily basis is the grand total.
	assert.Equal(t, models.CategoryShopping, d.Categories[0].Category)
	assert.InDelta(t, 45.0, d.Categories[0].Percentage, 1e-9)

	assert.Equal(t, CardStats{Total: 90, ThisMonth: 90, Count: 1}, d.Cards["D"])
}

func TestComputeMonthlyViewUsesBucketBasis(t *testing.T) {
	now := time.Date(2024, 4, 2, 18, 0, 0, 0, time.UTC)
	d := Compute(sampleExpenses(), DefaultQuery().SelectMonth("2024-03"), now)

	assert.Equal(t, 200.0, d.Total, "headline totals stay all-time")
	require.Len(t, d.Expenses, 2)
	assert.Equal(t, models.CategoryTravel, d.Categories[0].Category)
	assert.InDelta(t, 75.0, d.Categories[0].Percentage, 1e-9)
	assert.InDelta(t, 25.0, d.Categories[1].Percentage, 1e-9)

	empty := Compute(sampleExpenses(), DefaultQuery().SelectMonth("1999-01"), now)
	assert.Empty(t, empty.Expenses)
	for _, ct := range empty.Categories {
		assert.Zero(t, ct.Percentage)
	}
}

func TestComputeAnnualView(t *testing.T) {
	now := time.Date(2024, 4, 2, 18, 0, 0, 0, time.UTC)
	d := Compute(sampleExpenses(), DefaultQuery().SelectAnnual(), now)

	assert.Len(t, d.Expenses, 4)
	require.Len(t, d.Years, 1)
	assert.Equal(t, 200.0, d.Years[0].Total)
	assert.InDelta(t, 45.0, d.Categories[0].Percentage, 1e-9)
}

func TestComputeCardFilterRebasesEverything(t *testing.T) {
	now := time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC)
	d := Compute(sampleExpenses(), DefaultQuery().SelectCard("C"), now)

	assert.Equal(t, 80.0, d.Total)
	assert.Equal(t, 60.0, d.Today)
	require.Len(t, d.Months, 1)
	assert.Equal(t, "2024-03", d.Months[0].MonthKey)
	assert.Len(t, d.Expenses, 2)
	assert.InDelta(t, 75.0, d.Categories[0].Percentage, 1e-9)

	// Card statistics ignore the card filter.
	assert.Len(t, d.Cards, 2)
	assert.Equal(t, 90.0, d.Cards["D"].Total)
}

func TestComputeCategoryFilterOnlyNarrowsList(t *testing.T) {
	now := time.Date(2024, 4, 2, 18, 0, 0, 0, time.UTC)
	d := Compute(sampleExpenses(), DefaultQuery().SelectCategory(string(models.CategoryFoodDining)), now)

	require.Len(t, d.Expenses, 2)
	for _, e := range d.Expenses {
		assert.Equal(t, models.CategoryFoodDining, e.Category)
	}
	assert.Equal(t, 200.0, d.Total)
	assert.Equal(t, 90.0, d.Categories[0].Total)
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	expenses := sampleExpenses()
	before := append([]models.Expense(nil), expenses...)
	Compute(expenses, DefaultQuery().SelectMonth("2024-04").SelectCategory("Shopping"), time.Now())
	assert.Equal(t, before, expenses)
}

func TestQueryTransitions(t *testing.T) {
	q := DefaultQuery()
	assert.Equal(t, Query{View: ViewDaily, Category: All, CardID: All}, q)

	q = q.SelectCategory("Travel").SelectCard("C")
	assert.Equal(t, ViewDaily, q.View)
	assert.Equal(t, "Travel", q.Category)

	annual := q.SelectAnnual()
	assert.Equal(t, ViewAnnual, annual.View)
	assert.Equal(t, "Travel", annual.Category, "daily and annual share a basis")
	assert.Equal(t, "C", annual.CardID)

	monthly := q.SelectMonth("2024-03")
	assert.Equal(t, ViewMonthly, monthly.View)
	assert.Equal(t, "2024-03", monthly.MonthKey)
	assert.Equal(t, All, monthly.Category, "entering a month resets the category filter")
	assert.Equal(t, "C", monthly.CardID, "card filter is orthogonal to the view")

	filtered := monthly.SelectCategory("Food & Dining")
	assert.Equal(t, "2024-03", filtered.MonthKey)

	back := filtered.Back()
	assert.Equal(t, ViewDaily, back.View)
	assert.Empty(t, back.MonthKey)
	assert.Equal(t, All, back.Category)

	other := filtered.SelectMonth("2024-04")
	assert.Equal(t, All, other.Category)
	same := filtered.SelectMonth("2024-03")
	assert.Equal(t, "Food & Dining", same.Category)

	assert.Equal(t, ViewDaily, DefaultQuery().SelectAnnual().Back().View)
	assert.Equal(t, All, DefaultQuery().SelectCard("").CardID)
}
