// Package stats derives spending totals, period buckets and category breakdowns
// from an in-memory snapshot of one owner's expenses. Every function is pure:
// inputs are never modified and results are rebuilt from scratch on each call.
package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"expenseflow/internal/models"
)

// All disables a category or card filter.
const All = "all"

// MonthlyBucket groups the expenses of one calendar month.
type MonthlyBucket struct {
	MonthKey   string           `json:"monthKey"`
	Label      string           `json:"month"`
	ShortLabel string           `json:"shortMonth"`
	Year       int              `json:"year"`
	Total      float64          `json:"total"`
	Count      int              `json:"count"`
	Expenses   []models.Expense `json:"expenses"`
}

// AnnualBucket groups the expenses of one calendar year.
type AnnualBucket struct {
	Year     int              `json:"year"`
	Total    float64          `json:"total"`
	Count    int              `json:"count"`
	Expenses []models.Expense `json:"expenses"`
}

// CategoryTotal is the spend of one category relative to a basis total.
type CategoryTotal struct {
	Category   models.Category `json:"name"`
	Icon       string          `json:"icon"`
	Color      string          `json:"color"`
	Total      float64         `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// CardStats summarizes the expenses charged to one card.
type CardStats struct {
	Total     float64 `json:"total"`
	ThisMonth float64 `json:"thisMonth"`
	Count     int     `json:"count"`
}

// ParseDate reads an expense date as local midnight in loc.
// Legacy RFC 3339 values are accepted and reduced to their calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.ParseInLocation(models.DateLayout, s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}

func amountOf(e models.Expense) float64 {
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return 0
	}
	return e.Amount
}

// Total sums every amount. An empty slice yields 0.
func Total(expenses []models.Expense) float64 {
	var sum float64
	for _, e := range expenses {
		sum += amountOf(e)
	}
	return sum
}

// Today sums the expenses dated on now's calendar day in now's location.
func Today(expenses []models.Expense, now time.Time) float64 {
	y, m, d := now.Date()
	var sum float64
	for _, e := range expenses {
		t, ok := ParseDate(e.Date, now.Location())
		if !ok {
			continue
		}
		if ty, tm, td := t.Date(); ty == y && tm == m && td == d {
			sum += amountOf(e)
		}
	}
	return sum
}

// Trailing7Days sums the expenses whose date falls in [now-7d, now], both ends inclusive.
func Trailing7Days(expenses []models.Expense, now time.Time) float64 {
	from := now.Add(-7 * 24 * time.Hour)
	var sum float64
	for _, e := range expenses {
		t, ok := ParseDate(e.Date, now.Location())
		if !ok {
			continue
		}
		if !t.Before(from) && !t.After(now) {
			sum += amountOf(e)
		}
	}
	return sum
}

// MonthKey returns the YYYY-MM key of t.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// GroupByMonth buckets expenses by calendar month, most recent month first.
// Expenses with an unparsable date are left out.
func GroupByMonth(expenses []models.Expense) []MonthlyBucket {
	index := make(map[string]int)
	var buckets []MonthlyBucket
	for _, e := range expenses {
		t, ok := ParseDate(e.Date, time.UTC)
		if !ok {
			continue
		}
		key := MonthKey(t)
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			month := t.Month().String()
			buckets = append(buckets, MonthlyBucket{
				MonthKey:   key,
				Label:      fmt.Sprintf("%s %d", month, t.Year()),
				ShortLabel: month[:3],
				Year:       t.Year(),
			})
		}
		b := &buckets[i]
		b.Total += amountOf(e)
		b.Count++
		b.Expenses = append(b.Expenses, e)
	}

	// Zero-padded keys sort chronologically as strings.
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].MonthKey > buckets[j].MonthKey })
	return buckets
}

// GroupByYear buckets expenses by calendar year, most recent year first.
// Expenses with an unparsable date are left out.
func GroupByYear(expenses []models.Expense) []AnnualBucket {
	index := make(map[int]int)
	var buckets []AnnualBucket
	for _, e := range expenses {
		t, ok := ParseDate(e.Date, time.UTC)
		if !ok {
			continue
		}
		i, seen := index[t.Year()]
		if !seen {
			i = len(buckets)
			index[t.Year()] = i
			buckets = append(buckets, AnnualBucket{Year: t.Year()})
		}
		b := &buckets[i]
		b.Total += amountOf(e)
		b.Count++
		b.Expenses = append(b.Expenses, e)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Year > buckets[j].Year })
	return buckets
}

// MaxMonthly returns the largest bucket total, or 0.
func MaxMonthly(buckets []MonthlyBucket) float64 {
	var highest float64
	for _, b := range buckets {
		if b.Total > highest {
			highest = b.Total
		}
	}
	return highest
}

// CategoryTotals computes one entry per known category, including categories
// without spend, sorted by total descending. Percentages are relative to basis
// and are all zero when basis is not positive.
func CategoryTotals(expenses []models.Expense, basis float64) []CategoryTotal {
	totals := make([]CategoryTotal, len(models.Categories))
	index := make(map[models.Category]int, len(models.Categories))
	for i, c := range models.Categories {
		meta := c.Meta()
		totals[i] = CategoryTotal{Category: c, Icon: meta.Icon, Color: meta.Color}
		index[c] = i
	}

	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			continue
		}
		totals[i].Total += amountOf(e)
		totals[i].Count++
	}

	if basis > 0 {
		for i := range totals {
			totals[i].Percentage = totals[i].Total / basis * 100
		}
	}

	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Total > totals[j].Total })
	return totals
}

// FilterCategory keeps the expenses of one category. All keeps everything.
func FilterCategory(expenses []models.Expense, category string) []models.Expense {
	if category == All || category == "" {
		return expenses
	}
	return filter(expenses, func(e models.Expense) bool { return string(e.Category) == category })
}

// FilterCard keeps the expenses charged to one card. All keeps everything.
func FilterCard(expenses []models.Expense, cardID string) []models.Expense {
	if cardID == All || cardID == "" {
		return expenses
	}
	return filter(expenses, func(e models.Expense) bool { return e.CreditCardID == cardID })
}

func filter(expenses []models.Expense, keep func(models.Expense) bool) []models.Expense {
	out := []models.Expense{}
	for _, e := range expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// CardStatistics summarizes every referenced card in a single pass. ThisMonth
// covers expenses dated in now's calendar month. Orphaned card ids are reported
// like any other.
func CardStatistics(expenses []models.Expense, now time.Time) map[string]CardStats {
	stats := make(map[string]CardStats)
	y, m, _ := now.Date()
	for _, e := range expenses {
		if e.CreditCardID == "" {
			continue
		}
		s := stats[e.CreditCardID]
		amount := amountOf(e)
		s.Total += amount
		s.Count++
		if t, ok := ParseDate(e.Date, now.Location()); ok && t.Year() == y && t.Month() == m {
			s.ThisMonth += amount
		}
		stats[e.CreditCardID] = s
	}
	return stats
}
