package client

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"expenseflow/internal/models"
	"expenseflow/internal/stats"
)

// API is the part of the server API the ledger needs. *Client implements it.
type API interface {
	ListExpenses(ctx context.Context) ([]models.Expense, error)
	CreateExpense(ctx context.Context, e NewExpense) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ListCards(ctx context.Context) ([]models.CreditCard, error)
	CreateCard(ctx context.Context, c NewCard) (*models.CreditCard, error)
	DeleteCard(ctx context.Context, id string) error
}

// Ledger holds one user's expenses and cards in memory. Dashboards are
// recomputed from the snapshot on every call. Mutations go to the server;
// deletions are applied locally first and undone if the server refuses them.
type Ledger struct {
	api API
	now func() time.Time

	mu       sync.Mutex
	expenses []models.Expense
	cards    []models.CreditCard
	query    stats.Query
}

// NewLedger returns an empty ledger backed by api.
func NewLedger(api API) *Ledger {
	return &Ledger{api: api, now: time.Now, query: stats.DefaultQuery()}
}

// WithClock sets the clock used for dashboards and returns l.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Load fetches expenses and cards, replacing the snapshot.
func (l *Ledger) Load(ctx context.Context) error {
	expenses, err := l.api.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	cards, err := l.api.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}

	l.mu.Lock()
	l.expenses = expenses
	l.cards = cards
	l.mu.Unlock()
	return nil
}

// Expenses returns a copy of the expense snapshot.
func (l *Ledger) Expenses() []models.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.expenses)
}

// Cards returns a copy of the card snapshot.
func (l *Ledger) Cards() []models.CreditCard {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.cards)
}

// Card resolves a card id. Ids of deleted cards resolve to no card.
func (l *Ledger) Card(id string) (models.CreditCard, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.IndexFunc(l.cards, func(c models.CreditCard) bool { return c.ID == id })
	if i < 0 {
		return models.CreditCard{}, false
	}
	return l.cards[i], true
}

// Query returns the current view selection.
func (l *Ledger) Query() stats.Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Navigate applies a view transition such as stats.Query.SelectMonth.
func (l *Ledger) Navigate(move func(stats.Query) stats.Query) stats.Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.query = move(l.query)
	return l.query
}

// Dashboard computes the statistics of the snapshot under the current query.
func (l *Ledger) Dashboard() stats.Dashboard {
	l.mu.Lock()
	expenses, q := l.expenses, l.query
	l.mu.Unlock()
	return stats.Compute(expenses, q, l.now())
}

// AddExpense creates an expense and re-fetches the expense list.
func (l *Ledger) AddExpense(ctx context.Context, e NewExpense) (*models.Expense, error) {
	created, err := l.api.CreateExpense(ctx, e)
	if err != nil {
		return nil, err
	}
	expenses, err := l.api.ListExpenses(ctx)
	if err != nil {
		return created, fmt.Errorf("refresh expenses: %w", err)
	}
	l.mu.Lock()
	l.expenses = expenses
	l.mu.Unlock()
	return created, nil
}

// AddCard creates a card and appends it to the snapshot.
func (l *Ledger) AddCard(ctx context.Context, c NewCard) (*models.CreditCard, error) {
	created, err := l.api.CreateCard(ctx, c)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.cards = append(l.cards, *created)
	l.mu.Unlock()
	return created, nil
}

// DeleteExpense removes the expense locally, then on the server.
func (l *Ledger) DeleteExpense(ctx context.Context, id string) error {
	return l.run(ctx, command{
		apply: func(s *snapshot) {
			s.expenses = slices.DeleteFunc(s.expenses, func(e models.Expense) bool { return e.ID == id })
		},
		remote: func(ctx context.Context) error { return l.api.DeleteExpense(ctx, id) },
	})
}

// DeleteCard removes the card locally, then on the server. Expenses keep
// their reference to it.
func (l *Ledger) DeleteCard(ctx context.Context, id string) error {
	return l.run(ctx, command{
		apply: func(s *snapshot) {
			s.cards = slices.DeleteFunc(s.cards, func(c models.CreditCard) bool { return c.ID == id })
		},
		remote: func(ctx context.Context) error { return l.api.DeleteCard(ctx, id) },
	})
}

type snapshot struct {
	expenses []models.Expense
	cards    []models.CreditCard
}

// command is a speculative local mutation paired with the server call that
// makes it durable.
type command struct {
	apply  func(*snapshot)
	remote func(context.Context) error
}

// run applies cmd locally and restores the previous snapshot if the server call fails.
func (l *Ledger) run(ctx context.Context, cmd command) error {
	l.mu.Lock()
	prev := snapshot{expenses: l.expenses, cards: l.cards}
	next := snapshot{expenses: slices.Clone(l.expenses), cards: slices.Clone(l.cards)}
	cmd.apply(&next)
	l.expenses, l.cards = next.expenses, next.cards
	l.mu.Unlock()

	if err := cmd.remote(ctx); err != nil {
		l.mu.Lock()
		l.expenses, l.cards = prev.expenses, prev.cards
		l.mu.Unlock()
		return err
	}
	return nil
}
