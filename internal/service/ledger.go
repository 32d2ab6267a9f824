package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"expenseflow/internal/apperr"
	"expenseflow/internal/models"
	"expenseflow/internal/storage"
)

const (
	msgExpenseNotFound = "Expense not found"
	msgCardNotFound    = "Credit card not found"
)

// ExpenseInput holds the fields of a new expense. Amount is nil when absent.
type ExpenseInput struct {
	Amount       *float64
	Category     string
	Description  string
	Date         string
	CreditCardID string
}

// ExpenseUpdate holds the fields to change. Nil fields are left untouched.
type ExpenseUpdate struct {
	Amount      *float64
	Category    *string
	Description *string
	Date        *string
}

// CardInput holds the fields of a new credit card.
type CardInput struct {
	Name           string
	LastFourDigits string
	Type           string
}

// LedgerService reads and writes one owner's expenses and credit cards.
type LedgerService struct {
	store storage.Store
	now   func() time.Time
}

// NewLedgerService returns a LedgerService over store.
func NewLedgerService(store storage.Store) *LedgerService {
	return &LedgerService{store: store, now: time.Now}
}

// WithClock returns a copy of s reading the current time from now.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	c := *s
	c.now = now
	return &c
}

// NormalizeDate reduces a calendar date or an RFC 3339 timestamp to YYYY-MM-DD.
// Timestamps are converted to UTC first.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t.Format(models.DateLayout), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(models.DateLayout), true
	}
	return "", false
}

func validAmount(a *float64) bool {
	return a != nil && !math.IsNaN(*a) && !math.IsInf(*a, 0)
}

// ListExpenses returns the owner's expenses, newest first.
func (s *LedgerService) ListExpenses(ctx context.Context, owner string) ([]models.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, owner)
	if err != nil {
		return nil, apperr.Internal("list expenses", err)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

// GetExpense returns one of the owner's expenses.
func (s *LedgerService) GetExpense(ctx context.Context, owner, id string) (*models.Expense, error) {
	e, err := s.store.GetExpense(ctx, owner, id)
	if err != nil {
		return nil, storeError(err, msgExpenseNotFound, "get expense")
	}
	return e, nil
}

// CreateExpense validates in and records it for owner.
func (s *LedgerService) CreateExpense(ctx context.Context, owner string, in ExpenseInput) (*models.Expense, error) {
	if !validAmount(in.Amount) {
		return nil, apperr.InvalidInput("Amount must be a number")
	}
	category, ok := models.ParseCategory(in.Category)
	if !ok {
		return nil, apperr.InvalidInput("Unknown category")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperr.InvalidInput("Description is required")
	}
	date, ok := NormalizeDate(in.Date)
	if !ok {
		return nil, apperr.InvalidInput("Date must be YYYY-MM-DD")
	}

	now := s.now()
	e := &models.Expense{
		OwnerEmail:   owner,
		Amount:       *in.Amount,
		Category:     category,
		Description:  description,
		Date:         date,
		Timestamp:    now.UnixMilli(),
		CreditCardID: strings.TrimSpace(in.CreditCardID),
		CreatedAt:    now.UTC(),
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return nil, apperr.Internal("create expense", err)
	}
	return e, nil
}

// UpdateExpense merges the supplied fields into one of the owner's expenses.
func (s *LedgerService) UpdateExpense(ctx context.Context, owner, id string, in ExpenseUpdate) (*models.Expense, error) {
	patch := models.ExpensePatch{UpdatedAt: s.now().UTC()}

	if in.Amount != nil {
		if !validAmount(in.Amount) {
			return nil, apperr.InvalidInput("Amount must be a number")
		}
		patch.Amount = in.Amount
	}
	if in.Category != nil {
		category, ok := models.ParseCategory(*in.Category)
		if !ok {
			return nil, apperr.InvalidInput("Unknown category")
		}
		patch.Category = &category
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if description == "" {
			return nil, apperr.InvalidInput("Description is required")
		}
		patch.Description = &description
	}
	if in.Date != nil {
		date, ok := NormalizeDate(*in.Date)
		if !ok {
			return nil, apperr.InvalidInput("Date must be YYYY-MM-DD")
		}
		patch.Date = &date
	}
	if patch.Empty() {
		return nil, apperr.InvalidInput("No fields to update")
	}

	e, err := s.store.UpdateExpense(ctx, owner, id, patch)
	if err != nil {
		return nil, storeError(err, msgExpenseNotFound, "update expense")
	}
	return e, nil
}

// DeleteExpense removes one of the owner's expenses.
func (s *LedgerService) DeleteExpense(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteExpense(ctx, owner, id); err != nil {
		return storeError(err, msgExpenseNotFound, "delete expense")
	}
	return nil
}

// ListCards returns the owner's credit cards in creation order.
func (s *LedgerService) ListCards(ctx context.Context, owner string) ([]models.CreditCard, error) {
	cards, err := s.store.ListCreditCards(ctx, owner)
	if err != nil {
		return nil, apperr.Internal("list credit cards", err)
	}
	if cards == nil {
		cards = []models.CreditCard{}
	}
	return cards, nil
}

// CreateCard validates in and records it for owner. The color is taken from
// the palette by the owner's current card count.
func (s *LedgerService) CreateCard(ctx context.Context, owner string, in CardInput) (*models.CreditCard, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidInput("Card name is required")
	}
	lastFour := strings.TrimSpace(in.LastFourDigits)
	if !models.ValidLastFour(lastFour) {
		return nil, apperr.InvalidInput("Last four digits must be 4 digits")
	}
	cardType, ok := models.ParseCardType(in.Type)
	if !ok {
		return nil, apperr.InvalidInput("Unknown card type")
	}

	count, err := s.store.CountCreditCards(ctx, owner)
	if err != nil {
		return nil, apperr.Internal("count credit cards", err)
	}

	c := &models.CreditCard{
		OwnerEmail:     owner,
		Name:           name,
		LastFourDigits: lastFour,
		Type:           cardType,
		Color:          models.CardColorAt(count),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateCreditCard(ctx, c); err != nil {
		return nil, apperr.Internal("create credit card", err)
	}
	return c, nil
}

// DeleteCard removes one of the owner's credit cards. Expenses keep their
// reference to the deleted card.
func (s *LedgerService) DeleteCard(ctx context.Context, owner, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.InvalidInput("Card id is required")
	}
	if err := s.store.DeleteCreditCard(ctx, owner, id); err != nil {
		return storeError(err, msgCardNotFound, "delete credit card")
	}
	return nil
}

func storeError(err error, notFound, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Internal(op, err)
}
