package models

import "time"

// DateLayout is the canonical calendar-date form of Expense.Date.
const DateLayout = "2006-01-02"

// Expense represents a financial expense record owned by a single user.
type Expense struct {
	ID           string     `json:"id"`
	OwnerEmail   string     `json:"ownerEmail"`
	Amount       float64    `json:"amount"`
	Category     Category   `json:"category"`
	Description  string     `json:"description"`
	Date         string     `json:"date"`
	Timestamp    int64      `json:"timestamp"`
	CreditCardID string     `json:"creditCardId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// ExpensePatch carries the mutable subset of an expense. Nil fields are left untouched.
type ExpensePatch struct {
	Amount      *float64
	Category    *Category
	Description *string
	Date        *string
	UpdatedAt   time.Time
}

// Empty reports whether the patch changes no field.
func (p ExpensePatch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil && p.Date == nil
}

// Apply merges the supplied fields into e and stamps UpdatedAt.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	updated := p.UpdatedAt
	e.UpdatedAt = &updated
}

// User represents a user account. Email is the identity key.
type User struct {
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
