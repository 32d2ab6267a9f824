package storage

import (
	"context"
	"errors"
	"fmt"

	"expenseflow/internal/models"
)

var (
	// ErrNotFound is returned when no record matches both the id and the owner.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the persistence port. Every expense and card operation is scoped by owner email.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// ListExpenses returns the owner's expenses, newest Timestamp first.
	ListExpenses(ctx context.Context, owner string) ([]models.Expense, error)
	GetExpense(ctx context.Context, owner, id string) (*models.Expense, error)
	// CreateExpense assigns e.ID.
	CreateExpense(ctx context.Context, e *models.Expense) error
	UpdateExpense(ctx context.Context, owner, id string, patch models.ExpensePatch) (*models.Expense, error)
	DeleteExpense(ctx context.Context, owner, id string) error

	// ListCreditCards returns the owner's cards in insertion order.
	ListCreditCards(ctx context.Context, owner string) ([]models.CreditCard, error)
	CountCreditCards(ctx context.Context, owner string) (int, error)
	// CreateCreditCard assigns c.ID.
	CreateCreditCard(ctx context.Context, c *models.CreditCard) error
	DeleteCreditCard(ctx context.Context, owner, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend  string
	Path     string
	MongoURI string
	MongoDB  string
}

// Open returns the Store for opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewDB(opts.Path)
	case BackendMongo:
		return NewMongo(ctx, opts.MongoURI, opts.MongoDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
