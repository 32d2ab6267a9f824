package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"expenseflow/internal/models"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the SQLite implementation of Store.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A :memory: database exists only inside its connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// migrate applies the embedded migrations over the shared connection.
// The migrate instance is not closed because that would close conn.
func (db *DB) migrate() error {
	driver, err := sqlite.WithInstance(db.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser inserts u. It returns ErrDuplicate if the email is taken.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT email, display_name, password_hash, created_at FROM users WHERE email = ?",
		email,
	)

	var u models.User
	if err := row.Scan(&u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

const expenseColumns = "id, owner_email, amount, category, description, date, timestamp, credit_card_id, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (models.Expense, error) {
	var (
		e         models.Expense
		category  string
		cardID    sql.NullString
		updatedAt sql.NullTime
	)
	err := s.Scan(&e.ID, &e.OwnerEmail, &e.Amount, &category, &e.Description, &e.Date,
		&e.Timestamp, &cardID, &e.CreatedAt, &updatedAt)
	if err != nil {
		return e, err
	}
	e.Category = models.Category(category)
	e.CreditCardID = cardID.String
	if updatedAt.Valid {
		t := updatedAt.Time
		e.UpdatedAt = &t
	}
	return e, nil
}

// ListExpenses retrieves the owner's expenses ordered by timestamp descending.
func (db *DB) ListExpenses(ctx context.Context, owner string) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE owner_email = ? ORDER BY timestamp DESC, rowid DESC",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// GetExpense retrieves a single expense by id and owner.
func (db *DB) GetExpense(ctx context.Context, owner, id string) (*models.Expense, error) {
	return db.getExpense(ctx, db.conn, owner, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) getExpense(ctx context.Context, q queryRower, owner, id string) (*models.Expense, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND owner_email = ?",
		id, owner,
	)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

// CreateExpense inserts a new expense and assigns its id.
func (db *DB) CreateExpense(ctx context.Context, e *models.Expense) error {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, e.OwnerEmail, e.Amount, string(e.Category), e.Description, e.Date,
		e.Timestamp, nullString(e.CreditCardID), e.CreatedAt, nullTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	e.ID = id
	return nil
}

// UpdateExpense merges patch into the owner's expense and returns the result.
func (db *DB) UpdateExpense(ctx context.Context, owner, id string, patch models.ExpensePatch) (*models.Expense, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	e, err := db.getExpense(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(e)

	_, err = tx.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, category = ?, description = ?, date = ?, updated_at = ? WHERE id = ? AND owner_email = ?",
		e.Amount, string(e.Category), e.Description, e.Date, nullTime(e.UpdatedAt), id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return e, nil
}

// DeleteExpense removes the owner's expense by id.
func (db *DB) DeleteExpense(ctx context.Context, owner, id string) error {
	return db.deleteOwned(ctx, "expenses", owner, id)
}

// ListCreditCards retrieves the owner's cards in insertion order.
func (db *DB) ListCreditCards(ctx context.Context, owner string) ([]models.CreditCard, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, owner_email, name, last_four_digits, type, color, created_at FROM credit_cards WHERE owner_email = ? ORDER BY created_at, rowid",
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	defer rows.Close()

	cards := []models.CreditCard{}
	for rows.Next() {
		var (
			c           models.CreditCard
			typ, color string
		)
		if err := rows.Scan(&c.ID, &c.OwnerEmail, &c.Name, &c.LastFourDigits, &typ, &color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit card: %w", err)
		}
		c.Type = models.CardType(typ)
		c.Color = models.CardColor(color)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CountCreditCards returns the number of cards the owner has.
func (db *DB) CountCreditCards(ctx context.Context, owner string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM credit_cards WHERE owner_email = ?", owner).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count credit cards: %w", err)
	}
	return count, nil
}

// CreateCreditCard inserts a new card and assigns its id.
func (db *DB) CreateCreditCard(ctx context.Context, c *models.CreditCard) error {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO credit_cards (id, owner_email, name, last_four_digits, type, color, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, c.OwnerEmail, c.Name, c.LastFourDigits, string(c.Type), string(c.Color), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit card: %w", err)
	}
	c.ID = id
	return nil
}

// DeleteCreditCard removes the owner's card. Expenses referencing it are left untouched.
func (db *DB) DeleteCreditCard(ctx context.Context, owner, id string) error {
	return db.deleteOwned(ctx, "credit_cards", owner, id)
}

func (db *DB) deleteOwned(ctx context.Context, table, owner, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ? AND owner_email = ?", id, owner)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
