package service

import (
	"context"
	"math"
	"testing"
	"time"

	"expenseflow/internal/apperr"
	"expenseflow/internal/auth"
	"expenseflow/internal/models"
	"expenseflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) storage.Store {
	t.Helper()
	db, err := storage.NewDB(":memory:")
	require.NoError(t, err, "failed to create database")
	t.Cleanup(func() { db.Close() })
	return db
}

func amount(v float64) *float64 { return &v }
func str(s string) *string      { return &s }

func TestSignupAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	tokens := auth.NewTokenManager("test-secret", 0)
	svc := NewAuthService(store, tokens)

	sess, err := svc.Signup(ctx, SignupInput{Email: " Alice@Example.com ", Password: "hunter2", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, "Alice", sess.Identity.DisplayName)
	assert.NotEmpty(t, sess.Token)

	id, err := tokens.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id.Email)

	stored, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.PasswordHash)

	sess, err = svc.Login(ctx, "alice@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Alice", sess.User.DisplayName)
}

func TestSignupValidation(t *testing.T) {
	svc := NewAuthService(newStore(t), auth.NewTokenManager("s", 0))
	tests := []SignupInput{
		{Password: "pw", DisplayName: "n"},
		{Email: "a@b.c", DisplayName: "n"},
		{Email: "a@b.c", Password: "pw", DisplayName: "  "},
	}
	for _, in := range tests {
		_, err := svc.Signup(context.Background(), in)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "%+v: %v", in, err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := NewAuthService(store, auth.NewTokenManager("s", 0))

	_, err := svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "pw1", DisplayName: "Bob"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupInput{Email: "BOB@example.com", Password: "pw2", DisplayName: "Bobby"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	// The original account is untouched.
	_, err = svc.Login(ctx, "bob@example.com", "pw1")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "bob@example.com", "pw2")
	assert.Error(t, err)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newStore(t), auth.NewTokenManager("s", 0))
	_, err := svc.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "right", DisplayName: "Carol"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "carol@example.com", "wrong")
	_, unknownUser := svc.Login(ctx, "nobody@example.com", "right")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(wrongPassword))
	assert.Equal(t, apperr.KindOf(wrongPassword), apperr.KindOf(unknownUser))
	assert.Equal(t, apperr.Message(wrongPassword), apperr.Message(unknownUser))
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newStore(t), auth.NewTokenManager("s", 0))

	created, err := svc.EnsureUser(ctx, SignupInput{Email: "admin@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureUser(ctx, SignupInput{Email: "admin@example.com", Password: "other"})
	require.NoError(t, err)
	assert.False(t, created)

	sess, err := svc.Login(ctx, "admin@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", sess.User.DisplayName, "display name defaults to the email")
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{" 2024-03-15 ", "2024-03-15", true},
		{"2024-03-15T23:30:00-05:00", "2024-03-16", true},
		{"2024-03-15T10:00:00Z", "2024-03-15", true},
		{"15/03/2024", "", false},
		{"2024-02-30", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func tickingClock() func() time.Time {
	t := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestCreateAndListExpenses(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t)).WithClock(tickingClock())

	e, err := ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
		Amount:      amount(45.50),
		Category:    "Food & Dining",
		Description: "Lunch",
		Date:        "2024-03-15",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "x@example.com", e.OwnerEmail)
	assert.NotZero(t, e.Timestamp)

	list, err := ledger.ListExpenses(ctx, "x@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, e.ID, list[0].ID)
	assert.Equal(t, 45.50, list[0].Amount)
	assert.Equal(t, models.CategoryFoodDining, list[0].Category)
	assert.Equal(t, "Lunch", list[0].Description)
	assert.Equal(t, "2024-03-15", list[0].Date)

	other, err := ledger.ListExpenses(ctx, "y@example.com")
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)
}

func TestListExpensesNewestFirst(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t)).WithClock(tickingClock())

	for _, desc := range []string{"first", "second", "third"} {
		_, err := ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
			Amount: amount(1), Category: "Other", Description: desc, Date: "2024-01-01",
		})
		require.NoError(t, err)
	}

	list, err := ledger.ListExpenses(ctx, "x@example.com")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Description)
	assert.Equal(t, "first", list[2].Description)
}

func TestCreateExpenseValidation(t *testing.T) {
	ledger := NewLedgerService(newStore(t))
	valid := ExpenseInput{Amount: amount(10), Category: "Travel", Description: "Train", Date: "2024-03-15"}

	tests := []struct {
		name   string
		mutate func(*ExpenseInput)
	}{
		{"missing amount", func(in *ExpenseInput) { in.Amount = nil }},
		{"NaN amount", func(in *ExpenseInput) { in.Amount = amount(math.NaN()) }},
		{"infinite amount", func(in *ExpenseInput) { in.Amount = amount(math.Inf(1)) }},
		{"unknown category", func(in *ExpenseInput) { in.Category = "Groceries" }},
		{"missing category", func(in *ExpenseInput) { in.Category = "" }},
		{"blank description", func(in *ExpenseInput) { in.Description = "   " }},
		{"bad date", func(in *ExpenseInput) { in.Date = "yesterday" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := ledger.CreateExpense(context.Background(), "x@example.com", in)
			assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "got %v", err)
		})
	}
}

func TestCreateExpenseNormalizesInput(t *testing.T) {
	ledger := NewLedgerService(newStore(t))
	e, err := ledger.CreateExpense(context.Background(), "x@example.com", ExpenseInput{
		Amount:       amount(-12.5),
		Category:     "Shopping",
		Description:  "  Refund  ",
		Date:         "2024-03-15T22:00:00-05:00",
		CreditCardID: " card-1 ",
	})
	require.NoError(t, err)
	assert.Equal(t, -12.5, e.Amount, "negative amounts are refunds")
	assert.Equal(t, "Refund", e.Description)
	assert.Equal(t, "2024-03-16", e.Date)
	assert.Equal(t, "card-1", e.CreditCardID)
}

func TestUpdateExpense(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t)).WithClock(tickingClock())
	e, err := ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
		Amount: amount(10), Category: "Travel", Description: "Train", Date: "2024-03-15",
	})
	require.NoError(t, err)
	assert.Nil(t, e.UpdatedAt)

	updated, err := ledger.UpdateExpense(ctx, "x@example.com", e.ID, ExpenseUpdate{Amount: amount(12.25)})
	require.NoError(t, err)
	assert.Equal(t, 12.25, updated.Amount)
	assert.Equal(t, "Train", updated.Description, "unsupplied fields are kept")
	assert.Equal(t, models.CategoryTravel, updated.Category)
	require.NotNil(t, updated.UpdatedAt)

	updated, err = ledger.UpdateExpense(ctx, "x@example.com", e.ID, ExpenseUpdate{
		Category: str("Other"), Description: str("Bus"), Date: str("2024-03-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, updated.Category)
	assert.Equal(t, "2024-03-01", updated.Date)

	got, err := ledger.GetExpense(ctx, "x@example.com", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bus", got.Description)
	assert.Equal(t, 12.25, got.Amount)
}

func TestUpdateExpenseErrors(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t))
	e, err := ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
		Amount: amount(10), Category: "Travel", Description: "Train", Date: "2024-03-15",
	})
	require.NoError(t, err)

	_, err = ledger.UpdateExpense(ctx, "x@example.com", e.ID, ExpenseUpdate{})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = ledger.UpdateExpense(ctx, "x@example.com", e.ID, ExpenseUpdate{Category: str("Nope")})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = ledger.UpdateExpense(ctx, "y@example.com", e.ID, ExpenseUpdate{Amount: amount(1)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "other owners cannot update")

	_, err = ledger.UpdateExpense(ctx, "x@example.com", "missing", ExpenseUpdate{Amount: amount(1)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteExpenseOwnershipAndIdempotence(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t))
	mine, err := ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
		Amount: amount(10), Category: "Travel", Description: "Train", Date: "2024-03-15",
	})
	require.NoError(t, err)
	keep, err := ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
		Amount: amount(5), Category: "Other", Description: "Keep", Date: "2024-03-15",
	})
	require.NoError(t, err)

	err = ledger.DeleteExpense(ctx, "y@example.com", mine.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = ledger.GetExpense(ctx, "y@example.com", mine.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, ledger.DeleteExpense(ctx, "x@example.com", mine.ID))
	err = ledger.DeleteExpense(ctx, "x@example.com", mine.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	list, err := ledger.ListExpenses(ctx, "x@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func TestCreditCards(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t))

	var ids []string
	for i := range 11 {
		c, err := ledger.CreateCard(ctx, "x@example.com", CardInput{Name: "Card", LastFourDigits: "1234", Type: "VISA"})
		require.NoError(t, err)
		assert.Equal(t, models.CardColorAt(i), c.Color)
		assert.Equal(t, models.CardVisa, c.Type)
		ids = append(ids, c.ID)
	}

	cards, err := ledger.ListCards(ctx, "x@example.com")
	require.NoError(t, err)
	require.Len(t, cards, 11)
	assert.Equal(t, models.CardPalette[0], cards[10].Color, "palette wraps around")
	assert.Equal(t, ids[0], cards[0].ID)

	other, err := ledger.ListCards(ctx, "y@example.com")
	require.NoError(t, err)
	assert.Empty(t, other)
	_, err = ledger.CreateCard(ctx, "y@example.com", CardInput{Name: "Y", LastFourDigits: "0000", Type: "amex"})
	require.NoError(t, err)
	yours, err := ledger.ListCards(ctx, "y@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.CardPalette[0], yours[0].Color, "color depends on the owner's own count")

	err = ledger.DeleteCard(ctx, "y@example.com", ids[0])
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	require.NoError(t, ledger.DeleteCard(ctx, "x@example.com", ids[0]))
	err = ledger.DeleteCard(ctx, "x@example.com", ids[0])
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	err = ledger.DeleteCard(ctx, "x@example.com", "")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestCreateCardValidation(t *testing.T) {
	ledger := NewLedgerService(newStore(t))
	tests := []CardInput{
		{LastFourDigits: "1234", Type: "visa"},
		{Name: "A", LastFourDigits: "123", Type: "visa"},
		{Name: "A", LastFourDigits: "12a4", Type: "visa"},
		{Name: "A", LastFourDigits: "1234", Type: "diners"},
	}
	for _, in := range tests {
		_, err := ledger.CreateCard(context.Background(), "x@example.com", in)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "%+v", in)
	}
}

func TestDeletingCardOrphansExpenses(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(newStore(t))
	card, err := ledger.CreateCard(ctx, "x@example.com", CardInput{Name: "A", LastFourDigits: "1234", Type: "visa"})
	require.NoError(t, err)
	_, err = ledger.CreateExpense(ctx, "x@example.com", ExpenseInput{
		Amount: amount(10), Category: "Travel", Description: "Train", Date: "2024-03-15", CreditCardID: card.ID,
	})
	require.NoError(t, err)

	require.NoError(t, ledger.DeleteCard(ctx, "x@example.com", card.ID))

	list, err := ledger.ListExpenses(ctx, "x@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, card.ID, list[0].CreditCardID)
}
