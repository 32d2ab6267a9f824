package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expenseflow/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the MongoDB implementation of Store.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	expenses *mongo.Collection
	cards    *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Name      string             `bson:"name"`
	Password  string             `bson:"password"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type expenseDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserEmail    string             `bson:"userEmail"`
	Amount       float64            `bson:"amount"`
	Category     string             `bson:"category"`
	Description  string             `bson:"description"`
	Date         string             `bson:"date"`
	Timestamp    int64              `bson:"timestamp"`
	CreditCardID string             `bson:"creditCardId,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    *time.Time         `bson:"updatedAt,omitempty"`
}

func (d expenseDoc) model() models.Expense {
	return models.Expense{
		ID:           d.ID.Hex(),
		OwnerEmail:   d.UserEmail,
		Amount:       d.Amount,
		Category:     models.Category(d.Category),
		Description:  d.Description,
		Date:         d.Date,
		Timestamp:    d.Timestamp,
		CreditCardID: d.CreditCardID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type cardDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	UserEmail      string             `bson:"userEmail"`
	Name           string             `bson:"name"`
	LastFourDigits string             `bson:"lastFourDigits"`
	Type           string             `bson:"type"`
	Color          string             `bson:"color"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d cardDoc) model() models.CreditCard {
	return models.CreditCard{
		ID:             d.ID.Hex(),
		OwnerEmail:     d.UserEmail,
		Name:           d.Name,
		LastFourDigits: d.LastFourDigits,
		Type:           models.CardType(d.Type),
		Color:          models.CardColor(d.Color),
		CreatedAt:      d.CreatedAt,
	}
}

// NewMongo connects to MongoDB and prepares the collections and their indexes.
func NewMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		users:    database.Collection("users"),
		expenses: database.Collection("expenses"),
		cards:    database.Collection("credit_cards"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.Info("connected to MongoDB", "database", dbName)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userEmail", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create expenses index: %w", err)
	}
	_, err = s.cards.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userEmail", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create credit cards index: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close closes the database connection.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts u. It returns ErrDuplicate if the email is taken.
func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.users.InsertOne(ctx, userDoc{
		Email:     u.Email,
		Name:      u.DisplayName,
		Password:  u.PasswordHash,
		CreatedAt: u.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail finds a user by email.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &models.User{
		Email:        doc.Email,
		DisplayName:  doc.Name,
		PasswordHash: doc.Password,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// ownedFilter matches id and owner. ok is false when id cannot be an ObjectID,
// in which case no record can match.
func ownedFilter(owner, id string) (filter bson.M, ok bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "userEmail": owner}, true
}

// ListExpenses returns the owner's expenses, newest timestamp first.
func (s *MongoStore) ListExpenses(ctx context.Context, owner string) ([]models.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.expenses.Find(ctx, bson.M{"userEmail": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expenses: %w", err)
	}
	defer cursor.Close(ctx)

	expenses := []models.Expense{}
	for cursor.Next(ctx) {
		var doc expenseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode expense: %w", err)
		}
		expenses = append(expenses, doc.model())
	}
	return expenses, cursor.Err()
}

// GetExpense finds the owner's expense by id.
func (s *MongoStore) GetExpense(ctx context.Context, owner, id string) (*models.Expense, error) {
	filter, ok := ownedFilter(owner, id)
	if !ok {
		return nil, ErrNotFound
	}
	var doc expenseDoc
	if err := s.expenses.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find expense: %w", err)
	}
	e := doc.model()
	return &e, nil
}

// CreateExpense inserts e and assigns its id.
func (s *MongoStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	res, err := s.expenses.InsertOne(ctx, expenseDoc{
		UserEmail:    e.OwnerEmail,
		Amount:       e.Amount,
		Category:     string(e.Category),
		Description:  e.Description,
		Date:         e.Date,
		Timestamp:    e.Timestamp,
		CreditCardID: e.CreditCardID,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	e.ID = oid.Hex()
	return nil
}

// UpdateExpense sets the patched fields on the owner's expense and returns the result.
func (s *MongoStore) UpdateExpense(ctx context.Context, owner, id string, patch models.ExpensePatch) (*models.Expense, error) {
	filter, ok := ownedFilter(owner, id)
	if !ok {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Amount != nil {
		set["amount"] = *patch.Amount
	}
	if patch.Category != nil {
		set["category"] = string(*patch.Category)
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Date != nil {
		set["date"] = *patch.Date
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc expenseDoc
	err := s.expenses.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	e := doc.model()
	return &e, nil
}

// DeleteExpense deletes the owner's expense by id.
func (s *MongoStore) DeleteExpense(ctx context.Context, owner, id string) error {
	return deleteOwned(ctx, s.expenses, owner, id)
}

// ListCreditCards returns the owner's cards in insertion order.
func (s *MongoStore) ListCreditCards(ctx context.Context, owner string) ([]models.CreditCard, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.cards.Find(ctx, bson.M{"userEmail": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credit cards: %w", err)
	}
	defer cursor.Close(ctx)

	cards := []models.CreditCard{}
	for cursor.Next(ctx) {
		var doc cardDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode credit card: %w", err)
		}
		cards = append(cards, doc.model())
	}
	return cards, cursor.Err()
}

// CountCreditCards returns the number of cards the owner has.
func (s *MongoStore) CountCreditCards(ctx context.Context, owner string) (int, error) {
	n, err := s.cards.CountDocuments(ctx, bson.M{"userEmail": owner})
	if err != nil {
		return 0, fmt.Errorf("failed to count credit cards: %w", err)
	}
	return int(n), nil
}

// CreateCreditCard inserts c and assigns its id.
func (s *MongoStore) CreateCreditCard(ctx context.Context, c *models.CreditCard) error {
	res, err := s.cards.InsertOne(ctx, cardDoc{
		UserEmail:      c.OwnerEmail,
		Name:           c.Name,
		LastFourDigits: c.LastFourDigits,
		Type:           string(c.Type),
		Color:          string(c.Color),
		CreatedAt:      c.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert credit card: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	c.ID = oid.Hex()
	return nil
}

// DeleteCreditCard deletes the owner's card. Referencing expenses are left untouched.
func (s *MongoStore) DeleteCreditCard(ctx context.Context, owner, id string) error {
	return deleteOwned(ctx, s.cards, owner, id)
}

func deleteOwned(ctx context.Context, coll *mongo.Collection, owner, id string) error {
	filter, ok := ownedFilter(owner, id)
	if !ok {
		return ErrNotFound
	}
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
