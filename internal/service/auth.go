// Package service implements the account and ledger operations behind the HTTP API.
// Every ledger operation is scoped by the caller's email.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"expenseflow/internal/apperr"
	"expenseflow/internal/auth"
	"expenseflow/internal/models"
	"expenseflow/internal/storage"
)

// msgInvalidCredentials is shared by every failed login so callers cannot
// tell an unknown email from a wrong password.
const msgInvalidCredentials = "Invalid credentials"

// Session is the result of a successful signup or login.
type Session struct {
	Token    string
	Identity auth.Identity
	User     *models.User
}

// SignupInput holds the fields of a new account.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// AuthService creates accounts and exchanges credentials for session tokens.
type AuthService struct {
	store  storage.Store
	tokens *auth.TokenManager
	now    func() time.Time
}

// NewAuthService returns an AuthService issuing tokens from tokens.
func NewAuthService(store storage.Store, tokens *auth.TokenManager) *AuthService {
	return &AuthService{store: store, tokens: tokens, now: time.Now}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a user and opens a session for it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.DisplayName)
	if email == "" || in.Password == "" || name == "" {
		return nil, apperr.InvalidInput("Email, password and display name are required")
	}

	user, err := s.createUser(ctx, email, in.Password, name)
	if err != nil {
		return nil, err
	}
	return s.open(user)
}

// Login verifies email and password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.InvalidInput("Email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	return s.open(user)
}

// EnsureUser creates the account unless the email is already registered.
// It reports whether a user was created.
func (s *AuthService) EnsureUser(ctx context.Context, in SignupInput) (bool, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = email
	}
	if email == "" || in.Password == "" {
		return false, apperr.InvalidInput("Email and password are required")
	}

	_, err := s.createUser(ctx, email, in.Password, name)
	if apperr.Is(err, apperr.KindConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, name string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperr.InvalidInput("Password is too long")
	}
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := &models.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	err = s.store.CreateUser(ctx, user)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, apperr.Conflict("User already exists")
	}
	if err != nil {
		return nil, apperr.Internal("create user", err)
	}
	return user, nil
}

func (s *AuthService) open(user *models.User) (*Session, error) {
	token, id, err := s.tokens.Issue(user.Email, user.DisplayName)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{Token: token, Identity: id, User: user}, nil
}
