package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"expenseflow/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName is the session cookie carrying the credential.
	CookieName = "expenseflow_token"
	// TokenTTL is how long an issued credential stays valid.
	TokenTTL = 7 * 24 * time.Hour
)

var (
	errMissingCredential = apperr.Unauthorized("Missing credential")
	errInvalidCredential = apperr.Unauthorized("Invalid or expired credential")
)

// Identity is the caller derived from a verified credential.
type Identity struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session credentials.
// There is no server-side session state: a credential is valid until it expires.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a manager signing with secret. A zero ttl means TokenTTL.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of m reading the current time from now.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	c := *m
	c.now = now
	return &c
}

// TTL returns the credential lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a credential for the given identity.
func (m *TokenManager) Issue(email, displayName string) (string, Identity, error) {
	now := m.now().Truncate(time.Second)
	id := Identity{
		Email:       email,
		DisplayName: displayName,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		Name:  displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(id.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(id.ExpiresAt),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Identity{}, err
	}
	return signed, id, nil
}

// Parse validates the signature and expiry of token.
func (m *TokenManager) Parse(token string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || c.Email == "" {
		return Identity{}, errInvalidCredential
	}

	id := Identity{Email: c.Email, DisplayName: c.Name}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}

// Verify extracts the credential from r and validates it.
func (m *TokenManager) Verify(r *http.Request) (Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return Identity{}, errMissingCredential
	}
	return m.Parse(token)
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the session cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// IsMissingCredential reports whether err was caused by an absent credential.
func IsMissingCredential(err error) bool {
	return errors.Is(err, errMissingCredential)
}
