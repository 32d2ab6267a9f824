// Package client talks to the expense API over HTTP and keeps a local ledger
// snapshot from which dashboards are computed without further round trips.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"expenseflow/internal/apperr"
	"expenseflow/internal/models"
)

// User is the public part of an account.
type User struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// NewExpense is the body of an expense creation.
type NewExpense struct {
	Amount       float64         `json:"amount"`
	Category     models.Category `json:"category"`
	Description  string          `json:"description"`
	Date         string          `json:"date"`
	CreditCardID string          `json:"creditCardId,omitempty"`
}

// NewCard is the body of a credit card creation.
type NewCard struct {
	Name           string          `json:"name"`
	LastFourDigits string          `json:"lastFourDigits"`
	Type           models.CardType `json:"type"`
}

// Client is an API client holding the session cookie in a cookie jar.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	// OnUnauthorized is called when a data request is answered with 401.
	OnUnauthorized func()
}

// New returns a client for the server at baseURL.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
	}, nil
}

// Signup creates an account and keeps its session.
func (c *Client) Signup(ctx context.Context, email, password, displayName string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"email": email, "password": password, "displayName": displayName,
	}, &out)
	return out.User, err
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	}, &out)
	return out.User, err
}

// Logout drops the session cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the identity of the current session.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out.User, err
}

// ListExpenses returns the caller's expenses, newest first.
func (c *Client) ListExpenses(ctx context.Context) ([]models.Expense, error) {
	var out struct {
		Expenses []models.Expense `json:"expenses"`
	}
	if err := c.do(ctx, http.MethodGet, "/expenses", nil, &out); err != nil {
		return nil, err
	}
	return out.Expenses, nil
}

// CreateExpense records an expense.
func (c *Client) CreateExpense(ctx context.Context, e NewExpense) (*models.Expense, error) {
	var out struct {
		Expense *models.Expense `json:"expense"`
	}
	if err := c.do(ctx, http.MethodPost, "/expenses", e, &out); err != nil {
		return nil, err
	}
	return out.Expense, nil
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/expenses/"+url.PathEscape(id), nil, nil)
}

// ListCards returns the caller's credit cards.
func (c *Client) ListCards(ctx context.Context) ([]models.CreditCard, error) {
	var out struct {
		Cards []models.CreditCard `json:"cards"`
	}
	if err := c.do(ctx, http.MethodGet, "/credit-cards", nil, &out); err != nil {
		return nil, err
	}
	return out.Cards, nil
}

// CreateCard adds a credit card.
func (c *Client) CreateCard(ctx context.Context, card NewCard) (*models.CreditCard, error) {
	var out struct {
		Card *models.CreditCard `json:"card"`
	}
	if err := c.do(ctx, http.MethodPost, "/credit-cards", card, &out); err != nil {
		return nil, err
	}
	return out.Card, nil
}

// DeleteCard removes a credit card.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/credit-cards?id="+url.QueryEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path: %w", err)
	}
	target := c.baseURL.ResolveReference(ref)

	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusUnauthorized && !strings.HasPrefix(path, "/auth/") && c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return apperr.FromStatus(resp.StatusCode, e.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
