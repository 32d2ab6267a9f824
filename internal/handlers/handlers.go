package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"expenseflow/internal/apperr"
	"expenseflow/internal/auth"
	"expenseflow/internal/service"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// IdentityContextKey is the context key for the verified caller.
	IdentityContextKey contextKey = "identity"

	// DashboardPath is the protected area guarded at the edge.
	DashboardPath = "/dashboard"
	// LoginPath and SignupPath are the auth-entry pages.
	LoginPath  = "/login"
	SignupPath = "/signup"
)

// Options configures response and cookie behavior.
type Options struct {
	// Production hides error details from clients.
	Production bool
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// Location is the default time zone of dashboard computations.
	Location *time.Location
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	auth   *service.AuthService
	ledger *service.LedgerService
	tokens *auth.TokenManager
	opts   Options
	now    func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authSvc *service.AuthService, ledger *service.LedgerService, tokens *auth.TokenManager, opts Options) *Handlers {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Handlers{auth: authSvc, ledger: ledger, tokens: tokens, opts: opts, now: time.Now}
}

// GetIdentityFromContext retrieves the verified caller from the request context.
func GetIdentityFromContext(r *http.Request) (auth.Identity, bool) {
	id, ok := r.Context().Value(IdentityContextKey).(auth.Identity)
	return id, ok
}

func withIdentity(r *http.Request, id auth.Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), IdentityContextKey, id))
}

// AuthMiddleware verifies the credential of every API request and answers
// 401 when it is missing, invalid or expired.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.tokens.Verify(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, withIdentity(r, id))
	})
}

// PageAuthMiddleware protects pages. A caller without a valid credential is
// redirected to the login page and any stale cookie is cleared.
func (h *Handlers) PageAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.tokens.Verify(r)
		if err != nil {
			if !auth.IsMissingCredential(err) {
				h.clearSessionCookie(w)
			}
			LoggerFromContext(r.Context()).Debug("page credential rejected", "error", err)
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, withIdentity(r, id))
	})
}

// Guard is the coarse edge check. The protected area requires a credential to
// be present, and auth-entry pages send callers that have one to the protected
// area. Signatures are verified later by the route middleware.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasCredential := auth.TokenFromRequest(r) != ""
		switch path := r.URL.Path; {
		case path == DashboardPath || strings.HasPrefix(path, DashboardPath+"/"):
			if !hasCredential {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
		case path == LoginPath || path == SignupPath:
			if hasCredential {
				http.Redirect(w, r, DashboardPath, http.StatusFound)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

type userResponse struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

// Signup registers an account and starts a session.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}

	sess, err := h.auth.Signup(r.Context(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, sess.Token)
	LoggerFromContext(r.Context()).Info("user signed up", "email", sess.User.Email)
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": userResponse{Email: sess.User.Email, DisplayName: sess.User.DisplayName},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, sess.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{Email: sess.User.Email, DisplayName: sess.User.DisplayName},
	})
}

// Logout clears the session cookie. Issued credentials stay valid until they expire.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Me returns the verified caller.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r)
	writeJSON(w, http.StatusOK, map[string]any{"user": id})
}

type entryPage struct {
	Page   string   `json:"page"`
	Action string   `json:"action"`
	Method string   `json:"method"`
	Fields []string `json:"fields"`
}

// LoginPage describes the login form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entryPage{
		Page:   "login",
		Action: "/auth/login",
		Method: http.MethodPost,
		Fields: []string{"email", "password"},
	})
}

// SignupPage describes the signup form.
func (h *Handlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entryPage{
		Page:   "signup",
		Action: "/auth/signup",
		Method: http.MethodPost,
		Fields: []string{"email", "password", "displayName"},
	})
}

// Ping reports liveness.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) identity(r *http.Request) (auth.Identity, error) {
	id, ok := GetIdentityFromContext(r)
	if !ok {
		return auth.Identity{}, apperr.Unauthorized("Missing credential")
	}
	return id, nil
}
