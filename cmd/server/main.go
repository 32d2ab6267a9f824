package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expenseflow/internal/auth"
	"expenseflow/internal/config"
	"expenseflow/internal/handlers"
	"expenseflow/internal/service"
	"expenseflow/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}
	logger := setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}
	if cfg.DevSecret {
		logger.Warn("JWT_SECRET not set, using the development secret")
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := storage.Open(startCtx, storage.Options{
		Backend:  cfg.Store,
		Path:     cfg.DBPath,
		MongoURI: cfg.MongoURI,
		MongoDB:  cfg.MongoDB,
	})
	if err != nil {
		logger.Error("Failed to open store", "error", err, "store", cfg.Store)
		return 1
	}
	defer store.Close()

	if err := store.Ping(startCtx); err != nil {
		logger.Error("Store is not reachable", "error", err, "store", cfg.Store)
		return 1
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, auth.TokenTTL)
	authSvc := service.NewAuthService(store, tokens)
	ledger := service.NewLedgerService(store)

	if err := bootstrapAdmin(startCtx, logger, authSvc, cfg); err != nil {
		logger.Error("Failed to create bootstrap account", "error", err)
		return 1
	}

	h := handlers.NewHandlers(authSvc, ledger, tokens, handlers.Options{
		Production:   cfg.IsProduction(),
		SecureCookie: cfg.CookieSecure,
		Location:     loc,
	})

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        handlers.RequestLogger(logger)(setupRouter(h)),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "store", cfg.Store, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "addr", srv.Addr)
			return 1
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return 1
		}
	}

	logger.Info("Server stopped gracefully")
	return 0
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// bootstrapAdmin creates the ADMIN_EMAIL account if it does not exist yet.
func bootstrapAdmin(ctx context.Context, logger *slog.Logger, authSvc *service.AuthService, cfg *config.Config) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	created, err := authSvc.EnsureUser(ctx, service.SignupInput{
		Email:       cfg.AdminEmail,
		Password:    cfg.AdminPassword,
		DisplayName: cfg.AdminName,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("Created bootstrap account", "email", service.NormalizeEmail(cfg.AdminEmail))
	}
	return nil
}

func setupRouter(h *handlers.Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", h.Ping)

	mux.HandleFunc("POST /auth/signup", h.Signup)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.Handle("GET /auth/me", h.AuthMiddleware(http.HandlerFunc(h.Me)))

	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("GET /signup", h.SignupPage)
	mux.Handle("GET /dashboard", h.PageAuthMiddleware(http.HandlerFunc(h.Dashboard)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, handlers.DashboardPath, http.StatusFound)
	})

	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, h.AuthMiddleware(fn))
	}
	api("GET /expenses", h.ListExpenses)
	api("POST /expenses", h.CreateExpense)
	api("GET /expenses/{id}", h.GetExpense)
	api("PUT /expenses/{id}", h.UpdateExpense)
	api("DELETE /expenses/{id}", h.DeleteExpense)
	api("GET /credit-cards", h.ListCards)
	api("POST /credit-cards", h.CreateCard)
	api("DELETE /credit-cards", h.DeleteCard)

	return handlers.Guard(mux)
}
