package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"formlink/internal/auth"
	"formlink/internal/config"
	"formlink/internal/domain"
	"formlink/internal/httpapi"
	"formlink/internal/service"
	"formlink/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if cfg.DBDSN == "" {
		logger.Error("APP_DB_DSN is required")
		os.Exit(1)
	}

	pool, err := postgres.Open(context.Background(), cfg.DBDSN)
	if err != nil {
		logger.Error("db open failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(context.Background(), pool); err != nil {
		logger.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	users := postgres.NewUsersStore(pool)
	linksStore := postgres.NewLinksStore(pool)

	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.SessionTTL)
	accounts := &service.AccountService{
		Users:  users,
		Tokens: tokens,
		Mailer: &service.EmailService{SMTP: cfg.SMTP},
	}
	links := &service.LinkService{Links: linksStore}

	if err := bootstrapAdminUser(context.Background(), logger, users, cfg); err != nil {
		logger.Error("bootstrap admin failed", "err", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:    logger,
		IsProd:    cfg.IsProd(),
		DBPing:    pool.Ping,
		Accounts:  accounts,
		Links:     links,
		PublicURL: cfg.PublicURL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func bootstrapAdminUser(ctx context.Context, logger *slog.Logger, users *postgres.UsersStore, cfg config.Config) error {
	if cfg.AdminBootstrapPassword == "" {
		return nil
	}
	if len(cfg.AdminBootstrapPassword) < 8 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 8 characters")
	}

	_, err := users.GetUserByEmail(ctx, cfg.AdminBootstrapEmail)
	if err == nil {
		logger.Info("admin bootstrap: user already exists", "email", cfg.AdminBootstrapEmail)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup user: %w", err)
	}

	hash, err := auth.HashPassword(cfg.AdminBootstrapPassword)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	if _, err := users.CreateUser(ctx, cfg.AdminBootstrapName, cfg.AdminBootstrapEmail, hash, domain.RoleAdmin); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			logger.Info("admin bootstrap: user already exists", "email", cfg.AdminBootstrapEmail)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create user: %w", err)
	}

	logger.Info("admin bootstrap: created admin user", "email", cfg.AdminBootstrapEmail)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
