package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/adapter/gitlab"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/adapter/metrics"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/adapter/store"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/handler"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/logutil"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/middleware"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/service"
	"github.com/arturoeanton/gitlab-tokens-exporter/pkg/config"

	_ "github.com/lib/pq"
)

const version = "1.0.0"

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logutil.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting gitlab tokens exporter",
		"port", cfg.Port,
		"gitlab", cfg.GitLabBaseURL,
		"auth_mode", cfg.GitLabAuthMode,
		"refresh_interval", cfg.RefreshInterval(),
		"history", cfg.HistoryDriver,
		"jwt_enabled", cfg.JWTEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── History ──────────────────────────────────────────────────────────
	history, err := store.New(store.DriverConfig{
		Driver:      cfg.HistoryDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		Limit:       cfg.HistoryLimit,
	})
	if err != nil {
		slog.Error("failed to open history store", "driver", cfg.HistoryDriver, "error", err)
		os.Exit(1)
	}
	defer history.Close()

	// ── GitLab ───────────────────────────────────────────────────────────
	httpClient, err := gitlab.NewHTTPClient(cfg.GitLabAuthMode, cfg.GitLabToken, cfg.HTTPTimeout(), logger.With("component", "gitlab"))
	if err != nil {
		slog.Error("failed to build gitlab http client", "error", err)
		os.Exit(1)
	}
	gitlabClient := gitlab.NewClient(cfg.GitLabBaseURL, httpClient, cfg.ProjectsQuery)

	// ── Services ─────────────────────────────────────────────────────────
	refreshService := service.NewRefreshService(
		gitlabClient,
		metrics.NewRenderer(nil),
		cfg.FetchConcurrency,
		service.RenderErrorPolicy(cfg.RenderErrorPolicy),
		logger.With("component", "refresh"),
	)

	actor, err := service.NewTokensActor(refreshService, service.ActorOptions{
		Interval:       cfg.RefreshInterval(),
		RefreshTimeout: cfg.RefreshTimeout(),
		Recorder:       history,
		Logger:         logger.With("component", "actor"),
	})
	if err != nil {
		slog.Error("failed to create tokens actor", "error", err)
		os.Exit(1)
	}
	go actor.Run(ctx)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.AuditMiddleware(history, logger.With("component", "audit")))

	// ── Public Routes ────────────────────────────────────────────────────
	app.Get("/api/v1/health", handler.Health(cfg.AppName, version))

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
	})

	handler.NewMetricsHandler(actor).Register(app, jwtMiddleware)

	api := app.Group("/api/v1", jwtMiddleware)

	statusHandler := handler.NewStatusHandler(actor, history)
	statusHandler.Register(api)

	auditHandler := handler.NewAuditHandler(history)
	auditHandler.Register(api)

	// ── Shutdown ─────────────────────────────────────────────────────────
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
