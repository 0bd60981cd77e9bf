// Package app wires configuration, telemetry, the state store, the Argo CD
// client and the HTTP server into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wisbric/argowatch/internal/config"
	"github.com/wisbric/argowatch/internal/httpserver"
	"github.com/wisbric/argowatch/internal/platform"
	"github.com/wisbric/argowatch/internal/telemetry"
	"github.com/wisbric/argowatch/internal/version"
	"github.com/wisbric/argowatch/pkg/argocd"
	"github.com/wisbric/argowatch/pkg/notifier"
	"github.com/wisbric/argowatch/pkg/task"
	"github.com/wisbric/argowatch/pkg/watcher"
)

// Run is the main application entry point. It connects to infrastructure,
// authenticates against Argo CD and serves the API until ctx is cancelled.
// Authentication rejections (401/403) are fatal.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting argowatch",
		"version", version.Version,
		"listen", cfg.ListenAddr(),
		"state_type", cfg.StateType,
	)

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	// State store
	var store task.Store
	switch cfg.StateType {
	case config.StateTypePostgres:
		if err := platform.RunMigrations(cfg.DatabaseURL(), cfg.MigrationsDir); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		logger.Info("migrations applied")

		pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		store = task.NewPostgresStore(pool)
	case config.StateTypeInMemory:
		store = task.NewInMemoryStore(time.Duration(cfg.HistoryTTL) * time.Second)
	default:
		return fmt.Errorf("unknown state type: %s", cfg.StateType)
	}

	// Argo CD session. Credential rejections abort startup; any other failure
	// only logs. The client does not log in again later, so health probes
	// keep reporting down until the process is restarted.
	argo := argocd.NewClient(cfg.ArgoURL, cfg.ArgoUser, cfg.ArgoPassword, cfg.SSLVerify, logger)
	if err := argo.Authenticate(ctx); err != nil {
		if errors.Is(err, argocd.ErrUnauthorized) || errors.Is(err, argocd.ErrForbidden) {
			logger.Error("authenticating against argo cd", "error", err)
			return fmt.Errorf("authenticating against argo cd: %w", err)
		}
		logger.Error("argo cd unreachable, starting unauthenticated", "error", err)
	}

	// Slack notifications (optional).
	var verdictNotifier watcher.Notifier
	slackNotifier := notifier.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel, logger)
	if slackNotifier.IsEnabled() {
		verdictNotifier = slackNotifier
		logger.Info("slack notifications enabled", "channel", cfg.SlackChannel)
	} else {
		logger.Info("slack notifications disabled (SLACK_TOKEN or SLACK_CHANNEL not set)")
	}

	engine := watcher.NewEngine(store, argo, logger,
		time.Duration(cfg.ArgoTimeout)*time.Second,
		telemetry.FailedDeployment, telemetry.ProcessedDeploymentsTotal,
		verdictNotifier,
	)

	srv := httpserver.NewServer(httpserver.ServerConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		StaticDir:          cfg.StaticDir,
	}, logger, metricsReg, argo)

	taskHandler := watcher.NewHandler(ctx, store, engine, logger)
	srv.APIRouter.Mount("/tasks", taskHandler.Routes())
	srv.APIRouter.Get("/apps", taskHandler.HandleAppList)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
