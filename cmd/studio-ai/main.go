package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"script-studio/internal/action"
	"script-studio/internal/api"
	"script-studio/internal/audit"
	"script-studio/internal/config"
	"script-studio/internal/logger"
	"script-studio/internal/prompts"
	"script-studio/internal/provider"
	"script-studio/internal/routing"
	"script-studio/internal/secrets"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)
	cfg.Log(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zapLogger); err != nil {
		zapLogger.Error("Service stopped with error", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
	zapLogger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	settings := routing.NewSettingsStore(cfg.RouteSettingsPath, logger)
	if err := settings.Load(); err != nil {
		return err
	}

	promptProvider := prompts.NewProvider(cfg.PromptsDir, logger)
	if err := promptProvider.LoadAll(); err != nil {
		// системные промты необязательны
		logger.Warn("System prompts are unavailable", zap.Error(err))
	}

	auditStore, cleanup, err := setupAudit(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up audit log: %w", err)
	}
	defer cleanup()

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	officialKey := secrets.NewFileStore(cfg.SecretsDir, cfg.OfficialSecretName)

	service := action.NewService(action.Deps{
		Routes:    routing.NewSelector(settings),
		Providers: provider.NewFactory(cfg.OfficialConfig(), httpClient, logger),
		Prompts:   promptProvider,
		Secrets:   officialKey,
		Audit:     audit.NewRecorder(auditStore, logger),
	}, logger)

	handler := api.NewHandler(api.Deps{
		Actions:  service,
		Audit:    auditStore,
		Models:   provider.NewDiscoverer(cfg.DiscoveryConfig(), httpClient, logger),
		Settings: settings,
		Secrets:  officialKey,
	}, cfg.CORSAllowedOrigins, logger)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler, cfg.CORSAllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
