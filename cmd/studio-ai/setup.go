package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"script-studio/internal/audit"
	"script-studio/internal/config"
)

const (
	connectAttempts = 10
	retryDelay      = 3 * time.Second
	attemptTimeout  = 5 * time.Second
)

// setupAudit открывает хранилище журнала по AUDIT_BACKEND и, если задан RABBITMQ_URL,
// оборачивает его публикацией записей. cleanup закрывает открытые соединения.
func setupAudit(ctx context.Context, cfg *config.Config, logger *zap.Logger) (audit.Store, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store audit.Store
	switch cfg.AuditBackend {
	case config.AuditBackendPostgres:
		pool, err := setupDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		if err := audit.Migrate(pool, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
		store = audit.NewPostgresStore(pool, logger)
	case config.AuditBackendRedis:
		client, err := setupRedis(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		store = audit.NewRedisStore(client, cfg.AuditRedisKey, logger)
	default:
		fileStore, err := audit.OpenFileStore(cfg.AuditFile, logger)
		if err != nil {
			return nil, nil, err
		}
		store = fileStore
	}

	if cfg.RabbitMQURL == "" {
		return store, cleanup, nil
	}
	conn, err := connectRabbitMQ(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = conn.Close() })
	publisher, err := audit.NewRabbitPublisher(conn, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = publisher.Close() })
	return audit.NewPublishingStore(store, publisher, logger), cleanup, nil
}

// setupDatabase создаёт пул соединений с PostgreSQL с повторными попытками.
func setupDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	logger.Info("Connecting to PostgreSQL", zap.String("dsn", cfg.MaskedDSN()), zap.Int("max_attempts", connectAttempts))
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		pool, err := pgxpool.NewWithConfig(attemptCtx, poolConfig)
		if err == nil {
			err = pool.Ping(attemptCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err == nil {
			logger.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}
		lastErr = err
		logger.Warn("PostgreSQL is not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleep(ctx, retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("не удалось подключиться к БД после %d попыток: %w", connectAttempts, lastErr)
}

// setupRedis подключается к Redis и проверяет соединение.
func setupRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		lastErr = client.Ping(attemptCtx).Err()
		cancel()
		if lastErr == nil {
			logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
			return client, nil
		}
		logger.Warn("Redis is not ready, retrying", zap.Int("attempt", attempt), zap.Error(lastErr))
		if err := sleep(ctx, retryDelay); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("не удалось подключиться к Redis после %d попыток: %w", connectAttempts, lastErr)
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(ctx context.Context, url string, logger *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			return conn, nil
		}
		lastErr = err
		logger.Warn("RabbitMQ is not ready, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleep(ctx, retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("не удалось подключиться к RabbitMQ после %d попыток: %w", connectAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
