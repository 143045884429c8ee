// Package migration применяет встроенные SQL-миграции через golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Source - встроенный каталог миграций.
type Source struct {
	FS   fs.FS
	Path string
	// Table - таблица версий; разные компоненты держат версии раздельно.
	Table string
}

// Migrator применяет миграции одного Source к пулу pgx.
type Migrator struct {
	src    Source
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewMigrator(src Source, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	if src.Table == "" {
		src.Table = "schema_migrations"
	}
	return &Migrator{src: src, pool: pool, logger: logger.Named("Migrator")}
}

// Up применяет все новые миграции. Отсутствие изменений не ошибка.
func (m *Migrator) Up() error {
	return m.run("up", func(mg *migrate.Migrate) error { return mg.Up() })
}

// Version возвращает текущую версию схемы; 0 если миграций ещё не было.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) run(direction string, step func(*migrate.Migrate) error) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := step(mg); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations (%s): %w", direction, err)
	}
	m.logger.Info("Database migrations applied", zap.String("direction", direction), zap.String("table", m.src.Table))
	return nil
}

// open создаёт отдельное соединение database/sql по настройкам пула:
// migrate.Close закрывает его, не трогая сам пул.
func (m *Migrator) open() (*migrate.Migrate, error) {
	db := stdlib.OpenDB(*m.pool.Config().ConnConfig)
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: m.src.Table,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	source, err := iofs.New(m.src.FS, m.src.Path)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	mg.LockTimeout = 30 * time.Second
	return mg, nil
}
