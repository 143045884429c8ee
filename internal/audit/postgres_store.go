package audit

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"script-studio/internal/model"
	"script-studio/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBTX - подмножество pgxpool.Pool, нужное хранилищу.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	insertEntryQuery = `
        INSERT INTO audit_entries
        (job_id, action, prompt_hash, asset_refs, model_version, route, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectEntriesQuery = `
        SELECT job_id, action, prompt_hash, asset_refs, model_version, route, metadata, created_at
        FROM audit_entries
        ORDER BY created_at DESC, id DESC`
	clearEntriesQuery = `TRUNCATE audit_entries`
)

// PostgresStore хранит журнал в таблице audit_entries.
type PostgresStore struct {
	db     DBTX
	logger *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db DBTX, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Named("AuditPostgresStore")}
}

// Migrate создаёт таблицу журнала.
func Migrate(pool *pgxpool.Pool, logger *zap.Logger) error {
	m := migration.NewMigrator(migration.Source{
		FS:    migrationsFS,
		Path:  "migrations",
		Table: "audit_schema_migrations",
	}, pool, logger)
	return m.Up()
}

func (s *PostgresStore) Record(ctx context.Context, entry model.AuditLogEntry) error {
	meta := entry.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}
	refs := entry.AssetRefs
	if refs == nil {
		refs = []string{}
	}

	_, err = s.db.Exec(ctx, insertEntryQuery,
		entry.JobID,
		entry.Action,
		entry.PromptHash,
		refs,
		entry.ModelVersion,
		entry.Route,
		metaJSON,
		entry.CreatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to insert audit entry", zap.Error(err), zap.String("job_id", entry.JobID))
		return fmt.Errorf("failed to insert audit entry '%s': %w", entry.JobID, err)
	}
	return nil
}

func (s *PostgresStore) FetchRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.selectEntries(ctx, selectEntriesQuery+" LIMIT $1", limit)
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]model.AuditLogEntry, error) {
	return s.selectEntries(ctx, selectEntriesQuery)
}

func (s *PostgresStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, clearEntriesQuery); err != nil {
		s.logger.Error("Failed to clear audit entries", zap.Error(err))
		return fmt.Errorf("failed to clear audit entries: %w", err)
	}
	s.logger.Info("Audit entries cleared")
	return nil
}

func (s *PostgresStore) selectEntries(ctx context.Context, query string, args ...any) ([]model.AuditLogEntry, error) {
	entries := []model.AuditLogEntry{}
	if err := pgxscan.Select(ctx, s.db, &entries, query, args...); err != nil {
		s.logger.Error("Failed to select audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}
	for i := range entries {
		entries[i].CreatedAt = entries[i].CreatedAt.UTC()
	}
	return entries, nil
}
