package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"script-studio/internal/model"
)

// FileStore хранит журнал в JSON-массиве (новые записи первыми) по фиксированному пути.
// Каждая запись и очистка переписывают файл атомарно: временный файл и rename.
// Запись сериализована мьютексом, поэтому параллельные Record не портят файл.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries []model.AuditLogEntry
	logger  *zap.Logger
}

var _ Store = (*FileStore)(nil)

// OpenFileStore загружает существующий журнал. Повреждённый файл не перезаписывается:
// возвращается ошибка, чтобы не потерять историю.
func OpenFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{path: path, logger: logger.Named("AuditFileStore")}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.entries = []model.AuditLogEntry{}
	case err != nil:
		return nil, fmt.Errorf("failed to read audit log %s: %w", path, err)
	case len(data) == 0:
		s.entries = []model.AuditLogEntry{}
	default:
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("failed to decode audit log %s: %w", path, err)
		}
	}
	sortNewestFirst(s.entries)
	s.logger.Info("Audit log opened", zap.String("path", path), zap.Int("entries", len(s.entries)))
	return s, nil
}

// Record добавляет запись и переписывает файл. При ошибке записи состояние в памяти не меняется.
func (s *FileStore) Record(_ context.Context, entry model.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.AuditLogEntry, 0, len(s.entries)+1)
	next = append(next, entry)
	next = append(next, s.entries...)
	sortNewestFirst(next)

	if err := s.persist(next); err != nil {
		return err
	}
	s.entries = next
	s.logger.Debug("Audit entry recorded", zap.String("job_id", entry.JobID), zap.String("action", entry.Action))
	return nil
}

func (s *FileStore) FetchRecent(_ context.Context, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(clampLimit(s.entries, limit)), nil
}

func (s *FileStore) LoadAll(_ context.Context) ([]model.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.entries), nil
}

// ClearAll необратимо очищает журнал.
func (s *FileStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := []model.AuditLogEntry{}
	if err := s.persist(empty); err != nil {
		return err
	}
	s.entries = empty
	s.logger.Info("Audit log cleared", zap.String("path", s.path))
	return nil
}

func (s *FileStore) persist(entries []model.AuditLogEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode audit log: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp audit file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp audit file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp audit file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp audit file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace audit log: %w", err)
	}
	return nil
}

func cloneEntries(in []model.AuditLogEntry) []model.AuditLogEntry {
	out := make([]model.AuditLogEntry, len(in))
	for i, e := range in {
		if e.AssetRefs != nil {
			refs := make([]string, len(e.AssetRefs))
			copy(refs, e.AssetRefs)
			e.AssetRefs = refs
		}
		if e.Metadata != nil {
			meta := make(map[string]string, len(e.Metadata))
			for k, v := range e.Metadata {
				meta[k] = v
			}
			e.Metadata = meta
		}
		out[i] = e
	}
	return out
}
