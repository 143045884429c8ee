// Package secrets хранит ключ официального провайдера.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound - секрет не сохранён.
var ErrNotFound = errors.New("secret not found")

// Store - хранилище секрета.
type Store interface {
	FetchSecret(ctx context.Context) (string, error)
	Save(ctx context.Context, secret string) error
	Clear(ctx context.Context) error
}

// FileStore хранит секрет в отдельном файле, как Docker Secrets: <dir>/<name>.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir, name string) *FileStore {
	return &FileStore{path: filepath.Join(dir, name)}
}

// FetchSecret читает секрет. Отсутствующий или пустой файл даёт ErrNotFound.
func (s *FileStore) FetchSecret(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readSecretFile(s.path)
}

// Save записывает секрет с правами 0600.
func (s *FileStore) Save(_ context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("secret is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(secret), 0o600); err != nil {
		return fmt.Errorf("failed to write secret file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace secret file %s: %w", s.path, err)
	}
	return nil
}

// Clear удаляет секрет. Удаление отсутствующего секрета не ошибка.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove secret file %s: %w", s.path, err)
	}
	return nil
}

// ReadSecret читает секрет процесса из каталога секретов (например /run/secrets).
func ReadSecret(dir, name string) (string, error) {
	return readSecretFile(filepath.Join(dir, name))
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, path)
	}
	return secret, nil
}

// MemoryStore держит секрет в памяти процесса.
type MemoryStore struct {
	mu     sync.RWMutex
	secret string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(secret string) *MemoryStore {
	return &MemoryStore{secret: strings.TrimSpace(secret)}
}

func (m *MemoryStore) FetchSecret(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.secret == "" {
		return "", ErrNotFound
	}
	return m.secret, nil
}

func (m *MemoryStore) Save(_ context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("secret is empty")
	}
	m.mu.Lock()
	m.secret = secret
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.secret = ""
	m.mu.Unlock()
	return nil
}
