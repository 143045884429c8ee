package routing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"script-studio/internal/model"
)

// relayFile - настройки ретранслятора в YAML-файле. Переменные окружения перекрывают файл.
type relayFile struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Provider string `yaml:"provider" env:"PROVIDER"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	Model    string `yaml:"model" env:"MODEL"`
}

type settingsFile struct {
	Text  relayFile `yaml:"text" env-prefix:"RELAY_TEXT_"`
	Image relayFile `yaml:"image" env-prefix:"RELAY_IMAGE_"`
}

// SettingsStore хранит настройки маршрутов. Чтение идёт без блокировок через atomic.Pointer,
// так что изменение настроек не затрагивает уже выбранный маршрут вызова.
type SettingsStore struct {
	path    string
	current atomic.Pointer[model.RouteSettings]
	writeMu sync.Mutex
	logger  *zap.Logger
}

// NewSettingsStore создаёт хранилище с пустыми настройками (всё идёт в official).
func NewSettingsStore(path string, logger *zap.Logger) *SettingsStore {
	s := &SettingsStore{path: path, logger: logger.Named("RouteSettings")}
	s.current.Store(&model.RouteSettings{})
	return s
}

// Load читает YAML-файл настроек, если он есть, и применяет переопределения из окружения.
func (s *SettingsStore) Load() error {
	var file settingsFile
	var err error
	if _, statErr := os.Stat(s.path); statErr == nil {
		err = cleanenv.ReadConfig(s.path, &file)
	} else if errors.Is(statErr, os.ErrNotExist) {
		s.logger.Info("Route settings file not found, using environment only", zap.String("path", s.path))
		err = cleanenv.ReadEnv(&file)
	} else {
		return fmt.Errorf("failed to stat route settings %s: %w", s.path, statErr)
	}
	if err != nil {
		return fmt.Errorf("failed to read route settings: %w", err)
	}

	settings := fromFile(file)
	s.current.Store(&settings)
	s.logger.Info("Route settings loaded",
		zap.Bool("text_relay", settings.Text.Complete()),
		zap.Bool("image_relay", settings.Image.Complete()),
	)
	return nil
}

// Snapshot возвращает копию текущих настроек.
func (s *SettingsStore) Snapshot() model.RouteSettings {
	return *s.current.Load()
}

// Update сохраняет настройки на диск и подменяет снимок. Следующий вызов видит новые настройки.
func (s *SettingsStore) Update(settings model.RouteSettings) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := yaml.Marshal(toFile(settings))
	if err != nil {
		return fmt.Errorf("failed to marshal route settings: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		s.logger.Error("Failed to persist route settings", zap.Error(err), zap.String("path", s.path))
		return err
	}

	s.current.Store(&settings)
	s.logger.Info("Route settings updated",
		zap.Bool("text_relay", settings.Text.Complete()),
		zap.Bool("image_relay", settings.Image.Complete()),
	)
	return nil
}

func fromFile(f settingsFile) model.RouteSettings {
	conv := func(r relayFile) model.RelaySettings {
		return model.RelaySettings{
			Enabled:  r.Enabled,
			Provider: r.Provider,
			BaseURL:  r.BaseURL,
			APIKey:   r.APIKey,
			Model:    r.Model,
		}
	}
	return model.RouteSettings{Text: conv(f.Text), Image: conv(f.Image)}
}

func toFile(s model.RouteSettings) settingsFile {
	conv := func(r model.RelaySettings) relayFile {
		return relayFile{
			Enabled:  r.Enabled,
			Provider: r.Provider,
			BaseURL:  r.BaseURL,
			APIKey:   r.APIKey,
			Model:    r.Model,
		}
	}
	return settingsFile{Text: conv(s.Text), Image: conv(s.Image)}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
