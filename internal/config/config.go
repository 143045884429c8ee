// Package config загружает конфигурацию демона из окружения (.env поддерживается) и файлов секретов.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"script-studio/internal/logger"
	"script-studio/internal/provider"
	"script-studio/internal/secrets"
)

// Хранилища журнала аудита.
const (
	AuditBackendFile     = "file"
	AuditBackendPostgres = "postgres"
	AuditBackendRedis    = "redis"
)

// ErrInvalidConfig - значения конфигурации противоречат друг другу.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config содержит конфигурацию демона.
type Config struct {
	// HTTP
	HTTPAddr           string   `envconfig:"HTTP_ADDR" default:"127.0.0.1:8787"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,app://studio"`

	// Логирование
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	LogOutput   string `envconfig:"LOG_OUTPUT" default:""`

	// Файлы приложения
	DataDir            string `envconfig:"DATA_DIR" default:"./data"`
	PromptsDir         string `envconfig:"PROMPTS_DIR" default:"./prompts"`
	RouteSettingsPath  string `envconfig:"ROUTE_SETTINGS_PATH" default:""` // пусто - <DATA_DIR>/routes.yaml
	SecretsDir         string `envconfig:"SECRETS_DIR" default:"/run/secrets"`
	OfficialSecretName string `envconfig:"OFFICIAL_SECRET_NAME" default:"official_api_key"`

	// Официальный маршрут
	OfficialBaseURL    string `envconfig:"OFFICIAL_BASE_URL" default:""`
	OfficialTextModel  string `envconfig:"OFFICIAL_TEXT_MODEL" default:"gemini-2.5-flash"`
	OfficialImageModel string `envconfig:"OFFICIAL_IMAGE_MODEL" default:"gemini-2.0-flash-preview-image-generation"`

	ProviderTimeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"120s"`
	DiscoveryCacheTTL time.Duration `envconfig:"DISCOVERY_CACHE_TTL" default:"5m"`
	DiscoveryCacheLen int           `envconfig:"DISCOVERY_CACHE_SIZE" default:"32"`

	// Журнал аудита
	AuditBackend  string `envconfig:"AUDIT_BACKEND" default:"file"`
	AuditFile     string `envconfig:"AUDIT_FILE" default:""` // пусто - <DATA_DIR>/audit-log.json
	AuditRedisKey string `envconfig:"AUDIT_REDIS_KEY" default:"audit:entries"`

	// PostgreSQL (AUDIT_BACKEND=postgres)
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"script_studio"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int32         `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле без envconfig тега
	DBPassword string `ignored:"true"`

	// Redis (AUDIT_BACKEND=redis)
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`

	// RabbitMQ: пустой URL отключает публикацию записей аудита
	RabbitMQURL string `envconfig:"RABBITMQ_URL" default:""`
}

// LoadConfig загружает .env (если он есть), переменные окружения и секреты.
func LoadConfig() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if cfg.AuditBackend == AuditBackendPostgres {
		password, err := secrets.ReadSecret(cfg.SecretsDir, "db_password")
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения секрета db_password: %w", err)
		}
		cfg.DBPassword = password
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.AuditBackend = strings.ToLower(strings.TrimSpace(c.AuditBackend))
	switch c.AuditBackend {
	case "":
		c.AuditBackend = AuditBackendFile
	case AuditBackendFile, AuditBackendPostgres, AuditBackendRedis:
	default:
		return fmt.Errorf("%w: unknown AUDIT_BACKEND %q", ErrInvalidConfig, c.AuditBackend)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: DATA_DIR is empty", ErrInvalidConfig)
	}
	if c.RouteSettingsPath == "" {
		c.RouteSettingsPath = filepath.Join(c.DataDir, "routes.yaml")
	}
	if c.AuditFile == "" {
		c.AuditFile = filepath.Join(c.DataDir, "audit-log.json")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: PROVIDER_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoggerConfig возвращает настройки логгера.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.LogLevel,
		Encoding:   c.LogEncoding,
		OutputPath: c.LogOutput,
	}
}

// DiscoveryConfig возвращает настройки кэша списка моделей.
func (c *Config) DiscoveryConfig() provider.DiscoveryConfig {
	return provider.DiscoveryConfig{
		CacheSize: c.DiscoveryCacheLen,
		CacheTTL:  c.DiscoveryCacheTTL,
	}
}

// OfficialConfig возвращает настройки официального маршрута.
func (c *Config) OfficialConfig() provider.OfficialConfig {
	return provider.OfficialConfig{
		BaseURL:    c.OfficialBaseURL,
		TextModel:  c.OfficialTextModel,
		ImageModel: c.OfficialImageModel,
	}
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// MaskedDSN возвращает DSN с замаскированным паролем для логирования
func (c *Config) MaskedDSN() string {
	dsn := c.GetDSN()
	idx := strings.LastIndex(dsn, "@")
	if idx < 0 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(dsn[:idx], ":")
	if len(userInfo) >= 3 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + dsn[idx:]
}

// Log пишет загруженную конфигурацию без секретов.
func (c *Config) Log(log *zap.Logger) {
	fields := []zap.Field{
		zap.String("http_addr", c.HTTPAddr),
		zap.Strings("cors_origins", c.CORSAllowedOrigins),
		zap.String("data_dir", c.DataDir),
		zap.String("prompts_dir", c.PromptsDir),
		zap.String("route_settings", c.RouteSettingsPath),
		zap.String("secrets_dir", c.SecretsDir),
		zap.String("official_text_model", c.OfficialTextModel),
		zap.String("official_image_model", c.OfficialImageModel),
		zap.Duration("provider_timeout", c.ProviderTimeout),
		zap.String("audit_backend", c.AuditBackend),
		zap.Bool("audit_publish", c.RabbitMQURL != ""),
	}
	switch c.AuditBackend {
	case AuditBackendFile:
		fields = append(fields, zap.String("audit_file", c.AuditFile))
	case AuditBackendPostgres:
		fields = append(fields, zap.String("db_dsn", c.MaskedDSN()))
	case AuditBackendRedis:
		fields = append(fields, zap.String("redis_addr", c.RedisAddr), zap.String("redis_key", c.AuditRedisKey))
	}
	log.Info("Конфигурация загружена", fields...)
}
