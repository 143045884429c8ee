package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"script-studio/internal/secrets"
)

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8787", cfg.HTTPAddr)
	assert.Equal(t, AuditBackendFile, cfg.AuditBackend)
	assert.Equal(t, filepath.Join(dataDir, "audit-log.json"), cfg.AuditFile)
	assert.Equal(t, filepath.Join(dataDir, "routes.yaml"), cfg.RouteSettingsPath)
	assert.Equal(t, "gemini-2.5-flash", cfg.OfficialTextModel)
	assert.Equal(t, 120*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "app://studio"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.DBPassword)

	lc := cfg.LoggerConfig()
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "json", lc.Encoding)

	dc := cfg.DiscoveryConfig()
	assert.Equal(t, 32, dc.CacheSize)
	assert.Equal(t, 5*time.Minute, dc.CacheTTL)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("AUDIT_BACKEND", "Redis")
	t.Setenv("AUDIT_FILE", "/tmp/custom.json")
	t.Setenv("OFFICIAL_TEXT_MODEL", "gemini-2.5-pro")
	t.Setenv("PROVIDER_TIMEOUT", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, AuditBackendRedis, cfg.AuditBackend)
	assert.Equal(t, "/tmp/custom.json", cfg.AuditFile)
	assert.Equal(t, "gemini-2.5-pro", cfg.OfficialConfig().TextModel)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("AUDIT_BACKEND", "sqlite")

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig_PostgresReadsPasswordSecret(t *testing.T) {
	secretsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, "db_password"), []byte("s3cret\n"), 0o600))

	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("AUDIT_BACKEND", "postgres")
	t.Setenv("SECRETS_DIR", secretsDir)
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "studio")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.DBPassword)
	assert.Equal(t, "postgres://studio:s3cret@db:5432/script_studio?sslmode=disable", cfg.GetDSN())
	assert.Equal(t, "postgres://studio:********@db:5432/script_studio?sslmode=disable", cfg.MaskedDSN())
}

func TestLoadConfig_PostgresWithoutPassword(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("AUDIT_BACKEND", "postgres")
	t.Setenv("SECRETS_DIR", t.TempDir())

	_, err := LoadConfig()
	assert.ErrorIs(t, err, secrets.ErrNotFound)
}
