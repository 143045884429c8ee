package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutputCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "studio.log")

	log, err := New(Config{Level: "debug", Encoding: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hello", zap.String("component", "test"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestParseLevel_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, zap.InfoLevel, parseLevel("nonsense").Level())
	assert.Equal(t, zap.InfoLevel, parseLevel("").Level())
	assert.Equal(t, zap.WarnLevel, parseLevel("WARN").Level())
}

func TestParseEncoding(t *testing.T) {
	assert.Equal(t, "console", parseEncoding("Console"))
	assert.Equal(t, "json", parseEncoding("xml"))
}
