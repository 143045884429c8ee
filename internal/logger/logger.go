package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config описывает настройки логгера демона.
type Config struct {
	Level      string // debug, info, warn, error
	Encoding   string // json или console
	OutputPath string // файл лога; пусто означает stdout
}

// New собирает zap.Logger по конфигурации.
// Для файлового вывода каталог создаётся заранее: приложение пишет лог в свою папку данных.
func New(cfg Config) (*zap.Logger, error) {
	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	} else if outputPath != "stdout" && outputPath != "stderr" {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	zapConfig := zap.Config{
		Level:             parseLevel(cfg.Level),
		Development:       false,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          parseEncoding(cfg.Encoding),
		EncoderConfig:     encoderConfig(),
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}

	log, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

func parseLevel(raw string) zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		// логгера ещё нет, пишем в stderr
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", raw, err)
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

func parseEncoding(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "console":
		return "console"
	default:
		return "json"
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}
