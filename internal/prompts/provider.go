// Package prompts отдаёт системные промты по идентификатору модуля.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const promptExt = ".md"

// Provider кэширует шаблоны системных промтов из каталога PROMPTS_DIR.
// Файл <module>.md соответствует модулю <module>.
type Provider struct {
	dir    string
	mu     sync.RWMutex
	cache  map[string]string
	logger *zap.Logger
}

func NewProvider(dir string, logger *zap.Logger) *Provider {
	return &Provider{
		dir:    dir,
		cache:  make(map[string]string),
		logger: logger.Named("PromptProvider"),
	}
}

// LoadAll перечитывает все шаблоны и целиком заменяет кэш.
func (p *Provider) LoadAll() error {
	p.logger.Info("Loading prompt templates", zap.String("dir", p.dir))
	files, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("failed to read prompts dir %s: %w", p.dir, err)
	}

	fresh := make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != promptExt {
			continue
		}
		content, err := os.ReadFile(filepath.Join(p.dir, f.Name()))
		if err != nil {
			return fmt.Errorf("failed to read prompt %s: %w", f.Name(), err)
		}
		fresh[strings.TrimSuffix(f.Name(), promptExt)] = string(content)
	}

	p.mu.Lock()
	p.cache = fresh
	p.mu.Unlock()

	p.logger.Info("Prompt templates loaded", zap.Int("count", len(fresh)))
	return nil
}

// GetPrompt возвращает шаблон модуля. Неизвестный модуль даёт пустую строку:
// системный промт необязателен.
func (p *Provider) GetPrompt(module string) string {
	module = strings.TrimSpace(module)
	if module == "" {
		return ""
	}
	p.mu.RLock()
	content, ok := p.cache[module]
	p.mu.RUnlock()
	if !ok {
		p.logger.Debug("No prompt template for module", zap.String("module", module))
	}
	return content
}
