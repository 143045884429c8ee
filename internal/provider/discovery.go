package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"script-studio/internal/model"
)

// DiscoveryConfig - размер и время жизни кэша списков моделей.
type DiscoveryConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Discoverer получает список моделей ретранслятора. Результаты кэшируются по адресу и ключу.
type Discoverer struct {
	cache      *expirable.LRU[string, []string]
	group      singleflight.Group
	httpClient *http.Client
	logger     *zap.Logger
}

func NewDiscoverer(cfg DiscoveryConfig, httpClient *http.Client, logger *zap.Logger) *Discoverer {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 32
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Discoverer{
		cache:      expirable.NewLRU[string, []string](cfg.CacheSize, nil, cfg.CacheTTL),
		httpClient: httpClient,
		logger:     logger.Named("Discoverer"),
	}
}

// ListModels возвращает отсортированные идентификаторы моделей, используя кэш.
// Одновременные промахи по одному ключу сливаются в один запрос (контекст первого вызова).
func (d *Discoverer) ListModels(ctx context.Context, relay model.RelaySnapshot) ([]string, error) {
	key := cacheKey(relay)
	if ids, ok := d.cache.Get(key); ok {
		return append([]string(nil), ids...), nil
	}
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		return d.fetch(ctx, relay, key)
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}

// Refresh запрашивает список заново, минуя кэш.
func (d *Discoverer) Refresh(ctx context.Context, relay model.RelaySnapshot) ([]string, error) {
	return d.fetch(ctx, relay, cacheKey(relay))
}

func (d *Discoverer) fetch(ctx context.Context, relay model.RelaySnapshot, key string) ([]string, error) {
	if strings.TrimSpace(relay.BaseURL) == "" {
		return nil, fmt.Errorf("%w: relay base url is empty", model.ErrNotConfigured)
	}
	var (
		ids []string
		err error
	)
	if relay.Provider == providerOllama {
		ids, err = d.listOllama(ctx, relay)
	} else {
		ids, err = d.listOpenAI(ctx, relay)
	}
	if err != nil {
		d.logger.Warn("Model discovery failed", zap.String("base_url", relay.BaseURL), zap.Error(err))
		return nil, err
	}
	sort.Strings(ids)
	d.cache.Add(key, ids)
	d.logger.Info("Relay models discovered", zap.String("base_url", relay.BaseURL), zap.Int("count", len(ids)))
	return append([]string(nil), ids...), nil
}

func (d *Discoverer) listOpenAI(ctx context.Context, relay model.RelaySnapshot) ([]string, error) {
	cfg := openaigo.DefaultConfig(relay.APIKey)
	cfg.BaseURL = APIBaseURL(relay.BaseURL)
	cfg.HTTPClient = d.httpClient
	list, err := openaigo.NewClientWithConfig(cfg).ListModels(ctx)
	if err != nil {
		return nil, discoveryError(ctx, providerOpenAI, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (d *Discoverer) listOllama(ctx context.Context, relay model.RelaySnapshot) ([]string, error) {
	base, err := ollamaBaseURL(relay.BaseURL)
	if err != nil {
		return nil, err
	}
	list, err := api.NewClient(base, d.httpClient).List(ctx)
	if err != nil {
		return nil, discoveryError(ctx, providerOllama, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if m.Name != "" {
			ids = append(ids, m.Name)
		}
	}
	return ids, nil
}

// discoveryError: ошибка декодирования ответа считается malformed, остальное - как у адаптеров.
func discoveryError(ctx context.Context, provider string, err error) error {
	classified := providerError(ctx, provider, err)
	var pe *model.ProviderError
	if errors.As(classified, &pe) && pe.Kind == model.ProviderErrorNetwork && isDecodeError(err) {
		return malformed(provider, err)
	}
	return classified
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func cacheKey(relay model.RelaySnapshot) string {
	sum := sha256.Sum256([]byte(relay.APIKey))
	return relay.Provider + "|" + APIBaseURL(relay.BaseURL) + "|" + hex.EncodeToString(sum[:8])
}
