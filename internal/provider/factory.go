package provider

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"script-studio/internal/model"
)

// OfficialConfig - модели и адрес официального маршрута.
type OfficialConfig struct {
	BaseURL    string
	TextModel  string
	ImageModel string
}

// Factory создаёт адаптер под разрешённый маршрут. Адаптеры живут один вызов:
// снимок настроек ретранслятора и ключ берутся на момент действия.
type Factory struct {
	official   OfficialConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewFactory(official OfficialConfig, httpClient *http.Client, logger *zap.Logger) *Factory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Factory{official: official, httpClient: httpClient, logger: logger}
}

// adapter - все адаптеры обслуживают оба канала.
type adapter interface {
	TextProvider
	ImageProvider
}

// Text возвращает текстовый адаптер. officialKey нужен только для официального маршрута.
func (f *Factory) Text(ctx context.Context, res model.RouteResolution, officialKey string) (TextProvider, error) {
	a, err := f.build(ctx, res, officialKey, model.ChannelText)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Image возвращает адаптер канала изображений.
func (f *Factory) Image(ctx context.Context, res model.RouteResolution, officialKey string) (ImageProvider, error) {
	a, err := f.build(ctx, res, officialKey, model.ChannelImage)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (f *Factory) build(ctx context.Context, res model.RouteResolution, officialKey string, ch model.Channel) (adapter, error) {
	if res.Route != model.RouteRelay {
		modelName := f.official.TextModel
		if ch == model.ChannelImage {
			modelName = f.official.ImageModel
		}
		return NewGeminiProvider(ctx, GeminiConfig{
			APIKey:     officialKey,
			BaseURL:    f.official.BaseURL,
			Model:      modelName,
			HTTPClient: f.httpClient,
		}, ch, f.logger)
	}

	if res.Relay == nil {
		return nil, fmt.Errorf("%w: relay route without settings", model.ErrNotConfigured)
	}
	if res.Relay.Provider == providerOllama {
		return NewOllamaProvider(*res.Relay, ch, f.httpClient, f.logger)
	}
	return NewOpenAIProvider(*res.Relay, ch, f.httpClient, f.logger), nil
}
