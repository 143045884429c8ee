// Package routing выбирает маршрут (official или relay) для канала вызова.
package routing

import (
	"strings"

	"script-studio/internal/model"
)

// SettingsSource отдаёт текущий снимок настроек маршрутов.
type SettingsSource interface {
	Snapshot() model.RouteSettings
}

// Resolve - чистая функция выбора маршрута. Relay выбирается только если он включён
// и заданы адрес, ключ и модель; иначе используется официальный провайдер.
func Resolve(settings model.RouteSettings, ch model.Channel) model.RouteResolution {
	relay := settings.Relay(ch)
	if !relay.Complete() {
		return model.RouteResolution{Route: model.RouteOfficial}
	}
	snap := SnapshotOf(relay)
	return model.RouteResolution{Route: model.RouteRelay, Relay: &snap}
}

// SnapshotOf фиксирует настройки ретранслятора без проверки полноты.
// Нужен и для списка моделей, который запрашивают до включения ретранслятора.
func SnapshotOf(relay model.RelaySettings) model.RelaySnapshot {
	return model.RelaySnapshot{
		Provider: normalizeProvider(relay.Provider),
		BaseURL:  strings.TrimRight(strings.TrimSpace(relay.BaseURL), "/"),
		APIKey:   strings.TrimSpace(relay.APIKey),
		Model:    strings.TrimSpace(relay.Model),
	}
}

// Selector читает настройки на каждом вызове, без кэширования.
type Selector struct {
	source SettingsSource
}

func NewSelector(source SettingsSource) *Selector {
	return &Selector{source: source}
}

// Resolve выбирает маршрут по свежему снимку настроек.
func (s *Selector) Resolve(ch model.Channel) model.RouteResolution {
	return Resolve(s.source.Snapshot(), ch)
}

func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "openai"
	}
	return p
}
