package model

import "strings"

// Route - бэкенд, обслуживающий вызов.
type Route string

const (
	RouteOfficial Route = "official"
	RouteRelay    Route = "relay"
)

// RelaySettings - настройки ретранслятора для одного канала.
type RelaySettings struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Provider string `json:"provider" yaml:"provider"`
	BaseURL  string `json:"baseUrl" yaml:"base_url"`
	APIKey   string `json:"apiKey" yaml:"api_key"`
	Model    string `json:"model" yaml:"model"`
}

// Complete сообщает, можно ли отправлять вызовы через ретранслятор.
func (s RelaySettings) Complete() bool {
	return s.Enabled &&
		strings.TrimSpace(s.BaseURL) != "" &&
		strings.TrimSpace(s.APIKey) != "" &&
		strings.TrimSpace(s.Model) != ""
}

// RouteSettings - настройки маршрутов по каналам.
type RouteSettings struct {
	Text  RelaySettings `json:"text" yaml:"text"`
	Image RelaySettings `json:"image" yaml:"image"`
}

// Relay возвращает настройки ретранслятора для канала.
func (s RouteSettings) Relay(ch Channel) RelaySettings {
	if ch.RouteChannel() == ChannelImage {
		return s.Image
	}
	return s.Text
}

// RelaySnapshot - копия настроек ретранслятора, зафиксированная для одного вызова.
type RelaySnapshot struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// RouteResolution - выбранный маршрут. Relay заполнен только для RouteRelay.
type RouteResolution struct {
	Route Route
	Relay *RelaySnapshot
}
