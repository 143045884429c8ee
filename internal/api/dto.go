package api

import (
	"fmt"

	"script-studio/internal/model"
)

// ContextDTO - контекст действия в теле запроса. Kind выбирает вариант.
type ContextDTO struct {
	Kind          model.ContextKind          `json:"kind"`
	Project       *model.ProjectInfo         `json:"project,omitempty"`
	Episode       *model.EpisodeInfo         `json:"episode,omitempty"`
	Scene         *model.SceneInfo           `json:"scene,omitempty"`
	SceneSnapshot *model.SceneSnapshot       `json:"sceneSnapshot,omitempty"`
	Workspace     *model.StoryboardWorkspace `json:"workspace,omitempty"`
}

func (d *ContextDTO) toVariant() (model.ContextVariant, error) {
	if d == nil {
		return model.GeneralContext{}, nil
	}
	switch d.Kind {
	case "", model.ContextGeneral:
		return model.GeneralContext{}, nil
	case model.ContextScriptEpisode:
		if d.Episode == nil {
			return nil, fmt.Errorf("%w: episode is required for %s context", model.ErrInvalidRequest, d.Kind)
		}
		return model.NewScriptEpisodeContext(d.Project, *d.Episode)
	case model.ContextStoryboard:
		if d.Project == nil || d.Episode == nil {
			return nil, fmt.Errorf("%w: project and episode are required for %s context", model.ErrInvalidRequest, d.Kind)
		}
		return model.NewStoryboardContext(*d.Project, *d.Episode, d.Scene, d.SceneSnapshot, d.Workspace)
	case model.ContextScriptProject:
		if d.Project == nil {
			return nil, fmt.Errorf("%w: project is required for %s context", model.ErrInvalidRequest, d.Kind)
		}
		return model.NewScriptProjectContext(*d.Project)
	default:
		return nil, fmt.Errorf("%w: unknown context kind %q", model.ErrInvalidRequest, d.Kind)
	}
}

// ActionRequestDTO - тело POST /v1/actions и первое сообщение потокового соединения.
type ActionRequestDTO struct {
	Kind           model.ActionKind  `json:"kind"`
	Prompt         string            `json:"prompt"`
	Module         string            `json:"module,omitempty"`
	Channel        model.Channel     `json:"channel,omitempty"` // по умолчанию text
	Fields         map[string]string `json:"fields,omitempty"`
	AssetRefs      []string          `json:"assetRefs,omitempty"`
	Origin         string            `json:"origin,omitempty"`
	Context        *ContextDTO       `json:"context,omitempty"`
	NextShotNumber int               `json:"nextShotNumber,omitempty"` // для операций с раскадровкой
}

func (d ActionRequestDTO) toRequest() (model.ActionRequest, error) {
	variant, err := d.Context.toVariant()
	if err != nil {
		return model.ActionRequest{}, err
	}
	channel := d.Channel
	if channel == "" {
		channel = model.ChannelText
	}
	return model.NewActionRequest(model.ActionRequestParams{
		Kind:      d.Kind,
		Prompt:    d.Prompt,
		Module:    d.Module,
		Context:   variant,
		Channel:   channel,
		Fields:    d.Fields,
		AssetRefs: d.AssetRefs,
		Origin:    d.Origin,
	})
}

// ActionResponseDTO - ответ на действие. Entries заполняется для операций с раскадровкой.
type ActionResponseDTO struct {
	Result  model.ActionResult      `json:"result"`
	Entries []model.StoryboardEntry `json:"entries,omitempty"`
}

// Типы сообщений потокового соединения.
const (
	MessagePartial   = "partial"
	MessageCompleted = "completed"
	MessageError     = "error"
	MessageCancel    = "cancel"
)

// StreamMessage - сообщение сервера в потоковом соединении.
type StreamMessage struct {
	Type    string                  `json:"type"`
	Delta   string                  `json:"delta,omitempty"`
	Result  *model.ActionResult     `json:"result,omitempty"`
	Entries []model.StoryboardEntry `json:"entries,omitempty"`
	Error   *APIError               `json:"error,omitempty"`
}

// ClientMessage - управляющее сообщение клиента после запроса.
type ClientMessage struct {
	Type string `json:"type"`
}

// RelaySettingsDTO - настройки ретранслятора в API. Ключ наружу не отдаётся:
// в ответе только HasAPIKey; пустой APIKey в запросе оставляет прежний ключ.
type RelaySettingsDTO struct {
	Enabled     bool   `json:"enabled"`
	Provider    string `json:"provider"`
	BaseURL     string `json:"baseUrl"`
	APIKey      string `json:"apiKey,omitempty"`
	Model       string `json:"model"`
	HasAPIKey   bool   `json:"hasApiKey"`
	ClearAPIKey bool   `json:"clearApiKey,omitempty"`
}

// RouteSettingsDTO - настройки маршрутов по каналам.
type RouteSettingsDTO struct {
	Text  RelaySettingsDTO `json:"text"`
	Image RelaySettingsDTO `json:"image"`
}

func relayToDTO(s model.RelaySettings) RelaySettingsDTO {
	return RelaySettingsDTO{
		Enabled:   s.Enabled,
		Provider:  s.Provider,
		BaseURL:   s.BaseURL,
		Model:     s.Model,
		HasAPIKey: s.APIKey != "",
	}
}

func (d RelaySettingsDTO) apply(prev model.RelaySettings) model.RelaySettings {
	key := prev.APIKey
	switch {
	case d.ClearAPIKey:
		key = ""
	case d.APIKey != "":
		key = d.APIKey
	}
	return model.RelaySettings{
		Enabled:  d.Enabled,
		Provider: d.Provider,
		BaseURL:  d.BaseURL,
		APIKey:   key,
		Model:    d.Model,
	}
}

func settingsToDTO(s model.RouteSettings) RouteSettingsDTO {
	return RouteSettingsDTO{Text: relayToDTO(s.Text), Image: relayToDTO(s.Image)}
}

func (d RouteSettingsDTO) apply(prev model.RouteSettings) model.RouteSettings {
	return model.RouteSettings{Text: d.Text.apply(prev.Text), Image: d.Image.apply(prev.Image)}
}

// RelayModelsDTO - список моделей ретранслятора.
type RelayModelsDTO struct {
	Channel model.Channel `json:"channel"`
	Models  []string      `json:"models"`
}

// OfficialSecretDTO - тело PUT /v1/secrets/official.
type OfficialSecretDTO struct {
	APIKey string `json:"apiKey"`
}

// SecretStatusDTO - есть ли ключ официального провайдера.
type SecretStatusDTO struct {
	Configured bool `json:"configured"`
}

// AuditListDTO - страница журнала аудита.
type AuditListDTO struct {
	Entries []model.AuditLogEntry `json:"entries"`
}
