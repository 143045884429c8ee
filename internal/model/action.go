package model

import (
	"fmt"
	"strings"
)

// ActionKind - тип пользовательского действия, породившего вызов модели.
type ActionKind string

const (
	ActionConversation     ActionKind = "conversation"
	ActionStoryboard       ActionKind = "storyboard-operation"
	ActionSceneComposition ActionKind = "scene-composition"
	ActionImaging          ActionKind = "imaging"
	ActionDiagnostics      ActionKind = "diagnostics"
)

// Valid сообщает, известен ли тип действия.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionConversation, ActionStoryboard, ActionSceneComposition, ActionImaging, ActionDiagnostics:
		return true
	}
	return false
}

// Channel - модальность вызова.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelImage Channel = "image"
	ChannelVideo Channel = "video"
)

// Valid сообщает, известен ли канал.
func (c Channel) Valid() bool {
	switch c {
	case ChannelText, ChannelImage, ChannelVideo:
		return true
	}
	return false
}

// RouteChannel возвращает канал, по настройкам которого выбирается маршрут.
// Видео обслуживается медиа-маршрутом изображений.
func (c Channel) RouteChannel() Channel {
	if c == ChannelVideo {
		return ChannelImage
	}
	return c
}

// ActionRequestParams - входные данные для NewActionRequest.
type ActionRequestParams struct {
	Kind      ActionKind
	Prompt    string
	Module    string
	Context   ContextVariant
	Channel   Channel
	Fields    map[string]string
	AssetRefs []string
	Origin    string
}

// ActionRequest - неизменяемый запрос действия. Создаётся один раз на действие пользователя.
type ActionRequest struct {
	kind      ActionKind
	prompt    string
	module    string
	context   ContextVariant
	channel   Channel
	fields    map[string]string
	assetRefs []string
	origin    string
}

// NewActionRequest проверяет параметры и копирует изменяемые части,
// чтобы вызывающий код не мог поменять запрос после создания.
func NewActionRequest(p ActionRequestParams) (ActionRequest, error) {
	if !p.Kind.Valid() {
		return ActionRequest{}, fmt.Errorf("%w: unknown action kind %q", ErrInvalidRequest, p.Kind)
	}
	if !p.Channel.Valid() {
		return ActionRequest{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidRequest, p.Channel)
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return ActionRequest{}, fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	ctxVariant := p.Context
	if ctxVariant == nil {
		ctxVariant = GeneralContext{}
	}
	return ActionRequest{
		kind:      p.Kind,
		prompt:    p.Prompt,
		module:    strings.TrimSpace(p.Module),
		context:   ctxVariant,
		channel:   p.Channel,
		fields:    copyFields(p.Fields),
		assetRefs: copyStrings(p.AssetRefs),
		origin:    p.Origin,
	}, nil
}

func (r ActionRequest) Kind() ActionKind        { return r.kind }
func (r ActionRequest) Prompt() string          { return r.prompt }
func (r ActionRequest) Module() string          { return r.module }
func (r ActionRequest) Context() ContextVariant { return r.context }
func (r ActionRequest) Channel() Channel        { return r.channel }
func (r ActionRequest) Origin() string          { return r.origin }

// Fields возвращает копию переопределений полей.
func (r ActionRequest) Fields() map[string]string { return copyFields(r.fields) }

// AssetRefs возвращает копию ссылок на ассеты.
func (r ActionRequest) AssetRefs() []string { return copyStrings(r.assetRefs) }

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
