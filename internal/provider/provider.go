// Package provider содержит адаптеры моделей: официальный маршрут (Gemini) и
// ретрансляторы (OpenAI-совместимые и Ollama).
package provider

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	openaigo "github.com/sashabaranov/go-openai"

	"script-studio/internal/fields"
	"script-studio/internal/model"
)

// TextProvider - адаптер текстового канала.
type TextProvider interface {
	Submit(ctx context.Context, job model.JobRequest) (model.JobResult, error)
	// SubmitStream отдаёт фрагменты ответа в onDelta в порядке получения.
	// Ошибка onDelta прерывает вызов.
	SubmitStream(ctx context.Context, job model.JobRequest, onDelta func(string) error) (model.JobResult, error)
}

// ImageProvider - адаптер канала изображений.
type ImageProvider interface {
	Generate(ctx context.Context, job model.JobRequest) (model.JobResult, error)
}

// Input - сообщения, отправляемые модели.
type Input struct {
	System string
	User   string
}

// Resolved - полный вход провайдера; именно он хэшируется в журнале аудита.
func (in Input) Resolved() string {
	if in.System == "" {
		return in.User
	}
	return in.System + "\n\n" + in.User
}

var contextSections = []struct {
	key     string
	heading string
}{
	{fields.KeyProjectContext, "Project"},
	{fields.KeyEpisodeContext, "Episode"},
	{fields.KeySceneContext, "Scene"},
	{fields.KeyStoryboardContext, "Storyboard"},
	{fields.KeyStatus, "Status"},
}

var reservedKeys = map[string]bool{
	fields.KeyPrompt:         true,
	fields.KeyModule:         true,
	fields.KeySystemPrompt:   true,
	fields.KeyResponseFormat: true,
}

// ComposeInput собирает сообщения из карты полей. Системное сообщение - шаблон модуля
// и требование к формату ответа; пользовательское - блоки контекста, затем прочие поля
// в порядке ключей, затем сам запрос.
func ComposeInput(f map[string]string) Input {
	var system []string
	if v := strings.TrimSpace(f[fields.KeySystemPrompt]); v != "" {
		system = append(system, v)
	}
	if v := strings.TrimSpace(f[fields.KeyResponseFormat]); v != "" {
		system = append(system, v)
	}

	var user []string
	known := make(map[string]bool, len(contextSections))
	for _, s := range contextSections {
		known[s.key] = true
		if v := strings.TrimSpace(f[s.key]); v != "" {
			user = append(user, "## "+s.heading+"\n"+v)
		}
	}

	extra := make([]string, 0)
	for k, v := range f {
		if reservedKeys[k] || known[k] || strings.TrimSpace(v) == "" {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		user = append(user, "## "+k+"\n"+strings.TrimSpace(f[k]))
	}

	if v := strings.TrimSpace(f[fields.KeyPrompt]); v != "" {
		user = append(user, v)
	}
	return Input{
		System: strings.Join(system, "\n\n"),
		User:   strings.Join(user, "\n\n"),
	}
}

// providerError классифицирует ошибку транспорта. Отмена контекста возвращается как есть.
func providerError(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ce *consumerError
	if errors.As(err, &ce) {
		return ce.err
	}
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	if status := statusCodeOf(err); status != 0 {
		return statusError(provider, status, err)
	}

	return &model.ProviderError{Kind: model.ProviderErrorNetwork, Provider: provider, Err: err}
}

// consumerError - ошибку вернул получатель фрагментов, а не провайдер.
type consumerError struct{ err error }

func (e *consumerError) Error() string { return "stream consumer: " + e.err.Error() }
func (e *consumerError) Unwrap() error { return e.err }

func statusError(provider string, status int, err error) *model.ProviderError {
	kind := model.ProviderErrorStatus
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = model.ProviderErrorAuth
	case http.StatusTooManyRequests:
		kind = model.ProviderErrorQuota
	}
	return &model.ProviderError{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}

func malformed(provider string, err error) *model.ProviderError {
	return &model.ProviderError{Kind: model.ProviderErrorMalformed, Provider: provider, Err: err}
}

// statusCodeOf достаёт HTTP-статус из ошибок клиентских библиотек.
func statusCodeOf(err error) int {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	if code := ollamaStatusCode(err); code != 0 {
		return code
	}
	return geminiStatusCode(err)
}
