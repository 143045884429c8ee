package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"script-studio/internal/model"
)

const providerOllama = "ollama"

// OllamaProvider - адаптер ретранслятора с нативным API Ollama.
type OllamaProvider struct {
	client *api.Client
	labels callLabels
	logger *zap.Logger
}

var (
	_ TextProvider  = (*OllamaProvider)(nil)
	_ ImageProvider = (*OllamaProvider)(nil)
)

// NewOllamaProvider создаёт адаптер. api.NewClient ждёт адрес без суффикса /v1.
func NewOllamaProvider(relay model.RelaySnapshot, ch model.Channel, httpClient *http.Client, logger *zap.Logger) (*OllamaProvider, error) {
	base, err := ollamaBaseURL(relay.BaseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaProvider{
		client: api.NewClient(base, httpClient),
		labels: callLabels{route: model.RouteRelay, channel: ch, model: relay.Model},
		logger: logger.Named("OllamaProvider").With(
			zap.String("base_url", base.String()),
			zap.String("model", relay.Model),
		),
	}, nil
}

func ollamaBaseURL(raw string) (*url.URL, error) {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ollama base url '%s': %v", model.ErrInvalidRequest, raw, err)
	}
	return u, nil
}

func (p *OllamaProvider) request(in Input, stream bool) *api.ChatRequest {
	msgs := make([]api.Message, 0, 2)
	if in.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: in.System})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: in.User})
	return &api.ChatRequest{
		Model:    p.labels.model,
		Messages: msgs,
		Stream:   &stream,
	}
}

func (p *OllamaProvider) Submit(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	return p.chat(ctx, job, false, nil)
}

func (p *OllamaProvider) SubmitStream(ctx context.Context, job model.JobRequest, onDelta func(string) error) (model.JobResult, error) {
	return p.chat(ctx, job, true, onDelta)
}

func (p *OllamaProvider) Generate(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	return p.Submit(ctx, job)
}

func (p *OllamaProvider) chat(ctx context.Context, job model.JobRequest, stream bool, onDelta func(string) error) (model.JobResult, error) {
	in := ComposeInput(job.Fields)
	start := time.Now()

	var (
		text      strings.Builder
		usage     model.Usage
		respModel string
	)
	err := p.client.Chat(ctx, p.request(in, stream), func(resp api.ChatResponse) error {
		if resp.Model != "" {
			respModel = resp.Model
		}
		if chunk := resp.Message.Content; chunk != "" {
			text.WriteString(chunk)
			if onDelta != nil {
				if err := onDelta(chunk); err != nil {
					return &consumerError{err: err}
				}
			}
		}
		if resp.Done {
			usage = model.Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
			if resp.DoneReason != "" && resp.DoneReason != "stop" {
				p.logger.Info("Chat finished with non-stop reason", zap.String("job_id", job.ID), zap.String("reason", resp.DoneReason))
			}
		}
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		p.labels.observe("error", elapsed, model.Usage{})
		p.logger.Warn("Ollama chat failed", zap.String("job_id", job.ID), zap.Duration("elapsed", elapsed), zap.Error(err))
		return model.JobResult{}, providerError(ctx, providerOllama, err)
	}
	if text.Len() == 0 {
		p.labels.observe("error_empty_response", elapsed, model.Usage{})
		return model.JobResult{}, malformed(providerOllama, errors.New("empty chat response"))
	}

	status := "success"
	if stream {
		status = "success_stream"
	}
	p.labels.observe(status, elapsed, usage)
	p.logger.Info("Ollama chat completed", zap.String("job_id", job.ID), zap.Duration("elapsed", elapsed), zap.Int("total_tokens", usage.TotalTokens))
	return model.JobResult{
		Text: text.String(),
		Metadata: model.JobMetadata{
			Prompt:  in.Resolved(),
			Model:   modelName(respModel, p.labels.model),
			Elapsed: elapsed,
			Usage:   usage,
		},
	}, nil
}

func ollamaStatusCode(err error) int {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
