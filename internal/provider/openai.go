package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"script-studio/internal/model"
)

const providerOpenAI = "openai"

// OpenAIProvider - адаптер OpenAI-совместимого ретранслятора. Канал изображений
// тоже идёт через chat completions: картинку извлекает интерпретатор из текста ответа.
type OpenAIProvider struct {
	client      *openaigo.Client
	labels      callLabels
	countTokens TokenCounter
	logger      *zap.Logger
}

var (
	_ TextProvider  = (*OpenAIProvider)(nil)
	_ ImageProvider = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider создаёт адаптер по снимку настроек ретранслятора.
func NewOpenAIProvider(relay model.RelaySnapshot, ch model.Channel, httpClient *http.Client, logger *zap.Logger) *OpenAIProvider {
	cfg := openaigo.DefaultConfig(relay.APIKey)
	cfg.BaseURL = APIBaseURL(relay.BaseURL)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{
		client:      openaigo.NewClientWithConfig(cfg),
		labels:      callLabels{route: model.RouteRelay, channel: ch, model: relay.Model},
		countTokens: CountTokens,
		logger: logger.Named("OpenAIProvider").With(
			zap.String("base_url", cfg.BaseURL),
			zap.String("model", relay.Model),
		),
	}
}

// APIBaseURL приводит адрес ретранслятора к виду {base}/v1.
func APIBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func (p *OpenAIProvider) messages(in Input) []openaigo.ChatCompletionMessage {
	msgs := make([]openaigo.ChatCompletionMessage, 0, 2)
	if in.System != "" {
		msgs = append(msgs, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleSystem, Content: in.System})
	}
	msgs = append(msgs, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: in.User})
	return msgs
}

func (p *OpenAIProvider) Submit(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	in := ComposeInput(job.Fields)
	start := time.Now()
	p.logger.Debug("Sending chat completion", zap.String("job_id", job.ID), zap.Int("input_len", len(in.User)))

	resp, err := p.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:    p.labels.model,
		Messages: p.messages(in),
	})
	elapsed := time.Since(start)
	if err != nil {
		p.labels.observe("error", elapsed, model.Usage{})
		p.logger.Warn("Chat completion failed", zap.String("job_id", job.ID), zap.Duration("elapsed", elapsed), zap.Error(err))
		return model.JobResult{}, providerError(ctx, providerOpenAI, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		p.labels.observe("error_empty_response", elapsed, model.Usage{})
		return model.JobResult{}, malformed(providerOpenAI, errors.New("empty completion"))
	}

	usage := model.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	text := resp.Choices[0].Message.Content
	if usage.TotalTokens == 0 {
		usage = estimateUsage(p.countTokens, p.labels.model, in.Resolved(), text)
	}
	p.labels.observe("success", elapsed, usage)
	p.logger.Info("Chat completion received",
		zap.String("job_id", job.ID),
		zap.Duration("elapsed", elapsed),
		zap.Int("total_tokens", usage.TotalTokens),
	)
	return model.JobResult{
		Text: text,
		Metadata: model.JobMetadata{
			Prompt:  in.Resolved(),
			Model:   modelName(resp.Model, p.labels.model),
			Elapsed: elapsed,
			Usage:   usage,
		},
	}, nil
}

func (p *OpenAIProvider) SubmitStream(ctx context.Context, job model.JobRequest, onDelta func(string) error) (model.JobResult, error) {
	in := ComposeInput(job.Fields)
	start := time.Now()

	stream, err := p.client.CreateChatCompletionStream(ctx, openaigo.ChatCompletionRequest{
		Model:         p.labels.model,
		Messages:      p.messages(in),
		Stream:        true,
		StreamOptions: &openaigo.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		p.labels.observe("error_stream_init", time.Since(start), model.Usage{})
		p.logger.Warn("Failed to open completion stream", zap.String("job_id", job.ID), zap.Error(err))
		return model.JobResult{}, providerError(ctx, providerOpenAI, err)
	}
	defer stream.Close()

	var (
		text      strings.Builder
		usage     model.Usage
		respModel string
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.labels.observe("error_stream_read", time.Since(start), model.Usage{})
			return model.JobResult{}, providerError(ctx, providerOpenAI, err)
		}
		if resp.Model != "" {
			respModel = resp.Model
		}
		// Usage приходит отдельным последним чанком и только если сервер поддерживает include_usage.
		if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
			usage = model.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		if err := onDelta(delta); err != nil {
			p.labels.observe("error_stream_consumer", time.Since(start), model.Usage{})
			return model.JobResult{}, providerError(ctx, providerOpenAI, &consumerError{err: err})
		}
	}

	elapsed := time.Since(start)
	if text.Len() == 0 {
		p.labels.observe("error_empty_response", elapsed, model.Usage{})
		return model.JobResult{}, malformed(providerOpenAI, errors.New("empty completion stream"))
	}
	if usage.TotalTokens == 0 {
		p.logger.Debug("Usage block not received in stream, estimating", zap.String("job_id", job.ID))
		usage = estimateUsage(p.countTokens, p.labels.model, in.Resolved(), text.String())
	}
	p.labels.observe("success_stream", elapsed, usage)
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

func (p *OpenAIProvider) Generate(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	return p.Submit(ctx, job)
}

func modelName(reported, configured string) string {
	if reported != "" {
		return reported
	}
	return configured
}
