package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"script-studio/internal/model"
)

const providerGemini = "gemini"

// GeminiConfig - параметры официального маршрута.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// GeminiProvider - официальный адаптер Google Gemini. Ключ передаётся на каждый вызов,
// поэтому адаптер создаётся заново для каждого действия.
type GeminiProvider struct {
	cli    *genai.Client
	labels callLabels
	logger *zap.Logger
}

var (
	_ TextProvider  = (*GeminiProvider)(nil)
	_ ImageProvider = (*GeminiProvider)(nil)
)

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, ch model.Channel, logger *zap.Logger) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: official api key is empty", model.ErrNotConfigured)
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{
		cli:    cli,
		labels: callLabels{route: model.RouteOfficial, channel: ch, model: cfg.Model},
		logger: logger.Named("GeminiProvider").With(zap.String("model", cfg.Model)),
	}, nil
}

func (p *GeminiProvider) contents(in Input) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: in.User}},
	}}
	cfg := &genai.GenerateContentConfig{}
	if in.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: in.System}}}
	}
	return contents, cfg
}

func (p *GeminiProvider) Submit(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	in := ComposeInput(job.Fields)
	contents, cfg := p.contents(in)
	return p.generate(ctx, job, in, contents, cfg)
}

// Generate просит модель вернуть изображение; первая встроенная картинка становится ImageRef.
func (p *GeminiProvider) Generate(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	in := ComposeInput(job.Fields)
	contents, cfg := p.contents(in)
	cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	return p.generate(ctx, job, in, contents, cfg)
}

func (p *GeminiProvider) generate(ctx context.Context, job model.JobRequest, in Input, contents []*genai.Content, cfg *genai.GenerateContentConfig) (model.JobResult, error) {
	start := time.Now()
	resp, err := p.cli.Models.GenerateContent(ctx, p.labels.model, contents, cfg)
	elapsed := time.Since(start)
	if err != nil {
		p.labels.observe("error", elapsed, model.Usage{})
		p.logger.Warn("GenerateContent failed", zap.String("job_id", job.ID), zap.Duration("elapsed", elapsed), zap.Error(err))
		return model.JobResult{}, providerError(ctx, providerGemini, err)
	}

	text, image := readParts(resp)
	if text == "" && image == nil {
		p.labels.observe("error_empty_response", elapsed, model.Usage{})
		return model.JobResult{}, malformed(providerGemini, errors.New("response has no text or image parts"))
	}
	usage := geminiUsage(resp)
	p.labels.observe("success", elapsed, usage)
	p.logger.Info("GenerateContent completed",
		zap.String("job_id", job.ID),
		zap.Duration("elapsed", elapsed),
		zap.Bool("has_image", image != nil),
		zap.Int("total_tokens", usage.TotalTokens),
	)
	return model.JobResult{
		Text:  text,
		Image: image,
		Metadata: model.JobMetadata{
			Prompt:  in.Resolved(),
			Model:   modelName(resp.ModelVersion, p.labels.model),
			Elapsed: elapsed,
			Usage:   usage,
		},
	}, nil
}

func (p *GeminiProvider) SubmitStream(ctx context.Context, job model.JobRequest, onDelta func(string) error) (model.JobResult, error) {
	in := ComposeInput(job.Fields)
	contents, cfg := p.contents(in)
	start := time.Now()

	var (
		text      strings.Builder
		usage     model.Usage
		respModel string
	)
	for resp, err := range p.cli.Models.GenerateContentStream(ctx, p.labels.model, contents, cfg) {
		if err != nil {
			p.labels.observe("error_stream_read", time.Since(start), model.Usage{})
			return model.JobResult{}, providerError(ctx, providerGemini, err)
		}
		if resp.ModelVersion != "" {
			respModel = resp.ModelVersion
		}
		if u := geminiUsage(resp); u.TotalTokens > 0 {
			usage = u
		}
		delta, _ := readParts(resp)
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		if err := onDelta(delta); err != nil {
			p.labels.observe("error_stream_consumer", time.Since(start), model.Usage{})
			return model.JobResult{}, providerError(ctx, providerGemini, &consumerError{err: err})
		}
	}

	elapsed := time.Since(start)
	if text.Len() == 0 {
		p.labels.observe("error_empty_response", elapsed, model.Usage{})
		return model.JobResult{}, malformed(providerGemini, errors.New("empty content stream"))
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

// readParts собирает текст первого кандидата и первую встроенную картинку. Мысли модели пропускаются.
func readParts(resp *genai.GenerateContentResponse) (string, *model.ImageRef) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var (
		text  strings.Builder
		image *model.ImageRef
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if image == nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			image = &model.ImageRef{
				Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
				MIMEType: part.InlineData.MIMEType,
			}
		}
	}
	return text.String(), image
}

func geminiUsage(resp *genai.GenerateContentResponse) model.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return model.Usage{}
	}
	u := resp.UsageMetadata
	return model.Usage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

func geminiStatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
