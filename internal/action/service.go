// Package action - слой действий: собирает поля, выбирает маршрут, вызывает адаптер,
// разбирает ответ и пишет ровно одну запись аудита на каждый успешный вызов.
package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"script-studio/internal/audit"
	"script-studio/internal/fields"
	"script-studio/internal/interpreter"
	"script-studio/internal/model"
	"script-studio/internal/provider"
	"script-studio/internal/secrets"
	"script-studio/internal/stream"
)

// RouteResolver выбирает маршрут для канала. Каждый вызов получает свой снимок настроек.
type RouteResolver interface {
	Resolve(ch model.Channel) model.RouteResolution
}

// ProviderFactory создаёт адаптеры под маршрут.
type ProviderFactory interface {
	Text(ctx context.Context, res model.RouteResolution, officialKey string) (provider.TextProvider, error)
	Image(ctx context.Context, res model.RouteResolution, officialKey string) (provider.ImageProvider, error)
}

// PromptSource отдаёт системный промт модуля; пустая строка - промта нет.
type PromptSource interface {
	GetPrompt(module string) string
}

// AuditRecorder пишет запись журнала и не возвращает ошибок.
type AuditRecorder interface {
	Record(ctx context.Context, entry model.AuditLogEntry) bool
}

// Deps - зависимости Service.
type Deps struct {
	Routes    RouteResolver
	Providers ProviderFactory
	Prompts   PromptSource
	Secrets   secrets.Store
	Audit     AuditRecorder
}

type Service struct {
	routes    RouteResolver
	providers ProviderFactory
	prompts   PromptSource
	secrets   secrets.Store
	audit     AuditRecorder
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewService(deps Deps, logger *zap.Logger) *Service {
	return &Service{
		routes:    deps.Routes,
		providers: deps.Providers,
		prompts:   deps.Prompts,
		secrets:   deps.Secrets,
		audit:     deps.Audit,
		logger:    logger.Named("ActionService"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// call - подготовленный вызов: задание, маршрут и ключ официального маршрута.
type call struct {
	req   model.ActionRequest
	job   model.JobRequest
	route model.RouteResolution
	key   string
	start time.Time
}

func (c *call) imageChannel() bool {
	return c.req.Channel().RouteChannel() == model.ChannelImage
}

// Perform выполняет действие целиком. Ошибка конфигурации возвращается до сетевых вызовов.
func (s *Service) Perform(ctx context.Context, req model.ActionRequest) (model.ActionResult, error) {
	c, err := s.prepare(ctx, req)
	if err != nil {
		return model.ActionResult{}, err
	}
	log := s.callLogger(c)

	var jr model.JobResult
	if c.imageChannel() {
		var p provider.ImageProvider
		if p, err = s.providers.Image(ctx, c.route, c.key); err == nil {
			jr, err = p.Generate(ctx, c.job)
		}
	} else {
		var p provider.TextProvider
		if p, err = s.providers.Text(ctx, c.route, c.key); err == nil {
			jr, err = p.Submit(ctx, c.job)
		}
	}
	if err != nil {
		s.fail(log, c, err)
		return model.ActionResult{}, err
	}

	result := s.interpret(c, jr)
	s.complete(ctx, log, c, result)
	return result, nil
}

// Stream запускает потоковое действие. Текстовый канал отдаёт фрагменты по мере генерации;
// канал изображений завершается одним completed. Аудит пишется только при completed.
func (s *Service) Stream(ctx context.Context, req model.ActionRequest) (*stream.Stream, error) {
	c, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	log := s.callLogger(c)

	var producer stream.Producer
	if c.imageChannel() {
		p, err := s.providers.Image(ctx, c.route, c.key)
		if err != nil {
			s.fail(log, c, err)
			return nil, err
		}
		producer = func(ctx context.Context, emit stream.Emit) (model.ActionResult, error) {
			jr, err := p.Generate(ctx, c.job)
			if err != nil {
				return model.ActionResult{}, err
			}
			return s.interpret(c, jr), nil
		}
	} else {
		p, err := s.providers.Text(ctx, c.route, c.key)
		if err != nil {
			s.fail(log, c, err)
			return nil, err
		}
		producer = func(ctx context.Context, emit stream.Emit) (model.ActionResult, error) {
			jr, err := p.SubmitStream(ctx, c.job, emit)
			if err != nil {
				return model.ActionResult{}, err
			}
			return s.interpret(c, jr), nil
		}
	}

	wrapped := func(ctx context.Context, emit stream.Emit) (model.ActionResult, error) {
		res, err := producer(ctx, emit)
		if err != nil {
			s.fail(log, c, err)
		}
		return res, err
	}
	onComplete := func(ctx context.Context, result model.ActionResult) {
		s.complete(ctx, log, c, result)
	}
	log.Debug("Stream started")
	return stream.Start(ctx, wrapped, onComplete), nil
}

// ParseStoryboard разбирает раскадровку из текста результата, нумеруя кадры с next.
func (s *Service) ParseStoryboard(result model.ActionResult, next int) []model.StoryboardEntry {
	return interpreter.ParseEntries(result.Text, next)
}

func (s *Service) prepare(ctx context.Context, req model.ActionRequest) (*call, error) {
	built := fields.Build(fields.Input{
		Prompt:       req.Prompt(),
		Context:      req.Context(),
		Module:       req.Module(),
		SystemPrompt: s.systemPrompt(req.Module()),
		StatusLabel:  req.Origin(),
	})
	c := &call{
		req: req,
		job: model.JobRequest{
			ID:        s.newID(),
			Action:    string(req.Kind()),
			Fields:    fields.Merge(built, req.Fields()),
			Channel:   req.Channel(),
			AssetRefs: req.AssetRefs(),
		},
		route: s.routes.Resolve(req.Channel()),
		start: s.now(),
	}

	if c.route.Route == model.RouteOfficial {
		key, err := s.officialKey(ctx)
		if err != nil {
			actionsTotal.WithLabelValues(string(req.Kind()), string(c.route.Route), "not_configured").Inc()
			s.logger.Warn("Official route is not configured", zap.String("kind", string(req.Kind())), zap.Error(err))
			return nil, err
		}
		c.key = key
	}
	return c, nil
}

func (s *Service) systemPrompt(module string) string {
	if s.prompts == nil || strings.TrimSpace(module) == "" {
		return ""
	}
	return s.prompts.GetPrompt(module)
}

func (s *Service) officialKey(ctx context.Context) (string, error) {
	key, err := s.secrets.FetchSecret(ctx)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", fmt.Errorf("%w: official api key is not set", model.ErrNotConfigured)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read official api key: %v", model.ErrNotConfigured, err)
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: official api key is empty", model.ErrNotConfigured)
	}
	return key, nil
}

// interpret превращает ответ адаптера в результат действия: извлекает медиа из текста.
func (s *Service) interpret(c *call, jr model.JobResult) model.ActionResult {
	explicit := interpreter.Media{VideoURL: jr.VideoURL}
	if jr.Image != nil {
		explicit.ImageURL = jr.Image.URL
		explicit.ImageData = jr.Image.Data
		explicit.ImageMIME = jr.Image.MIMEType
	}
	media := interpreter.ExtractMedia(jr.Text, explicit)

	result := model.ActionResult{
		JobID:    c.job.ID,
		Text:     jr.Text,
		VideoURL: media.VideoURL,
		Metadata: jr.Metadata,
		Route:    c.route.Route,
	}
	if media.HasImage() {
		result.Image = &model.DecodedImage{
			URL:      media.ImageURL,
			MIMEType: media.ImageMIME,
			Base64:   media.ImageData,
			Data:     interpreter.DecodeImage(media),
		}
	}
	return result
}

func (s *Service) complete(ctx context.Context, log *zap.Logger, c *call, result model.ActionResult) {
	elapsed := s.now().Sub(c.start)
	actionsTotal.WithLabelValues(string(c.req.Kind()), string(c.route.Route), "success").Inc()
	actionDuration.WithLabelValues(string(c.req.Kind()), string(c.route.Route)).Observe(elapsed.Seconds())

	entry := audit.NewEntry(audit.EntryParams{
		Job:    c.job,
		Result: result,
		Metadata: map[string]string{
			audit.MetaSource:  c.req.Origin(),
			audit.MetaContext: contextKind(c.req.Context()),
			audit.MetaChannel: string(c.req.Channel()),
			audit.MetaModule:  c.req.Module(),
			audit.MetaElapsed: strconv.FormatInt(elapsed.Milliseconds(), 10),
		},
		Now: s.now(),
	})
	if !s.audit.Record(ctx, entry) {
		log.Warn("Action completed without audit entry")
	}
	log.Info("Action completed",
		zap.String("model", result.Metadata.Model),
		zap.Duration("elapsed", elapsed),
		zap.Bool("has_image", result.Image != nil),
		zap.Bool("has_video", result.VideoURL != ""),
	)
}

func (s *Service) fail(log *zap.Logger, c *call, err error) {
	status := "error"
	var pe *model.ProviderError
	switch {
	case errors.Is(err, context.Canceled):
		status = "cancelled"
	case errors.Is(err, model.ErrNotConfigured):
		status = "not_configured"
	case errors.As(err, &pe):
		status = string(pe.Kind)
	}
	actionsTotal.WithLabelValues(string(c.req.Kind()), string(c.route.Route), status).Inc()
	log.Error("Action failed", zap.String("status", status), zap.Error(err))
}

func contextKind(v model.ContextVariant) string {
	if v == nil {
		return string(model.ContextGeneral)
	}
	return string(v.Kind())
}

func (s *Service) callLogger(c *call) *zap.Logger {
	return s.logger.With(
		zap.String("job_id", c.job.ID),
		zap.String("kind", string(c.req.Kind())),
		zap.String("channel", string(c.req.Channel())),
		zap.String("route", string(c.route.Route)),
	)
}
