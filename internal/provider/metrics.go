package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"script-studio/internal/model"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of model provider requests.",
		},
		[]string{"route", "channel", "model", "status"},
	)
	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Histogram of model provider request durations.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"route", "channel", "model"},
	)
	providerPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"route", "model"},
	)
	providerCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"route", "model"},
	)
)

// callLabels - метки одного адаптера.
type callLabels struct {
	route   model.Route
	channel model.Channel
	model   string
}

func (l callLabels) observe(status string, elapsed time.Duration, usage model.Usage) {
	route := string(l.route)
	providerRequestsTotal.WithLabelValues(route, string(l.channel), l.model, status).Inc()
	if status != "success" && status != "success_stream" {
		return
	}
	providerRequestDuration.WithLabelValues(route, string(l.channel), l.model).Observe(elapsed.Seconds())
	if usage.PromptTokens > 0 {
		providerPromptTokens.WithLabelValues(route, l.model).Observe(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		providerCompletionTokens.WithLabelValues(route, l.model).Observe(float64(usage.CompletionTokens))
	}
}
