package audit

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"script-studio/internal/model"
)

var (
	auditWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_writes_total",
		Help: "Total number of audit entries written.",
	})
	auditWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Total number of audit entries that could not be written.",
	})
)

// Recorder пишет записи журнала, не пробрасывая ошибки наверх:
// сбой аудита не должен портить уже полученный результат генерации.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.Named("AuditRecorder")}
}

// Record сохраняет запись. Возвращает false, если запись потеряна.
func (r *Recorder) Record(ctx context.Context, entry model.AuditLogEntry) bool {
	// Отмена вызывающего не должна обрывать запись уже завершённого вызова.
	if err := r.store.Record(context.WithoutCancel(ctx), entry); err != nil {
		auditWriteFailuresTotal.Inc()
		r.logger.Error("Failed to write audit entry",
			zap.String("job_id", entry.JobID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return false
	}
	auditWritesTotal.Inc()
	return true
}
