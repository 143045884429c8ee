// Package audit ведёт журнал успешно завершённых вызовов моделей.
// Журнал только дополняется; разрешена лишь полная очистка. Чтение всегда от новых к старым.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"script-studio/internal/model"
)

// ErrInvalidLimit - limit должен быть положительным.
var ErrInvalidLimit = errors.New("limit must be positive")

// Store - хранилище журнала аудита.
type Store interface {
	Record(ctx context.Context, entry model.AuditLogEntry) error
	FetchRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error)
	LoadAll(ctx context.Context) ([]model.AuditLogEntry, error)
	ClearAll(ctx context.Context) error
}

// Ключи метаданных записи.
const (
	MetaSource  = "source"
	MetaContext = "context"
	MetaChannel = "channel"
	MetaModule  = "module"
	MetaElapsed = "elapsedMs"
)

// HashPrompt - SHA-256 промта в hex. Сам промт в журнал не попадает.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// EntryParams - данные для NewEntry.
type EntryParams struct {
	Job      model.JobRequest
	Result   model.ActionResult
	Metadata map[string]string
	Now      time.Time
}

// NewEntry собирает запись журнала по выполненному вызову.
// Хэшируется полностью собранный вход провайдера.
func NewEntry(p EntryParams) model.AuditLogEntry {
	refs := make([]string, len(p.Job.AssetRefs))
	copy(refs, p.Job.AssetRefs)
	meta := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		if v != "" {
			meta[k] = v
		}
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	return model.AuditLogEntry{
		JobID:        p.Job.ID,
		Action:       p.Job.Action,
		PromptHash:   HashPrompt(p.Result.Metadata.Prompt),
		AssetRefs:    refs,
		ModelVersion: p.Result.Metadata.Model,
		Route:        string(p.Result.Route),
		Metadata:     meta,
		CreatedAt:    now.UTC(),
	}
}

func sortNewestFirst(entries []model.AuditLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func clampLimit(entries []model.AuditLogEntry, limit int) []model.AuditLogEntry {
	if limit < len(entries) {
		return entries[:limit]
	}
	return entries
}
