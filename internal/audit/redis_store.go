package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"script-studio/internal/model"
)

// DefaultRedisKey - отсортированное множество с записями журнала.
const DefaultRedisKey = "audit:entries"

// RedisStore хранит журнал в ZSET: score - время создания в миллисекундах,
// member - номер вставки из счётчика <key>:seq и JSON записи. При равном score
// ZREVRANGE сравнивает member, поэтому более поздняя вставка идёт первой.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	seqKey string
	logger *zap.Logger
}

const (
	seqWidth     = 20
	seqSeparator = '|'
)

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, key string, logger *zap.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, seqKey: key + ":seq", logger: logger.Named("AuditRedisStore")}
}

func (s *RedisStore) Record(ctx context.Context, entry model.AuditLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	seq, err := s.client.Incr(ctx, s.seqKey).Result()
	if err != nil {
		s.logger.Error("Failed to allocate audit sequence", zap.Error(err), zap.String("job_id", entry.JobID))
		return fmt.Errorf("failed to allocate audit sequence '%s': %w", entry.JobID, err)
	}
	z := redis.Z{Score: float64(entry.CreatedAt.UnixMilli()), Member: encodeMember(seq, data)}
	if err := s.client.ZAdd(ctx, s.key, z).Err(); err != nil {
		s.logger.Error("Failed to add audit entry", zap.Error(err), zap.String("job_id", entry.JobID))
		return fmt.Errorf("failed to add audit entry '%s': %w", entry.JobID, err)
	}
	return nil
}

func (s *RedisStore) FetchRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.rangeEntries(ctx, int64(limit-1))
}

func (s *RedisStore) LoadAll(ctx context.Context) ([]model.AuditLogEntry, error) {
	return s.rangeEntries(ctx, -1)
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		s.logger.Error("Failed to clear audit entries", zap.Error(err))
		return fmt.Errorf("failed to clear audit entries: %w", err)
	}
	s.logger.Info("Audit entries cleared", zap.String("key", s.key))
	return nil
}

func (s *RedisStore) rangeEntries(ctx context.Context, stop int64) ([]model.AuditLogEntry, error) {
	raw, err := s.client.ZRevRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		s.logger.Error("Failed to read audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	entries := make([]model.AuditLogEntry, 0, len(raw))
	for _, member := range raw {
		var e model.AuditLogEntry
		if err := json.Unmarshal(decodeMember(member), &e); err != nil {
			s.logger.Warn("Skipping undecodable audit entry", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	sortNewestFirst(entries)
	return entries, nil
}

func encodeMember(seq int64, data []byte) string {
	return fmt.Sprintf("%0*d%c%s", seqWidth, seq, seqSeparator, data)
}

func decodeMember(member string) []byte {
	if len(member) > seqWidth && member[seqWidth] == seqSeparator {
		return []byte(member[seqWidth+1:])
	}
	return []byte(member)
}
