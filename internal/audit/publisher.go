package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"script-studio/internal/model"
)

const (
	// AuditExchange - fanout exchange для событий о новых записях журнала.
	AuditExchange     = "audit_entries"
	auditExchangeType = "fanout"
)

// Publisher рассылает записи журнала внешним подписчикам.
type Publisher interface {
	Publish(ctx context.Context, entry model.AuditLogEntry) error
}

// amqpChannel - часть *amqp091.Channel, которой пользуется издатель.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitPublisher публикует записи в fanout exchange RabbitMQ.
type RabbitPublisher struct {
	ch       amqpChannel
	exchange string
	logger   *zap.Logger
}

var _ Publisher = (*RabbitPublisher)(nil)

// NewRabbitPublisher открывает канал и объявляет exchange. Если exchange уже есть, ничего не меняется.
func NewRabbitPublisher(conn *amqp091.Connection, logger *zap.Logger) (*RabbitPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("Failed to open a channel for audit events", zap.Error(err))
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return newRabbitPublisher(ch, AuditExchange, logger)
}

func newRabbitPublisher(ch amqpChannel, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	err := ch.ExchangeDeclare(
		exchange,
		auditExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		logger.Error("Failed to declare audit exchange", zap.String("exchange", exchange), zap.Error(err))
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	logger.Info("Audit exchange declared", zap.String("exchange", exchange), zap.String("type", auditExchangeType))
	return &RabbitPublisher{ch: ch, exchange: exchange, logger: logger.Named("AuditPublisher")}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, entry model.AuditLogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		"", // routing key не нужен для fanout
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   entry.JobID,
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish audit entry", zap.Error(err), zap.String("job_id", entry.JobID))
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}
	p.logger.Debug("Audit entry published", zap.String("job_id", entry.JobID))
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// PublishingStore дублирует каждую сохранённую запись в Publisher.
// Ошибка публикации только логируется: источник истины - вложенное хранилище.
type PublishingStore struct {
	Store
	publisher Publisher
	logger    *zap.Logger
}

func NewPublishingStore(store Store, publisher Publisher, logger *zap.Logger) *PublishingStore {
	return &PublishingStore{Store: store, publisher: publisher, logger: logger.Named("PublishingStore")}
}

func (s *PublishingStore) Record(ctx context.Context, entry model.AuditLogEntry) error {
	if err := s.Store.Record(ctx, entry); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, entry); err != nil {
		s.logger.Warn("Audit entry stored but not published", zap.String("job_id", entry.JobID), zap.Error(err))
	}
	return nil
}
