// Package consumer связывает Kafka-топики событийного лога с бизнес-логикой
// Notification Service.
package consumer

import (
	"context"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// KafkaConsumer — интерфейс для чтения сообщений из Kafka.
type KafkaConsumer interface {
	ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error
	Close() error
}

// EventsConsumer слушает один топик событийного лога и рендерит
// уведомления по каждому сообщению. Notification Service запускает
// два экземпляра — по одному на order-events и payment-events — с
// общим consumer group `notification-service-group`, так как это
// единственный сервис, подписанный на оба лога одновременно.
type EventsConsumer struct {
	consumer KafkaConsumer
	svc      service.NotificationService
	topic    string
}

// NewEventsConsumer создаёт consumer для указанного топика.
func NewEventsConsumer(consumer KafkaConsumer, svc service.NotificationService, topic string) *EventsConsumer {
	return &EventsConsumer{consumer: consumer, svc: svc, topic: topic}
}

// Run запускает чтение топика. Блокирует до отмены контекста.
func (c *EventsConsumer) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Str("topic", c.topic).Msg("Запуск Events Consumer")

	return c.consumer.ConsumeWithRetry(ctx, c.handleMessage, 3)
}

func (c *EventsConsumer) handleMessage(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx)

	envelope, err := events.EnvelopeFromJSON(msg.Value)
	if err != nil {
		log.Error().Err(err).Str("payload", string(msg.Value)).Msg("Ошибка десериализации конверта события")
		return nil
	}

	if err := c.svc.HandleEvent(ctx, envelope.EventType, envelope.Payload); err != nil {
		log.Error().Err(err).Str("event_type", envelope.EventType).Msg("Ошибка обработки события уведомлением")
		return nil
	}
	return nil
}

// Close закрывает consumer.
func (c *EventsConsumer) Close() error {
	return c.consumer.Close()
}
