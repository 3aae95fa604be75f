// Package consumer связывает Kafka-топики событийного лога с бизнес-логикой
// Payment Service.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// KafkaConsumer — интерфейс для чтения сообщений из Kafka.
type KafkaConsumer interface {
	ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error
	Close() error
}

// OrderEventsConsumer слушает топик order-events и запускает обработку
// платежа по каждому OrderCreated.
type OrderEventsConsumer struct {
	consumer KafkaConsumer
	svc      service.PaymentService
}

// NewOrderEventsConsumer создаёт consumer событий order-events.
func NewOrderEventsConsumer(consumer KafkaConsumer, svc service.PaymentService) *OrderEventsConsumer {
	return &OrderEventsConsumer{consumer: consumer, svc: svc}
}

// Run запускает чтение order-events. Блокирует до отмены контекста.
func (c *OrderEventsConsumer) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Str("topic", kafka.TopicOrderEvents).Msg("Запуск Order Events Consumer")

	return c.consumer.ConsumeWithRetry(ctx, c.handleMessage, 3)
}

func (c *OrderEventsConsumer) handleMessage(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx)

	envelope, err := events.EnvelopeFromJSON(msg.Value)
	if err != nil {
		log.Error().Err(err).Str("payload", string(msg.Value)).Msg("Ошибка десериализации конверта события")
		return nil
	}

	if envelope.EventType != events.TypeOrderCreated {
		log.Debug().Str("event_type", envelope.EventType).Msg("Событие не требует обработки платежом, пропущено")
		return nil
	}

	var payload events.OrderCreatedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		log.Error().Err(err).Msg("Ошибка десериализации OrderCreated")
		return nil
	}

	_, err = c.svc.ProcessPayment(ctx, service.ProcessPaymentRequest{
		OrderID:       payload.OrderID,
		Amount:        payload.TotalAmount,
		PaymentMethod: payload.PaymentMethod,
	})
	if err != nil {
		return fmt.Errorf("ошибка обработки платежа по заказу %s: %w", payload.OrderID, err)
	}
	return nil
}

// Close закрывает consumer.
func (c *OrderEventsConsumer) Close() error {
	return c.consumer.Close()
}
