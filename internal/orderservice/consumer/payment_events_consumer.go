// Package consumer связывает Kafka-топики событийного лога с бизнес-логикой
// Order Service.
package consumer

import (
	"context"
	"fmt"

	"github.com/vkuzmin/pizza-saga/internal/orderservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// KafkaConsumer — интерфейс для чтения сообщений из Kafka.
// Позволяет замокать kafka.Consumer в unit-тестах.
type KafkaConsumer interface {
	ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error
	Close() error
}

// PaymentEventsConsumer слушает топик payment-events и обновляет статус
// заказа по итогу оплаты: OrderPaid переводит заказ в PAID,
// PaymentFailed — в FAILED.
type PaymentEventsConsumer struct {
	consumer KafkaConsumer
	svc      service.OrderService
}

// NewPaymentEventsConsumer создаёт consumer событий payment-events.
func NewPaymentEventsConsumer(consumer KafkaConsumer, svc service.OrderService) *PaymentEventsConsumer {
	return &PaymentEventsConsumer{consumer: consumer, svc: svc}
}

// Run запускает чтение payment-events. Блокирует до отмены контекста.
func (c *PaymentEventsConsumer) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Str("topic", kafka.TopicPaymentEvents).Msg("Запуск Payment Events Consumer")

	return c.consumer.ConsumeWithRetry(ctx, c.handleMessage, 3)
}

// handleMessage обрабатывает одно сообщение из payment-events.
// Ошибки десериализации и неизвестные типы событий логируются, но не
// прерывают обработку остальных сообщений: логическая ошибка приводит
// к acknowledgement без паники.
func (c *PaymentEventsConsumer) handleMessage(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx)

	envelope, err := events.EnvelopeFromJSON(msg.Value)
	if err != nil {
		log.Error().Err(err).Str("payload", string(msg.Value)).Msg("Ошибка десериализации конверта события")
		return nil
	}

	switch envelope.EventType {
	case events.TypeOrderPaid:
		return c.handleOrderPaid(ctx, envelope)
	case events.TypePaymentFailed:
		return c.handlePaymentFailed(ctx, envelope)
	default:
		log.Debug().Str("event_type", envelope.EventType).Msg("Неизвестный тип события, пропущено")
		return nil
	}
}

func (c *PaymentEventsConsumer) handleOrderPaid(ctx context.Context, envelope *events.Envelope) error {
	log := logger.FromContext(ctx)

	var payload events.OrderPaidPayload
	if err := decodePayload(envelope, &payload); err != nil {
		log.Error().Err(err).Msg("Ошибка десериализации OrderPaid")
		return nil
	}

	if err := c.svc.UpdateStatus(ctx, payload.OrderID, domain.OrderStatusPaid, "Payment successful"); err != nil {
		return fmt.Errorf("ошибка обработки OrderPaid: %w", err)
	}
	return nil
}

func (c *PaymentEventsConsumer) handlePaymentFailed(ctx context.Context, envelope *events.Envelope) error {
	log := logger.FromContext(ctx)

	var payload events.PaymentFailedPayload
	if err := decodePayload(envelope, &payload); err != nil {
		log.Error().Err(err).Msg("Ошибка десериализации PaymentFailed")
		return nil
	}

	if err := c.svc.UpdateStatus(ctx, payload.OrderID, domain.OrderStatusFailed, payload.FailureReason); err != nil {
		return fmt.Errorf("ошибка обработки PaymentFailed: %w", err)
	}
	return nil
}

// Close закрывает consumer.
func (c *PaymentEventsConsumer) Close() error {
	return c.consumer.Close()
}
