// Package kafka предоставляет обёртки над kafka-go для событийного лога саги.
// Включает Producer и Consumer с поддержкой headers, трассировки и graceful shutdown.
package kafka

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// Топики событийного лога.
const (
	// TopicOrderEvents — события жизненного цикла заказа (OrderCreated, OrderStatusChanged).
	TopicOrderEvents = "order-events"

	// TopicPaymentEvents — события результата платежа (OrderPaid, PaymentFailed).
	TopicPaymentEvents = "payment-events"

	// TopicDLQ — Dead Letter Queue для необработанных сообщений.
	TopicDLQ = "dlq.events"
)

// Consumer group'ы, используемые сервисами.
const (
	GroupOrderService        = "order-service-group"
	GroupPaymentService      = "payment-service-group"
	GroupNotificationService = "notification-service-group"
)

// Ключи для headers сообщений Kafka.
const (
	HeaderTraceID       = "trace_id"
	HeaderCorrelationID = "correlation_id"
	HeaderTimestamp     = "timestamp"
)

// Config содержит настройки для подключения к Kafka.
type Config struct {
	Brokers       []string
	ConsumerGroup string
}

// Message представляет сообщение Kafka с метаданными.
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Headers   map[string]string
	Time      time.Time
}

func fromKafkaMessage(m kafka.Message) *Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}

	return &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Headers:   headers,
		Time:      m.Time,
	}
}

func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// TraceIDFromContext извлекает trace_id из context.
func TraceIDFromContext(ctx context.Context) string {
	return logger.TraceIDFromContext(ctx)
}

// CorrelationIDFromContext извлекает correlation_id из context.
func CorrelationIDFromContext(ctx context.Context) string {
	return logger.CorrelationIDFromContext(ctx)
}

// ContextWithTraceID добавляет trace_id в context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return logger.WithTraceID(ctx, traceID)
}

// ContextWithCorrelationID добавляет correlation_id в context.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return logger.WithCorrelationID(ctx, correlationID)
}

// TopicConfig — конфигурация топика для создания.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// EnsureTopics создаёт топики если они не существуют.
// Безопасно вызывать при каждом старте — существующие топики не пересоздаются.
func EnsureTopics(brokers []string, topics []TopicConfig) error {
	if len(brokers) == 0 {
		return nil
	}

	log := logger.Logger()

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafka.Dial("tcp", controllerAddr)
	if err != nil {
		return err
	}
	defer func() { _ = controllerConn.Close() }()

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, t := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.NumPartitions,
			ReplicationFactor: t.ReplicationFactor,
		}
	}

	if err := controllerConn.CreateTopics(topicConfigs...); err != nil {
		log.Warn().Err(err).Msg("Ошибка при создании топиков (возможно уже существуют)")
	}

	for _, t := range topics {
		log.Info().
			Str("topic", t.Name).
			Int("partitions", t.NumPartitions).
			Msg("Топик проверен/создан")
	}

	return nil
}

// DefaultEventTopics возвращает конфигурацию топиков событийного лога саги.
func DefaultEventTopics() []TopicConfig {
	return []TopicConfig{
		{Name: TopicOrderEvents, NumPartitions: 3, ReplicationFactor: 1},
		{Name: TopicPaymentEvents, NumPartitions: 3, ReplicationFactor: 1},
		{Name: TopicDLQ, NumPartitions: 1, ReplicationFactor: 1},
	}
}
