package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmin/pizza-saga/internal/orderservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
)

// stubKafkaConsumer — управляемый KafkaConsumer: ConsumeWithRetry сразу
// вызывает переданный handler на заранее заданном сообщении.
type stubKafkaConsumer struct {
	msg *kafka.Message
}

func (s *stubKafkaConsumer) ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error {
	return handler(ctx, s.msg)
}

func (s *stubKafkaConsumer) Close() error { return nil }

// stubOrderService — управляемый service.OrderService, фиксирующий
// последний вызов UpdateStatus.
type stubOrderService struct {
	updateCalled bool
	lastOrderID  string
	lastStatus   domain.OrderStatus
	lastReason   string
	updateErr    error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, userID string, items []service.ItemRequest, deliveryAddress, paymentMethod string) (*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	return nil, 0, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error {
	s.updateCalled = true
	s.lastOrderID = orderID
	s.lastStatus = to
	s.lastReason = reason
	return s.updateErr
}

func paymentEnvelopeMessage(t *testing.T, eventType string, payload any) *kafka.Message {
	t.Helper()
	envelope, err := events.NewEnvelope(eventType, "payment-service", "test", payload)
	require.NoError(t, err)
	data, err := envelope.ToJSON()
	require.NoError(t, err)
	return &kafka.Message{Value: data, Topic: kafka.TopicPaymentEvents}
}

func TestPaymentEventsConsumer_OrderPaid_UpdatesStatus(t *testing.T) {
	msg := paymentEnvelopeMessage(t, events.TypeOrderPaid, events.OrderPaidPayload{OrderID: "order-1", Amount: 1000})
	kc := &stubKafkaConsumer{msg: msg}
	svc := &stubOrderService{}
	c := NewPaymentEventsConsumer(kc, svc)

	err := c.Run(context.Background())

	require.NoError(t, err)
	require.True(t, svc.updateCalled)
	assert.Equal(t, "order-1", svc.lastOrderID)
	assert.Equal(t, domain.OrderStatusPaid, svc.lastStatus)
}

func TestPaymentEventsConsumer_PaymentFailed_UpdatesStatus(t *testing.T) {
	msg := paymentEnvelopeMessage(t, events.TypePaymentFailed, events.PaymentFailedPayload{OrderID: "order-1", FailureReason: "карта отклонена"})
	kc := &stubKafkaConsumer{msg: msg}
	svc := &stubOrderService{}
	c := NewPaymentEventsConsumer(kc, svc)

	err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, svc.lastStatus)
	assert.Equal(t, "карта отклонена", svc.lastReason)
}

func TestPaymentEventsConsumer_UnknownEventType_Skipped(t *testing.T) {
	msg := paymentEnvelopeMessage(t, "SomethingElse", map[string]string{})
	kc := &stubKafkaConsumer{msg: msg}
	svc := &stubOrderService{}
	c := NewPaymentEventsConsumer(kc, svc)

	err := c.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, svc.updateCalled)
}

func TestPaymentEventsConsumer_MalformedEnvelope_NoError(t *testing.T) {
	kc := &stubKafkaConsumer{msg: &kafka.Message{Value: []byte("not json")}}
	svc := &stubOrderService{}
	c := NewPaymentEventsConsumer(kc, svc)

	err := c.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, svc.updateCalled)
}

func TestPaymentEventsConsumer_UpdateStatusError_Propagates(t *testing.T) {
	msg := paymentEnvelopeMessage(t, events.TypeOrderPaid, events.OrderPaidPayload{OrderID: "order-1"})
	kc := &stubKafkaConsumer{msg: msg}
	svc := &stubOrderService{updateErr: errors.New("конфликт статуса")}
	c := NewPaymentEventsConsumer(kc, svc)

	err := c.Run(context.Background())

	require.Error(t, err)
}
