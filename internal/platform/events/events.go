// Package events определяет конверт события и типизированные полезные
// нагрузки для событийного лога саги (взамен command/reply оркестрации:
// сервисы реагируют на доменные события независимо, без центрального
// координатора).
package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Типы событий.
const (
	TypeOrderCreated       = "OrderCreated"
	TypeOrderStatusChanged = "OrderStatusChanged"
	TypeOrderPaid          = "OrderPaid"
	TypePaymentFailed      = "PaymentFailed"
)

// TopicForEventType возвращает топик, в который должно быть
// опубликовано событие данного типа: все Order*-события идут в
// order-events, платёжные — в payment-events, неизвестные типы по
// умолчанию уходят в order-events и отмечаются как unmapped.
func TopicForEventType(eventType string) (topic string, mapped bool) {
	switch eventType {
	case TypeOrderCreated, TypeOrderStatusChanged:
		return "order-events", true
	case TypeOrderPaid, TypePaymentFailed:
		return "payment-events", true
	default:
		if strings.HasPrefix(eventType, "Order") {
			return "order-events", true
		}
		return "order-events", false
	}
}

// Envelope — конверт события, единый для всех топиков. Канонизирует
// именование полей (snake_case) на границе лога; консьюмеры при этом
// обязаны уметь прочитать обе манеры написания order_id (см. OrderIDOf).
type Envelope struct {
	EventType      string          `json:"event_type"`
	EventID        string          `json:"event_id"`
	ServiceName    string          `json:"service_name"`
	ServiceVersion string          `json:"service_version"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload"`
}

// NewEnvelope строит конверт с сгенерированным event_id и текущей
// временной меткой, сериализуя payload в JSON.
func NewEnvelope(eventType, serviceName, serviceVersion string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		EventType:      eventType,
		EventID:        uuid.NewString(),
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Timestamp:      time.Now().UTC(),
		Payload:        raw,
	}, nil
}

// ToJSON сериализует конверт.
func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EnvelopeFromJSON десериализует конверт.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// OrderItemRef — ссылка на позицию заказа внутри события OrderCreated.
type OrderItemRef struct {
	PizzaID  string `json:"pizzaId"`
	Quantity int    `json:"quantity"`
}

// OrderCreatedPayload — полезная нагрузка события OrderCreated.
// Поля сохранены в camelCase (унаследовано от внешнего API создания
// заказа), в отличие от payment-событий ниже, использующих snake_case.
type OrderCreatedPayload struct {
	OrderID         string         `json:"orderId"`
	UserID          string         `json:"userId"`
	TotalAmount     int64          `json:"totalAmount"`
	ItemsCount      int            `json:"itemsCount"`
	Items           []OrderItemRef `json:"items"`
	PaymentMethod   string         `json:"paymentMethod"`
	DeliveryAddress string         `json:"deliveryAddress"`
}

// OrderStatusChangedPayload — полезная нагрузка события OrderStatusChanged.
type OrderStatusChangedPayload struct {
	OrderID   string `json:"orderId"`
	NewStatus string `json:"newStatus"`
	Reason    string `json:"reason"`
}

// OrderPaidPayload — полезная нагрузка события OrderPaid.
type OrderPaidPayload struct {
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

// PaymentFailedPayload — полезная нагрузка события PaymentFailed.
type PaymentFailedPayload struct {
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	FailureReason string `json:"failure_reason"`
}

// rawOrderID используется только для извлечения order_id из
// произвольной полезной нагрузки, принимая обе манеры написания.
type rawOrderID struct {
	OrderID  string `json:"order_id"`
	OrderID2 string `json:"orderId"`
}

// OrderIDOf извлекает order_id из полезной нагрузки payload, принимая
// как camelCase (`orderId`), так и snake_case (`order_id`) написание,
// независимо от того, как конкретное событие было сериализовано.
func OrderIDOf(payload json.RawMessage) string {
	var r rawOrderID
	if err := json.Unmarshal(payload, &r); err != nil {
		return ""
	}
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.OrderID2
}
