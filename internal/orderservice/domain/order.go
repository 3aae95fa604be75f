package domain

import (
	"strings"
	"time"
)

// OrderStatus — статус заказа в системе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, ожидает результата оплаты.
	OrderStatusPending OrderStatus = "PENDING"

	// OrderStatusProcessing зарезервирован для будущего использования
	// (например, ручной модерации заказа); текущий поток его не достигает.
	OrderStatusProcessing OrderStatus = "PROCESSING"

	// OrderStatusPaid — оплата прошла успешно.
	OrderStatusPaid OrderStatus = "PAID"

	// OrderStatusFailed — заказ не выполнен (оплата отклонена).
	OrderStatusFailed OrderStatus = "FAILED"

	// OrderStatusCompleted — заказ выполнен (терминальный статус).
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// allowedTransitions описывает разрешённый граф переходов статуса заказа.
// Любой переход, отсутствующий в этой таблице, отклоняется как нелегальный.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:      {OrderStatusCompleted},
	OrderStatusFailed:    {},
	OrderStatusCompleted: {},
}

// CanTransitionTo проверяет, разрешён ли переход from → to.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Money — денежная сумма в минимальных единицах валюты (копейки/центы).
type Money struct {
	Amount int64
}

// Multiply умножает сумму на количество.
func (m Money) Multiply(quantity int) Money {
	return Money{Amount: m.Amount * int64(quantity)}
}

// Order — заказ в системе. Доменная сущность без зависимостей от
// инфраструктуры (GORM, HTTP).
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	Total           Money
	Status          OrderStatus
	DeliveryAddress string
	PaymentMethod   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate проверяет корректность полей заказа перед созданием.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.UserID) == "" {
		return ErrInvalidUserID
	}
	if strings.TrimSpace(o.DeliveryAddress) == "" {
		return ErrInvalidDeliveryAddress
	}
	if strings.TrimSpace(o.PaymentMethod) == "" {
		return ErrInvalidPaymentMethod
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrderItems
	}
	for i := range o.Items {
		if err := o.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CalculateTotal пересчитывает общую сумму заказа из позиций.
func (o *Order) CalculateTotal() {
	var total int64
	for i := range o.Items {
		total += o.Items[i].Subtotal().Amount
	}
	o.Total = Money{Amount: total}
}

// CanTransitionTo проверяет, можно ли перевести заказ в статус to.
func (o *Order) CanTransitionTo(to OrderStatus) bool {
	return CanTransitionTo(o.Status, to)
}

// TransitionTo переводит заказ в новый статус, если переход разрешён.
// Нелегальные переходы (например, PAID → FAILED) возвращают
// ErrIllegalTransition и не изменяют состояние заказа.
func (o *Order) TransitionTo(to OrderStatus) error {
	if !o.CanTransitionTo(to) {
		return ErrIllegalTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

// OrderItem — снимок позиции каталога на момент создания заказа.
// Неизменяема после вставки.
type OrderItem struct {
	OrderID    string
	PizzaID    string
	PizzaName  string
	PizzaPrice Money
	Quantity   int
}

// Validate проверяет корректность полей позиции заказа.
func (oi *OrderItem) Validate() error {
	if strings.TrimSpace(oi.PizzaID) == "" {
		return ErrInvalidPizzaID
	}
	if strings.TrimSpace(oi.PizzaName) == "" {
		return ErrInvalidPizzaName
	}
	if oi.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if oi.PizzaPrice.Amount <= 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Subtotal возвращает стоимость позиции (цена * количество).
func (oi *OrderItem) Subtotal() Money {
	return oi.PizzaPrice.Multiply(oi.Quantity)
}
