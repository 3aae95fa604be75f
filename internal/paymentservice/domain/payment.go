package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PaymentStatus — статус жизненного цикла платежа.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// allowedTransitions описывает допустимые переходы статуса платежа.
// CANCELLED объявлен в составе модели, но текущий поток его не
// достигает — платежи либо завершаются успехом, либо отказом провайдера.
var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {},
	PaymentStatusFailed:     {},
	PaymentStatusCancelled:  {},
}

// CanTransitionTo проверяет допустимость перехода из from в to.
func CanTransitionTo(from, to PaymentStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AttemptStatus — статус одной попытки списания у провайдера.
type AttemptStatus string

const (
	AttemptStatusPending AttemptStatus = "PENDING"
	AttemptStatusSuccess AttemptStatus = "SUCCESS"
	AttemptStatusFailed  AttemptStatus = "FAILED"
)

// Payment — платёж по заказу. OrderID уникален: для одного заказа не
// может быть больше одного платежа, повторная попытка оплаты того же
// заказа идемпотентна и возвращает уже существующий платёж.
type Payment struct {
	ID             string
	OrderID        string
	Amount         Money
	PaymentMethod  string
	Status         PaymentStatus
	IdempotencyKey string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentAttempt — отдельная попытка обращения к платёжному провайдеру
// в рамках одного платежа. AttemptNumber плотно нумеруется с единицы.
type PaymentAttempt struct {
	ID            string
	PaymentID     string
	AttemptNumber int
	Status        AttemptStatus
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// Money — денежная сумма в минимальных единицах валюты (копейках/центах).
type Money struct {
	Amount int64
}

// NewPayment создаёт новый платёж в статусе PENDING с вычисленным
// ключом идемпотентности.
func NewPayment(id, orderID string, amount Money, paymentMethod string) (*Payment, error) {
	p := &Payment{
		ID:            id,
		OrderID:       orderID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		Status:        PaymentStatusPending,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.IdempotencyKey = ComputeIdempotencyKey(orderID, amount, paymentMethod)
	return p, nil
}

// ComputeIdempotencyKey вычисляет ключ идемпотентности как
// SHA-256(order_id:amount:payment_method).
func ComputeIdempotencyKey(orderID string, amount Money, paymentMethod string) string {
	raw := fmt.Sprintf("%s:%d:%s", orderID, amount.Amount, paymentMethod)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Validate проверяет инвариант платежа.
func (p *Payment) Validate() error {
	if p.OrderID == "" {
		return ErrInvalidAmount
	}
	if p.Amount.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.PaymentMethod == "" {
		return ErrInvalidAmount
	}
	return nil
}

// CanTransitionTo проверяет, допустим ли переход платежа в статус to.
func (p *Payment) CanTransitionTo(to PaymentStatus) bool {
	return CanTransitionTo(p.Status, to)
}

// TransitionTo переводит платёж в новый статус, если переход допустим.
func (p *Payment) TransitionTo(to PaymentStatus) error {
	if !p.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	p.Status = to
	return nil
}

// MarkProcessing переводит платёж в обработку перед обращением к провайдеру.
func (p *Payment) MarkProcessing() error {
	return p.TransitionTo(PaymentStatusProcessing)
}

// Complete завершает платёж успехом.
func (p *Payment) Complete() error {
	return p.TransitionTo(PaymentStatusCompleted)
}

// Fail завершает платёж отказом с указанием причины.
func (p *Payment) Fail(reason string) error {
	if err := p.TransitionTo(PaymentStatusFailed); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

// IsTerminal возвращает true, если платёж достиг финального статуса.
func (p *Payment) IsTerminal() bool {
	return len(allowedTransitions[p.Status]) == 0
}
