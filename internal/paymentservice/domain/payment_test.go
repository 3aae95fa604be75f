package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPayment(t *testing.T) {
	t.Run("валидные данные вычисляют ключ идемпотентности", func(t *testing.T) {
		p, err := NewPayment("pay-1", "order-1", Money{Amount: 1500}, "card")
		assert.NoError(t, err)
		assert.Equal(t, PaymentStatusPending, p.Status)
		assert.NotEmpty(t, p.IdempotencyKey)
		assert.Equal(t, ComputeIdempotencyKey("order-1", Money{Amount: 1500}, "card"), p.IdempotencyKey)
	})

	t.Run("нулевая сумма отклоняется", func(t *testing.T) {
		_, err := NewPayment("pay-1", "order-1", Money{Amount: 0}, "card")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("пустой order id отклоняется", func(t *testing.T) {
		_, err := NewPayment("pay-1", "", Money{Amount: 1000}, "card")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestComputeIdempotencyKey_Stable(t *testing.T) {
	k1 := ComputeIdempotencyKey("order-1", Money{Amount: 1000}, "card")
	k2 := ComputeIdempotencyKey("order-1", Money{Amount: 1000}, "card")
	k3 := ComputeIdempotencyKey("order-1", Money{Amount: 1001}, "card")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     PaymentStatus
		to       PaymentStatus
		expected bool
	}{
		{"PENDING -> PROCESSING разрешён", PaymentStatusPending, PaymentStatusProcessing, true},
		{"PENDING -> CANCELLED разрешён", PaymentStatusPending, PaymentStatusCancelled, true},
		{"PENDING -> COMPLETED запрещён", PaymentStatusPending, PaymentStatusCompleted, false},
		{"PROCESSING -> COMPLETED разрешён", PaymentStatusProcessing, PaymentStatusCompleted, true},
		{"PROCESSING -> FAILED разрешён", PaymentStatusProcessing, PaymentStatusFailed, true},
		{"PROCESSING -> CANCELLED запрещён", PaymentStatusProcessing, PaymentStatusCancelled, false},
		{"COMPLETED терминален", PaymentStatusCompleted, PaymentStatusProcessing, false},
		{"FAILED терминален", PaymentStatusFailed, PaymentStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestPayment_MarkProcessing(t *testing.T) {
	p := &Payment{Status: PaymentStatusPending}
	assert.NoError(t, p.MarkProcessing())
	assert.Equal(t, PaymentStatusProcessing, p.Status)
}

func TestPayment_Complete(t *testing.T) {
	p := &Payment{Status: PaymentStatusProcessing}
	assert.NoError(t, p.Complete())
	assert.Equal(t, PaymentStatusCompleted, p.Status)
}

func TestPayment_Fail(t *testing.T) {
	p := &Payment{Status: PaymentStatusProcessing}
	assert.NoError(t, p.Fail("провайдер отклонил списание"))
	assert.Equal(t, PaymentStatusFailed, p.Status)
	assert.Equal(t, "провайдер отклонил списание", p.FailureReason)
}

func TestPayment_Fail_IllegalTransition(t *testing.T) {
	p := &Payment{Status: PaymentStatusCompleted}
	err := p.Fail("что-то пошло не так")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, p.FailureReason)
}

func TestPayment_IsTerminal(t *testing.T) {
	assert.False(t, (&Payment{Status: PaymentStatusPending}).IsTerminal())
	assert.False(t, (&Payment{Status: PaymentStatusProcessing}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusCompleted}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusFailed}).IsTerminal())
	assert.True(t, (&Payment{Status: PaymentStatusCancelled}).IsTerminal())
}
