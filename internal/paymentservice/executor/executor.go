// Package executor реализует ограниченный по числу попыток вызов
// платёжного провайдера за Circuit Breaker'ом, с экспоненциальной
// паузой между попытками и записью каждой попытки в БД.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/provider"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/platform/circuitbreaker"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// errProviderDeclined сигнализирует breaker'у неуспех вызова, когда сам
// HTTP-вызов прошёл, но провайдер отклонил списание — breaker должен
// учитывать это как отказ наравне с сетевой ошибкой.
var errProviderDeclined = errors.New("провайдер отклонил списание")

// Config — параметры ограниченного повтора.
type Config struct {
	MaxAttempts int           // количество попыток, по умолчанию 3
	BaseDelay   time.Duration // база экспоненциальной паузы, по умолчанию 2s
	DelayCap    time.Duration // потолок паузы, по умолчанию 30s
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 2 * time.Second, DelayCap: 30 * time.Second}
}

// Result — итог исполнения платежа через провайдера.
type Result struct {
	Success       bool
	TransactionID string
	FailureReason string
}

// Executor исполняет ограниченный по попыткам вызов провайдера.
type Executor struct {
	repo     repository.PaymentRepository
	provider provider.Provider
	breaker  *circuitbreaker.Breaker
	cfg      Config
}

// New создаёт Executor.
func New(repo repository.PaymentRepository, prov provider.Provider, breaker *circuitbreaker.Breaker, cfg Config) *Executor {
	if cfg.MaxAttempts == 0 {
		cfg = DefaultConfig()
	}
	return &Executor{repo: repo, provider: prov, breaker: breaker, cfg: cfg}
}

// Run выполняет до cfg.MaxAttempts попыток списания по платежу payment,
// разделённых экспоненциальной паузой (base, ×2, потолок DelayCap).
// Каждая попытка: запись PaymentAttempt со статусом PENDING, затем вызов
// провайдера через breaker (открытый breaker отклоняет попытку без
// вызова провайдера, строка попытки к этому моменту уже записана),
// обновление попытки результатом, учёт успеха/отказа в breaker'е. Возвращает Result первой успешной попытки либо последний
// отказ после исчерпания попыток.
func (e *Executor) Run(ctx context.Context, payment *domain.Payment) (*Result, error) {
	log := logger.FromContext(ctx)

	var lastReason string
	delay := e.cfg.BaseDelay

	for attemptNumber := 1; attemptNumber <= e.cfg.MaxAttempts; attemptNumber++ {
		if attemptNumber > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > e.cfg.DelayCap {
				delay = e.cfg.DelayCap
			}
		}

		attempt := &domain.PaymentAttempt{
			PaymentID:     payment.ID,
			AttemptNumber: attemptNumber,
			Status:        domain.AttemptStatusPending,
		}
		if err := e.repo.CreateAttempt(ctx, attempt); err != nil {
			return nil, err
		}

		res, execErr := e.attempt(ctx, payment)

		if execErr != nil {
			lastReason = execErr.Error()
			if err := e.repo.CompleteAttempt(ctx, attempt.ID, domain.AttemptStatusFailed, lastReason); err != nil {
				log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("Ошибка записи результата попытки")
			}
			log.Warn().Err(execErr).Str("payment_id", payment.ID).Int("attempt", attemptNumber).Msg("Попытка списания не удалась")
			continue
		}

		if !res.Success {
			lastReason = res.FailureReason
			if err := e.repo.CompleteAttempt(ctx, attempt.ID, domain.AttemptStatusFailed, lastReason); err != nil {
				log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("Ошибка записи результата попытки")
			}
			log.Warn().Str("payment_id", payment.ID).Int("attempt", attemptNumber).Str("reason", lastReason).Msg("Провайдер отклонил списание")
			continue
		}

		if err := e.repo.CompleteAttempt(ctx, attempt.ID, domain.AttemptStatusSuccess, ""); err != nil {
			log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("Ошибка записи результата попытки")
		}
		return &Result{Success: true, TransactionID: res.TransactionID}, nil
	}

	return &Result{Success: false, FailureReason: lastReason}, nil
}

func (e *Executor) attempt(ctx context.Context, payment *domain.Payment) (*provider.ChargeResult, error) {
	var result *provider.ChargeResult

	err := e.breaker.Execute(func() error {
		res, chargeErr := e.provider.Charge(ctx, provider.ChargeRequest{
			OrderID: payment.OrderID,
			Amount:  payment.Amount.Amount,
			CardDetails: provider.CardDetails{
				PaymentMethod: payment.PaymentMethod,
			},
		})
		if chargeErr != nil {
			return chargeErr
		}
		result = res
		if !res.Success {
			return errProviderDeclined
		}
		return nil
	})

	if err != nil {
		if result != nil && !result.Success {
			return result, nil
		}
		return nil, err
	}

	return result, nil
}
