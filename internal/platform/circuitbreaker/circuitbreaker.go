// Package circuitbreaker предоставляет Circuit Breaker для защиты от каскадных сбоев
// при вызовах внешнего платёжного провайдера.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, запросы проходят
//   - Open: сервис недоступен, запросы отклоняются мгновенно (без ожидания timeout)
//   - Half-Open: пробный период, пропускаем часть запросов для проверки восстановления
//
// Использование:
//
//	cb := circuitbreaker.New("payment-provider", circuitbreaker.Settings{
//	    FailureThreshold: 5,
//	    SuccessThreshold: 3,
//	    Timeout:          60 * time.Second,
//	})
//	err := cb.Execute(func() error { _, err := client.Charge(ctx, req); return err })
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// ErrOpen возвращается, когда breaker отклоняет вызов без обращения к провайдеру.
var ErrOpen = errors.New("circuit breaker открыт — провайдер временно недоступен")

// Settings — настройки Circuit Breaker для вызовов платёжного провайдера:
// количество подряд идущих отказов до открытия, количество подряд идущих
// успехов в Half-Open до закрытия, и время ожидания в Open.
type Settings struct {
	FailureThreshold uint32        // Подряд идущих отказов до перехода в Open (по умолчанию 5)
	SuccessThreshold uint32        // Подряд идущих успехов в Half-Open до перехода в Closed (по умолчанию 3)
	Timeout          time.Duration // Время в Open до пробного перехода в Half-Open (по умолчанию 60s)
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
	}
}

// Breaker — обёртка над gobreaker с логированием состояний.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New создаёт Circuit Breaker с заданными настройками.
func New(name string, s Settings) *Breaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultSettings().FailureThreshold
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = DefaultSettings().SuccessThreshold
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultSettings().Timeout
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: name,
		// MaxRequests — сколько пробных запросов допускаем в Half-Open
		// одновременно; success_threshold успехов должно накопиться прежде
		// чем breaker закроется, поэтому пропускаем ровно столько пробных
		// вызовов за раз.
		MaxRequests: s.SuccessThreshold,
		Timeout:     s.Timeout,

		// ReadyToTrip открывает breaker после FailureThreshold подряд
		// идущих отказов, а не по доле ошибок.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — провайдер недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — провайдер восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Counts возвращает текущие счётчики breaker (для /circuit-breaker/status).
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Execute выполняет fn через Circuit Breaker. Если breaker открыт, fn не
// вызывается и возвращается ErrOpen без обращения к провайдеру.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}
