// Package service содержит бизнес-логику Payment Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/executor"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// idempotencyKeyPrefix — префикс ключа быстрой идемпотентности в Redis.
const idempotencyKeyPrefix = "payment:order:"

// idempotencyTTL — время жизни ключа идемпотентности в Redis.
const idempotencyTTL = 24 * time.Hour

// ProcessPaymentRequest — запрос на обработку платежа по заказу.
type ProcessPaymentRequest struct {
	OrderID       string
	Amount        int64
	PaymentMethod string
}

// PaymentService — интерфейс бизнес-логики Payment Service.
type PaymentService interface {
	// ProcessPayment обрабатывает платёж по заказу: идемпотентно
	// создаёт запись платежа, запускает ограниченный по попыткам
	// исполнитель и фиксирует терминальный статус. Повторный вызов с
	// тем же order_id находит уже существующий платёж и не создаёт
	// новый исполняющий запуск.
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*domain.Payment, error)

	// GetPayment возвращает платёж по ID.
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)

	// GetPaymentByOrderID возвращает платёж по ID заказа.
	GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// RecoverStuckPending переводит платежи, зависшие в PENDING дольше
	// olderThan, в FAILED — защита от процессов, упавших между
	// созданием платежа и запуском исполнителя.
	RecoverStuckPending(ctx context.Context, olderThan time.Duration) (int, error)
}

type paymentService struct {
	repo     repository.PaymentRepository
	executor *executor.Executor
	redis    *redis.Client
}

// NewPaymentService создаёт сервис платежей.
func NewPaymentService(repo repository.PaymentRepository, exec *executor.Executor, redisClient *redis.Client) PaymentService {
	return &paymentService{repo: repo, executor: exec, redis: redisClient}
}

// ProcessPayment реализует шаги 1, 3 и 4 алгоритма платёжного
// исполнителя: идемпотентный gate, ограниченный повтор через executor,
// терминальный переход статуса.
func (s *paymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*domain.Payment, error) {
	log := logger.FromContext(ctx)

	if existing, err := s.findExisting(ctx, req.OrderID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Info().Str("order_id", req.OrderID).Str("payment_id", existing.ID).Msg("Платёж уже существует (идемпотентность)")
		return existing, nil
	}

	payment, err := domain.NewPayment("", req.OrderID, domain.Money{Amount: req.Amount}, req.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("невалидные данные платежа: %w", err)
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			existing, getErr := s.repo.GetByOrderID(ctx, req.OrderID)
			if getErr == nil {
				log.Info().Str("order_id", req.OrderID).Str("payment_id", existing.ID).Msg("Платёж уже существует (конкурентное создание)")
				return existing, nil
			}
		}
		return nil, fmt.Errorf("ошибка создания платежа: %w", err)
	}

	s.markIdempotent(ctx, req.OrderID, payment.ID)

	if err := s.repo.UpdateStatus(ctx, payment.ID, domain.PaymentStatusPending, domain.PaymentStatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("ошибка перехода в PROCESSING: %w", err)
	}
	payment.Status = domain.PaymentStatusProcessing

	result, err := s.executor.Run(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("ошибка исполнения платежа: %w", err)
	}

	if result.Success {
		if err := s.repo.UpdateStatus(ctx, payment.ID, domain.PaymentStatusProcessing, domain.PaymentStatusCompleted, ""); err != nil {
			return nil, fmt.Errorf("ошибка перехода в COMPLETED: %w", err)
		}
		payment.Status = domain.PaymentStatusCompleted
		log.Info().Str("payment_id", payment.ID).Str("order_id", req.OrderID).Msg("Платёж завершён успехом")
		return payment, nil
	}

	if err := s.repo.UpdateStatus(ctx, payment.ID, domain.PaymentStatusProcessing, domain.PaymentStatusFailed, result.FailureReason); err != nil {
		return nil, fmt.Errorf("ошибка перехода в FAILED: %w", err)
	}
	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = result.FailureReason
	log.Warn().Str("payment_id", payment.ID).Str("order_id", req.OrderID).Str("reason", result.FailureReason).Msg("Платёж завершён отказом")

	return payment, nil
}

// findExisting проверяет идемпотентность сначала быстрым путём через
// Redis (EXISTS ключа, который ставится после создания платежа), затем в БД. При ошибке Redis продолжаем — БД (уникальный
// индекс на order_id) защищает от дублей в любом случае.
func (s *paymentService) findExisting(ctx context.Context, orderID string) (*domain.Payment, error) {
	log := logger.FromContext(ctx)

	if s.redis != nil {
		key := idempotencyKeyPrefix + orderID
		exists, err := s.redis.Exists(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("Ошибка Redis при проверке идемпотентности")
		} else if exists > 0 {
			existing, dbErr := s.repo.GetByOrderID(ctx, orderID)
			if dbErr == nil {
				return existing, nil
			}
		}
	}

	existing, err := s.repo.GetByOrderID(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, nil
	}
	return nil, err
}

func (s *paymentService) markIdempotent(ctx context.Context, orderID, paymentID string) {
	if s.redis == nil {
		return
	}
	log := logger.FromContext(ctx)
	key := idempotencyKeyPrefix + orderID
	if err := s.redis.Set(ctx, key, paymentID, idempotencyTTL).Err(); err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Ошибка записи ключа идемпотентности в Redis")
	}
}

// GetPayment возвращает платёж по ID.
func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.repo.GetByID(ctx, paymentID)
}

// GetPaymentByOrderID возвращает платёж по ID заказа.
func (s *paymentService) GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

// RecoverStuckPending переводит платежи, зависшие в PENDING, в FAILED.
func (s *paymentService) RecoverStuckPending(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContext(ctx)

	stuck, err := s.repo.GetStuckPending(ctx, olderThan, 100)
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска зависших платежей: %w", err)
	}

	recovered := 0
	for _, p := range stuck {
		if err := s.repo.UpdateStatus(ctx, p.ID, domain.PaymentStatusPending, domain.PaymentStatusFailed, "timeout: платёж завис в PENDING"); err != nil {
			log.Error().Err(err).Str("payment_id", p.ID).Msg("Ошибка восстановления зависшего платежа")
			continue
		}
		recovered++
	}

	return recovered, nil
}
