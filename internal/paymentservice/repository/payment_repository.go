// Package repository содержит реализацию доступа к данным для Payment Service.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/outbox"
)

const aggregateType = "payment"

// PaymentRepository определяет интерфейс для работы с платежами в БД.
type PaymentRepository interface {
	// Create создаёт платёж в статусе PENDING. Уникальный индекс на
	// order_id делает повторное создание платежа для уже существующего
	// заказа конфликтом ErrDuplicatePayment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID возвращает платёж по ID.
	GetByID(ctx context.Context, paymentID string) (*domain.Payment, error)

	// GetByOrderID возвращает платёж по ID заказа — основной путь
	// идемпотентной проверки "платёж для этого заказа уже существует".
	GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error)

	// UpdateStatus атомарно переводит платёж из from в to, на успешном
	// переходе в COMPLETED/FAILED публикует соответствующее событие
	// OrderPaid/PaymentFailed outbox-рядом в той же транзакции.
	UpdateStatus(ctx context.Context, paymentID string, from, to domain.PaymentStatus, failureReason string) error

	// GetStuckPending возвращает платежи, застрявшие в PENDING дольше
	// olderThan — для фонового обнаружения зависших запусков executor'а.
	GetStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)

	// CreateAttempt записывает попытку обращения к провайдеру.
	CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error

	// CompleteAttempt помечает попытку завершённой с результатом.
	CompleteAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, errMsg string) error

	// ListAttempts возвращает все попытки платежа в порядке номера попытки.
	ListAttempts(ctx context.Context, paymentID string) ([]*domain.PaymentAttempt, error)
}

// PaymentModel — GORM модель для таблицы payments.
type PaymentModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID        string    `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex"`
	Amount         int64     `gorm:"column:amount;not null"`
	PaymentMethod  string    `gorm:"column:payment_method;type:varchar(50);not null"`
	Status         string    `gorm:"column:status;type:varchar(20);not null;index"`
	IdempotencyKey string    `gorm:"column:idempotency_key;type:varchar(64);not null;uniqueIndex"`
	FailureReason  *string   `gorm:"column:failure_reason;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (PaymentModel) TableName() string {
	return "payments"
}

// PaymentAttemptModel — GORM модель для таблицы payment_attempts.
type PaymentAttemptModel struct {
	ID            string     `gorm:"column:id;type:varchar(36);primaryKey"`
	PaymentID     string     `gorm:"column:payment_id;type:varchar(36);not null;index"`
	AttemptNumber int        `gorm:"column:attempt_number;not null"`
	Status        string     `gorm:"column:status;type:varchar(20);not null"`
	ErrorMessage  *string    `gorm:"column:error_message;type:text"`
	StartedAt     time.Time  `gorm:"column:started_at;autoCreateTime"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
}

// TableName возвращает имя таблицы в БД.
func (PaymentAttemptModel) TableName() string {
	return "payment_attempts"
}

func (m *PaymentModel) toDomain() *domain.Payment {
	p := &domain.Payment{
		ID:             m.ID,
		OrderID:        m.OrderID,
		Amount:         domain.Money{Amount: m.Amount},
		PaymentMethod:  m.PaymentMethod,
		Status:         domain.PaymentStatus(m.Status),
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.FailureReason != nil {
		p.FailureReason = *m.FailureReason
	}
	return p
}

func paymentModelFromDomain(p *domain.Payment) *PaymentModel {
	model := &PaymentModel{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Amount:         p.Amount.Amount,
		PaymentMethod:  p.PaymentMethod,
		Status:         string(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.FailureReason != "" {
		model.FailureReason = &p.FailureReason
	}
	return model
}

func (m *PaymentAttemptModel) toDomain() *domain.PaymentAttempt {
	a := &domain.PaymentAttempt{
		ID:            m.ID,
		PaymentID:     m.PaymentID,
		AttemptNumber: m.AttemptNumber,
		Status:        domain.AttemptStatus(m.Status),
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}
	if m.ErrorMessage != nil {
		a.ErrorMessage = *m.ErrorMessage
	}
	return a
}

// paymentRepository — GORM реализация PaymentRepository.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт новый репозиторий платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create создаёт платёж.
func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	model := paymentModelFromDomain(payment)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return err
	}

	payment.CreatedAt = model.CreatedAt
	payment.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID возвращает платёж по ID.
func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// GetByOrderID возвращает платёж по ID заказа.
func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// UpdateStatus переводит платёж из from в to guarded UPDATE-ом и на
// терминальном статусе пишет OrderPaid/PaymentFailed outbox-рядом в
// той же транзакции.
func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus, failureReason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		}
		if failureReason != "" {
			updates["failure_reason"] = failureReason
		}

		result := tx.Model(&PaymentModel{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&PaymentModel{}).Where("id = ?", id).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return domain.ErrPaymentNotFound
			}
			return domain.ErrPaymentStatusConflict
		}

		var model PaymentModel
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			return err
		}

		row, err := buildOutboxRowForTransition(&model, to, failureReason)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		return tx.Create(outbox.ModelFromDomain(row)).Error
	})
}

// GetStuckPending возвращает платежи, застрявшие в PENDING дольше olderThan.
func (r *paymentRepository) GetStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	var models []PaymentModel
	threshold := time.Now().Add(-olderThan)

	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.PaymentStatusPending), threshold).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	payments := make([]*domain.Payment, 0, len(models))
	for _, m := range models {
		payments = append(payments, m.toDomain())
	}
	return payments, nil
}

// CreateAttempt записывает новую попытку платежа.
func (r *paymentRepository) CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	model := &PaymentAttemptModel{
		ID:            attempt.ID,
		PaymentID:     attempt.PaymentID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        string(attempt.Status),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	attempt.StartedAt = model.StartedAt
	return nil
}

// CompleteAttempt помечает попытку завершённой.
func (r *paymentRepository) CompleteAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, errMsg string) error {
	updates := map[string]interface{}{
		"status":       string(status),
		"completed_at": time.Now(),
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	return r.db.WithContext(ctx).
		Model(&PaymentAttemptModel{}).
		Where("id = ?", attemptID).
		Updates(updates).Error
}

// ListAttempts возвращает попытки платежа по возрастанию номера.
func (r *paymentRepository) ListAttempts(ctx context.Context, paymentID string) ([]*domain.PaymentAttempt, error) {
	var models []PaymentAttemptModel
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("attempt_number ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	attempts := make([]*domain.PaymentAttempt, len(models))
	for i := range models {
		attempts[i] = models[i].toDomain()
	}
	return attempts, nil
}

func buildOutboxRowForTransition(model *PaymentModel, to domain.PaymentStatus, failureReason string) (*outbox.Outbox, error) {
	var eventType string
	var payload interface{}

	switch to {
	case domain.PaymentStatusCompleted:
		eventType = events.TypeOrderPaid
		payload = events.OrderPaidPayload{
			PaymentID:     model.ID,
			OrderID:       model.OrderID,
			Amount:        model.Amount,
			PaymentMethod: model.PaymentMethod,
		}
	case domain.PaymentStatusFailed:
		eventType = events.TypePaymentFailed
		payload = events.PaymentFailedPayload{
			PaymentID:     model.ID,
			OrderID:       model.OrderID,
			Amount:        model.Amount,
			PaymentMethod: model.PaymentMethod,
			FailureReason: failureReason,
		}
	default:
		return nil, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	topic, _ := events.TopicForEventType(eventType)

	return &outbox.Outbox{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   model.ID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    model.OrderID,
		Payload:       data,
		Headers:       map[string]string{kafka.HeaderTimestamp: time.Now().UTC().Format(time.RFC3339)},
	}, nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом уникального ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
