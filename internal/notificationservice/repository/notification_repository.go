// Package repository содержит реализацию доступа к данным для Notification Service.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
)

// NotificationRepository определяет интерфейс для работы с уведомлениями в БД.
type NotificationRepository interface {
	// Create создаёт уведомление в статусе PENDING.
	Create(ctx context.Context, n *domain.Notification) error

	// UpdateStatus обновляет финальный статус уведомления по итогам
	// доставки по всем каналам.
	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	// GetByID возвращает уведомление по ID.
	GetByID(ctx context.Context, id string) (*domain.Notification, error)

	// CreateAttempt записывает попытку доставки по одному каналу.
	CreateAttempt(ctx context.Context, attempt *domain.DeliveryAttempt) error

	// CompleteAttempt фиксирует результат попытки доставки.
	CompleteAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, errMsg string) error
}

// NotificationModel — GORM модель для таблицы notifications.
type NotificationModel struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID       string    `gorm:"column:user_id;type:varchar(36);index"`
	OrderID      string    `gorm:"column:order_id;type:varchar(36);index"`
	Subject      string    `gorm:"column:subject;type:varchar(255);not null"`
	Message      string    `gorm:"column:message;type:text;not null"`
	Channels     string    `gorm:"column:channels;type:varchar(128);not null"`
	Priority     string    `gorm:"column:priority;type:varchar(16);not null"`
	Status       string    `gorm:"column:status;type:varchar(20);not null;index"`
	TemplateType string    `gorm:"column:template_type;type:varchar(64)"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel — GORM модель для таблицы delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string     `gorm:"column:id;type:varchar(36);primaryKey"`
	NotificationID string     `gorm:"column:notification_id;type:varchar(36);not null;index"`
	Channel        string     `gorm:"column:channel;type:varchar(16);not null"`
	AttemptNumber  int        `gorm:"column:attempt_number;not null"`
	Status         string     `gorm:"column:status;type:varchar(16);not null"`
	ErrorMessage   *string    `gorm:"column:error_message;type:text"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
}

// TableName возвращает имя таблицы в БД.
func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// TemplateModel — GORM модель для таблицы notification_templates,
// загружаемой целиком при старте сервиса и по изменению.
type TemplateModel struct {
	Type            string `gorm:"column:type;type:varchar(64);primaryKey"`
	TitleTemplate   string `gorm:"column:title_template;type:varchar(255);not null"`
	MessageTemplate string `gorm:"column:message_template;type:text;not null"`
}

// TableName возвращает имя таблицы в БД.
func (TemplateModel) TableName() string {
	return "notification_templates"
}

func channelsToString(channels []domain.Channel) string {
	parts := make([]string, len(channels))
	for i, c := range channels {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func channelsFromString(s string) []domain.Channel {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	channels := make([]domain.Channel, len(parts))
	for i, p := range parts {
		channels[i] = domain.Channel(p)
	}
	return channels
}

func (m *NotificationModel) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:           m.ID,
		UserID:       m.UserID,
		OrderID:      m.OrderID,
		Subject:      m.Subject,
		Message:      m.Message,
		Channels:     channelsFromString(m.Channels),
		Priority:     m.Priority,
		Status:       domain.Status(m.Status),
		TemplateType: m.TemplateType,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	return &NotificationModel{
		ID:           n.ID,
		UserID:       n.UserID,
		OrderID:      n.OrderID,
		Subject:      n.Subject,
		Message:      n.Message,
		Channels:     channelsToString(n.Channels),
		Priority:     n.Priority,
		Status:       string(n.Status),
		TemplateType: n.TemplateType,
	}
}

// notificationRepository — GORM реализация NotificationRepository.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository создаёт репозиторий уведомлений.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create создаёт уведомление.
func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	model := notificationModelFromDomain(n)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	n.CreatedAt = model.CreatedAt
	n.UpdatedAt = model.UpdatedAt
	return nil
}

// UpdateStatus обновляет финальный статус уведомления.
func (r *notificationRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		}).Error
}

// GetByID возвращает уведомление по ID.
func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// CreateAttempt записывает попытку доставки.
func (r *notificationRepository) CreateAttempt(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	model := &DeliveryAttemptModel{
		ID:             attempt.ID,
		NotificationID: attempt.NotificationID,
		Channel:        string(attempt.Channel),
		AttemptNumber:  attempt.AttemptNumber,
		Status:         "PENDING",
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// CompleteAttempt фиксирует результат попытки доставки.
func (r *notificationRepository) CompleteAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, errMsg string) error {
	updates := map[string]interface{}{
		"status":       string(status),
		"completed_at": time.Now(),
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	return r.db.WithContext(ctx).
		Model(&DeliveryAttemptModel{}).
		Where("id = ?", attemptID).
		Updates(updates).Error
}

// ErrNotificationNotFound — уведомление не найдено.
var ErrNotificationNotFound = errors.New("уведомление не найдено")
