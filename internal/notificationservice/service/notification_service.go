// Package service содержит бизнес-логику Notification Service.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/dispatcher"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/template"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// NotificationService — интерфейс бизнес-логики уведомлений.
type NotificationService interface {
	// HandleEvent реализует шаги 1-4 диспетчера уведомлений: резолвит
	// шаблон по типу события, рендерит его, создаёт запись Notification
	// в PENDING и запускает доставку по каналам.
	HandleEvent(ctx context.Context, eventType string, payload json.RawMessage) error

	// Notify создаёт и доставляет уведомление по прямому REST-запросу,
	// минуя событийный лог.
	Notify(ctx context.Context, req NotifyRequest) (*domain.Notification, error)

	// GetNotification возвращает уведомление по ID.
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
}

// NotifyRequest — прямой запрос на отправку уведомления.
type NotifyRequest struct {
	UserID   string
	OrderID  string
	Subject  string
	Message  string
	Channels []domain.Channel
	Priority string
}

type notificationService struct {
	repo       repository.NotificationRepository
	templates  *template.Registry
	dispatcher *dispatcher.Dispatcher
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(repo repository.NotificationRepository, templates *template.Registry, disp *dispatcher.Dispatcher) NotificationService {
	return &notificationService{repo: repo, templates: templates, dispatcher: disp}
}

// HandleEvent обрабатывает одно событие саги и порождает уведомление.
func (s *notificationService) HandleEvent(ctx context.Context, eventType string, payload json.RawMessage) error {
	log := logger.FromContext(ctx)

	rendered := s.templates.Render(ctx, eventType, payload)
	if !rendered.Found {
		log.Info().Str("event_type", eventType).Msg("Шаблон для события отсутствует, уведомление не создано")
		return nil
	}

	orderID := events.OrderIDOf(payload)

	n := &domain.Notification{
		OrderID:      orderID,
		Subject:      rendered.Subject,
		Message:      rendered.Message,
		Channels:     domain.DefaultChannels,
		Priority:     "normal",
		Status:       domain.StatusPending,
		TemplateType: eventType,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("ошибка создания уведомления: %w", err)
	}

	s.dispatcher.Dispatch(ctx, n)
	return nil
}

// Notify создаёт и немедленно доставляет уведомление по прямому запросу.
func (s *notificationService) Notify(ctx context.Context, req NotifyRequest) (*domain.Notification, error) {
	channels := req.Channels
	if len(channels) == 0 {
		channels = domain.DefaultChannels
	}

	n := &domain.Notification{
		UserID:   req.UserID,
		OrderID:  req.OrderID,
		Subject:  req.Subject,
		Message:  req.Message,
		Channels: channels,
		Priority: req.Priority,
		Status:   domain.StatusPending,
	}
	if n.Priority == "" {
		n.Priority = "normal"
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("ошибка создания уведомления: %w", err)
	}

	s.dispatcher.Dispatch(ctx, n)
	return n, nil
}

// GetNotification возвращает уведомление по ID.
func (s *notificationService) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}
