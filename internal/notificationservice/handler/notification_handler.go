// Package handler содержит HTTP обработчики REST API Notification Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/service"
)

// NotificationHandler — обработчик REST API уведомлений.
type NotificationHandler struct {
	svc service.NotificationService
}

// NewNotificationHandler создаёт обработчик уведомлений.
func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// ErrorResponse — структурированный ответ об ошибке.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotifyRequest — запрос на отправку уведомления.
type NotifyRequest struct {
	UserID   string           `json:"user_id" binding:"required"`
	OrderID  string           `json:"order_id"`
	Subject  string           `json:"subject" binding:"required"`
	Message  string           `json:"message" binding:"required"`
	Channels []domain.Channel `json:"channels"`
	Priority string           `json:"priority"`
}

// NotificationResponse — информация об уведомлении в ответе.
type NotificationResponse struct {
	ID       string           `json:"id"`
	UserID   string           `json:"user_id"`
	OrderID  string           `json:"order_id,omitempty"`
	Subject  string           `json:"subject"`
	Message  string           `json:"message"`
	Channels []domain.Channel `json:"channels"`
	Priority string           `json:"priority"`
	Status   string           `json:"status"`
}

// CreateNotification отправляет уведомление напрямую по REST-запросу.
// POST /api/v1/notifications
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	ctx := c.Request.Context()

	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	n, err := h.svc.Notify(ctx, service.NotifyRequest{
		UserID:   req.UserID,
		OrderID:  req.OrderID,
		Subject:  req.Subject,
		Message:  req.Message,
		Channels: req.Channels,
		Priority: req.Priority,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, notificationToResponse(n))
}

// GetNotification возвращает уведомление по ID.
// GET /api/v1/notifications/:id
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.svc.GetNotification(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "уведомление не найдено"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, notificationToResponse(n))
}

func notificationToResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:       n.ID,
		UserID:   n.UserID,
		OrderID:  n.OrderID,
		Subject:  n.Subject,
		Message:  n.Message,
		Channels: n.Channels,
		Priority: n.Priority,
		Status:   string(n.Status),
	}
}
