// Package handler содержит HTTP обработчики REST API Payment Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/circuitbreaker"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// PaymentHandler — обработчик REST API платежей.
type PaymentHandler struct {
	svc     service.PaymentService
	breaker *circuitbreaker.Breaker
}

// NewPaymentHandler создаёт обработчик платежей.
func NewPaymentHandler(svc service.PaymentService, breaker *circuitbreaker.Breaker) *PaymentHandler {
	return &PaymentHandler{svc: svc, breaker: breaker}
}

// ErrorResponse — структурированный ответ об ошибке.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreatePaymentRequest — запрос на обработку платежа.
type CreatePaymentRequest struct {
	OrderID       string `json:"order_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,min=1"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// PaymentResponse — информация о платеже в ответе.
type PaymentResponse struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

// CircuitBreakerStatusResponse — текущее состояние circuit breaker.
type CircuitBreakerStatusResponse struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// CreatePayment создаёт/запускает обработку платежа по заказу.
// Идемпотентна по order_id: повторный вызов с тем же order_id
// возвращает уже существующий платёж без повторного запуска исполнителя.
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	payment, err := h.svc.ProcessPayment(ctx, service.ProcessPaymentRequest{
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Ошибка обработки платежа")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, paymentToResponse(payment))
}

// GetPayment возвращает платёж по ID.
// GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	ctx := c.Request.Context()

	payment, err := h.svc.GetPayment(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "платёж не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, paymentToResponse(payment))
}

// GetPaymentByOrder возвращает платёж по ID заказа.
// GET /api/v1/payments/order/:order_id
func (h *PaymentHandler) GetPaymentByOrder(c *gin.Context) {
	ctx := c.Request.Context()

	payment, err := h.svc.GetPaymentByOrderID(ctx, c.Param("order_id"))
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "платёж не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, paymentToResponse(payment))
}

// CircuitBreakerStatus возвращает текущее состояние circuit breaker.
// GET /api/v1/payments/circuit-breaker/status
func (h *PaymentHandler) CircuitBreakerStatus(c *gin.Context) {
	counts := h.breaker.Counts()
	c.JSON(http.StatusOK, CircuitBreakerStatusResponse{
		Name:             h.breaker.Name(),
		State:            h.breaker.State().String(),
		Requests:         counts.Requests,
		ConsecutiveFails: counts.ConsecutiveFailures,
	})
}

func paymentToResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount.Amount,
		PaymentMethod: p.PaymentMethod,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt.Unix(),
		UpdatedAt:     p.UpdatedAt.Unix(),
	}
}
