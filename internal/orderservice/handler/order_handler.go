// Package handler содержит HTTP обработчики REST API Order Service.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vkuzmin/pizza-saga/internal/orderservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// OrderHandler — обработчик REST API заказов.
type OrderHandler struct {
	svc service.OrderService
}

// NewOrderHandler создаёт новый обработчик заказов.
func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// ErrorResponse — структурированный ответ об ошибке.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateOrderItemRequest — позиция в запросе на создание заказа.
type CreateOrderItemRequest struct {
	PizzaID  string `json:"pizzaId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest — запрос на создание заказа.
type CreateOrderRequest struct {
	UserID          string                   `json:"userId" binding:"required"`
	Items           []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress string                   `json:"deliveryAddress" binding:"required"`
	PaymentMethod   string                   `json:"paymentMethod" binding:"required"`
}

// CreateOrderResponse — ответ на создание заказа.
type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Total   int64  `json:"total"`
}

// OrderItemResponse — позиция заказа в ответе.
type OrderItemResponse struct {
	PizzaID   string `json:"pizzaId"`
	PizzaName string `json:"pizzaName"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// OrderResponse — информация о заказе в ответе.
type OrderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Items           []OrderItemResponse `json:"items"`
	Total           int64               `json:"total"`
	Status          string              `json:"status"`
	DeliveryAddress string              `json:"deliveryAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	CreatedAt       int64               `json:"createdAt"`
	UpdatedAt       int64               `json:"updatedAt"`
}

// ListOrdersResponse — ответ на запрос списка заказов.
type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// UpdateStatusRequest — запрос на ручное изменение статуса заказа.
type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

// CreateOrder создаёт новый заказ.
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	items := make([]service.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.ItemRequest{PizzaID: it.PizzaID, Quantity: it.Quantity}
	}

	order, err := h.svc.CreateOrder(ctx, req.UserID, items, req.DeliveryAddress, req.PaymentMethod)
	if err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("Ошибка создания заказа")
		for _, validationErr := range []error{
			domain.ErrEmptyOrderItems, domain.ErrInvalidUserID, domain.ErrInvalidPizzaID,
			domain.ErrInvalidPizzaName, domain.ErrInvalidQuantity, domain.ErrInvalidPrice,
			domain.ErrInvalidDeliveryAddress, domain.ErrInvalidPaymentMethod, service.ErrPizzaNotFound,
		} {
			if errors.Is(err, validationErr) {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
				return
			}
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, CreateOrderResponse{
		OrderID: order.ID,
		Status:  string(order.Status),
		Total:   order.Total.Amount,
	})
}

// GetOrder возвращает заказ по ID.
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()

	order, err := h.svc.GetOrder(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "заказ не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, orderToResponse(order))
}

// ListOrders возвращает заказы пользователя с пагинацией.
// GET /api/v1/orders?userId=&status=&limit=&offset=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "userId обязателен"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	var status *domain.OrderStatus
	if s := c.Query("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	orders, total, err := h.svc.ListOrders(ctx, userID, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	resp := make([]OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = orderToResponse(o)
	}

	c.JSON(http.StatusOK, ListOrdersResponse{Orders: resp, Total: total, Limit: limit, Offset: offset})
}

// UpdateStatus обновляет статус заказа вручную.
// PUT /api/v1/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	if err := h.svc.UpdateStatus(ctx, c.Param("id"), req.Status, req.Reason); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "заказ не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func orderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			PizzaID:   it.PizzaID,
			PizzaName: it.PizzaName,
			Price:     it.PizzaPrice.Amount,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal().Amount,
		}
	}

	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		Total:           o.Total.Amount,
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt.Unix(),
		UpdatedAt:       o.UpdatedAt.Unix(),
	}
}
