package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmin/pizza-saga/internal/orderservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/service"
)

// mockOrderService — мок OrderService на функциях-заглушках.
type mockOrderService struct {
	CreateOrderFunc func(ctx context.Context, userID string, items []service.ItemRequest, deliveryAddress, paymentMethod string) (*domain.Order, error)
	GetOrderFunc    func(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrdersFunc  func(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error)
	UpdateStatusFunc func(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error
}

func (m *mockOrderService) CreateOrder(ctx context.Context, userID string, items []service.ItemRequest, deliveryAddress, paymentMethod string) (*domain.Order, error) {
	return m.CreateOrderFunc(ctx, userID, items, deliveryAddress, paymentMethod)
}

func (m *mockOrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.GetOrderFunc(ctx, orderID)
}

func (m *mockOrderService) ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	return m.ListOrdersFunc(ctx, userID, status, limit, offset)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error {
	return m.UpdateStatusFunc(ctx, orderID, to, reason)
}

func setupOrderTestRouter(h *OrderHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/orders", h.CreateOrder)
	r.GET("/api/v1/orders", h.ListOrders)
	r.GET("/api/v1/orders/:id", h.GetOrder)
	r.PUT("/api/v1/orders/:id/status", h.UpdateStatus)
	return r
}

func TestCreateOrder_Success(t *testing.T) {
	svc := &mockOrderService{
		CreateOrderFunc: func(ctx context.Context, userID string, items []service.ItemRequest, deliveryAddress, paymentMethod string) (*domain.Order, error) {
			return &domain.Order{ID: "order-1", Status: domain.OrderStatusPending, Total: domain.Money{Amount: 2000}}, nil
		},
	}
	h := NewOrderHandler(svc)
	router := setupOrderTestRouter(h)

	body, _ := json.Marshal(CreateOrderRequest{
		UserID:          "user-1",
		Items:           []CreateOrderItemRequest{{PizzaID: "pizza-1", Quantity: 2}},
		DeliveryAddress: "ул. Ленина, 1",
		PaymentMethod:   "card",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, int64(2000), resp.Total)
}

func TestCreateOrder_ValidationError(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{})
	router := setupOrderTestRouter(h)

	body, _ := json.Marshal(CreateOrderRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		GetOrderFunc: func(ctx context.Context, orderID string) (*domain.Order, error) {
			return nil, domain.ErrOrderNotFound
		},
	}
	h := NewOrderHandler(svc)
	router := setupOrderTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders_MissingUserID(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{})
	router := setupOrderTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders_Success(t *testing.T) {
	svc := &mockOrderService{
		ListOrdersFunc: func(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
			return []*domain.Order{
				{ID: "order-1", UserID: userID, Status: domain.OrderStatusPending},
			}, 1, nil
		},
	}
	h := NewOrderHandler(svc)
	router := setupOrderTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?userId=user-1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ListOrdersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
	assert.Len(t, resp.Orders, 1)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := &mockOrderService{
		UpdateStatusFunc: func(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error {
			return domain.ErrOrderNotFound
		},
	}
	h := NewOrderHandler(svc)
	router := setupOrderTestRouter(h)

	body, _ := json.Marshal(UpdateStatusRequest{Status: domain.OrderStatusPaid})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/missing/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus_Success(t *testing.T) {
	svc := &mockOrderService{
		UpdateStatusFunc: func(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error {
			return nil
		},
	}
	h := NewOrderHandler(svc)
	router := setupOrderTestRouter(h)

	body, _ := json.Marshal(UpdateStatusRequest{Status: domain.OrderStatusPaid, Reason: "оплачен"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/order-1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
