package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmin/pizza-saga/internal/paymentservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/paymentservice/service"
	"github.com/vkuzmin/pizza-saga/internal/platform/circuitbreaker"
)

// mockPaymentService — мок PaymentService на функциях-заглушках.
type mockPaymentService struct {
	ProcessPaymentFunc      func(ctx context.Context, req service.ProcessPaymentRequest) (*domain.Payment, error)
	GetPaymentFunc          func(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetPaymentByOrderIDFunc func(ctx context.Context, orderID string) (*domain.Payment, error)
}

func (m *mockPaymentService) ProcessPayment(ctx context.Context, req service.ProcessPaymentRequest) (*domain.Payment, error) {
	return m.ProcessPaymentFunc(ctx, req)
}

func (m *mockPaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return m.GetPaymentFunc(ctx, paymentID)
}

func (m *mockPaymentService) GetPaymentByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	return m.GetPaymentByOrderIDFunc(ctx, orderID)
}

func (m *mockPaymentService) RecoverStuckPending(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

func setupPaymentTestRouter(h *PaymentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/payments", h.CreatePayment)
	r.GET("/api/v1/payments/:id", h.GetPayment)
	r.GET("/api/v1/payments/order/:order_id", h.GetPaymentByOrder)
	r.GET("/api/v1/payments/circuit-breaker/status", h.CircuitBreakerStatus)
	return r
}

func TestCreatePayment_Success(t *testing.T) {
	svc := &mockPaymentService{
		ProcessPaymentFunc: func(ctx context.Context, req service.ProcessPaymentRequest) (*domain.Payment, error) {
			return &domain.Payment{ID: "payment-1", OrderID: req.OrderID, Amount: domain.Money{Amount: req.Amount}, Status: domain.PaymentStatusCompleted}, nil
		},
	}
	breaker := circuitbreaker.New("payment-provider", circuitbreaker.DefaultSettings())
	h := NewPaymentHandler(svc, breaker)
	router := setupPaymentTestRouter(h)

	body, _ := json.Marshal(CreatePaymentRequest{OrderID: "order-1", Amount: 1000, PaymentMethod: "card"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "payment-1", resp.ID)
}

func TestCreatePayment_ValidationError(t *testing.T) {
	breaker := circuitbreaker.New("payment-provider", circuitbreaker.DefaultSettings())
	h := NewPaymentHandler(&mockPaymentService{}, breaker)
	router := setupPaymentTestRouter(h)

	body, _ := json.Marshal(CreatePaymentRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPayment_NotFound(t *testing.T) {
	svc := &mockPaymentService{
		GetPaymentFunc: func(ctx context.Context, paymentID string) (*domain.Payment, error) {
			return nil, domain.ErrPaymentNotFound
		},
	}
	breaker := circuitbreaker.New("payment-provider", circuitbreaker.DefaultSettings())
	h := NewPaymentHandler(svc, breaker)
	router := setupPaymentTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPaymentByOrder_Success(t *testing.T) {
	svc := &mockPaymentService{
		GetPaymentByOrderIDFunc: func(ctx context.Context, orderID string) (*domain.Payment, error) {
			return &domain.Payment{ID: "payment-1", OrderID: orderID, Status: domain.PaymentStatusCompleted}, nil
		},
	}
	breaker := circuitbreaker.New("payment-provider", circuitbreaker.DefaultSettings())
	h := NewPaymentHandler(svc, breaker)
	router := setupPaymentTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/order/order-1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCircuitBreakerStatus(t *testing.T) {
	breaker := circuitbreaker.New("payment-provider", circuitbreaker.DefaultSettings())
	h := NewPaymentHandler(&mockPaymentService{}, breaker)
	router := setupPaymentTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/circuit-breaker/status", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CircuitBreakerStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "payment-provider", resp.Name)
	assert.Equal(t, "closed", resp.State)
}
