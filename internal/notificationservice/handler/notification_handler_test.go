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

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/service"
)

// mockNotificationService — мок NotificationService на функциях-заглушках.
type mockNotificationService struct {
	HandleEventFunc     func(ctx context.Context, eventType string, payload json.RawMessage) error
	NotifyFunc          func(ctx context.Context, req service.NotifyRequest) (*domain.Notification, error)
	GetNotificationFunc func(ctx context.Context, id string) (*domain.Notification, error)
}

func (m *mockNotificationService) HandleEvent(ctx context.Context, eventType string, payload json.RawMessage) error {
	return m.HandleEventFunc(ctx, eventType, payload)
}

func (m *mockNotificationService) Notify(ctx context.Context, req service.NotifyRequest) (*domain.Notification, error) {
	return m.NotifyFunc(ctx, req)
}

func (m *mockNotificationService) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	return m.GetNotificationFunc(ctx, id)
}

func setupNotificationTestRouter(h *NotificationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/notifications", h.CreateNotification)
	r.GET("/api/v1/notifications/:id", h.GetNotification)
	return r
}

func TestCreateNotification_Success(t *testing.T) {
	svc := &mockNotificationService{
		NotifyFunc: func(ctx context.Context, req service.NotifyRequest) (*domain.Notification, error) {
			return &domain.Notification{ID: "notif-1", UserID: req.UserID, Subject: req.Subject, Status: domain.StatusSent}, nil
		},
	}
	h := NewNotificationHandler(svc)
	router := setupNotificationTestRouter(h)

	body, _ := json.Marshal(NotifyRequest{UserID: "user-1", Subject: "Привет", Message: "Тест"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "notif-1", resp.ID)
}

func TestCreateNotification_ValidationError(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationService{})
	router := setupNotificationTestRouter(h)

	body, _ := json.Marshal(NotifyRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNotification_NotFound(t *testing.T) {
	svc := &mockNotificationService{
		GetNotificationFunc: func(ctx context.Context, id string) (*domain.Notification, error) {
			return nil, repository.ErrNotificationNotFound
		},
	}
	h := NewNotificationHandler(svc)
	router := setupNotificationTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetNotification_Success(t *testing.T) {
	svc := &mockNotificationService{
		GetNotificationFunc: func(ctx context.Context, id string) (*domain.Notification, error) {
			return &domain.Notification{ID: id, Status: domain.StatusSent}, nil
		},
	}
	h := NewNotificationHandler(svc)
	router := setupNotificationTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/notif-1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
