package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
)

// mockRepo — in-memory мок NotificationRepository для тестов диспетчера.
type mockRepo struct {
	attempts     []*domain.DeliveryAttempt
	finalStatus  domain.Status
	updateCalled bool
}

func (m *mockRepo) Create(ctx context.Context, n *domain.Notification) error { return nil }
func (m *mockRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	m.updateCalled = true
	m.finalStatus = status
	return nil
}
func (m *mockRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return nil, nil
}
func (m *mockRepo) CreateAttempt(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	attempt.ID = "attempt-1"
	m.attempts = append(m.attempts, attempt)
	return nil
}
func (m *mockRepo) CompleteAttempt(ctx context.Context, attemptID string, status domain.AttemptStatus, errMsg string) error {
	for _, a := range m.attempts {
		if a.ID == attemptID {
			a.Status = status
			a.ErrorMessage = errMsg
		}
	}
	return nil
}

func TestDispatch_MockChannelsSucceed(t *testing.T) {
	repo := &mockRepo{}
	d := New(repo, Config{EmailEnabled: true, PushEnabled: true})

	n := &domain.Notification{ID: "notif-1", Channels: []domain.Channel{domain.ChannelEmail, domain.ChannelPush}}
	d.Dispatch(context.Background(), n)

	require.True(t, repo.updateCalled)
	assert.Equal(t, domain.StatusSent, repo.finalStatus)
	assert.Len(t, repo.attempts, 2)
	for _, a := range repo.attempts {
		assert.Equal(t, domain.AttemptSuccess, a.Status)
	}
}

func TestDispatch_DisabledChannelSkipped(t *testing.T) {
	repo := &mockRepo{}
	d := New(repo, Config{EmailEnabled: false, PushEnabled: true})

	n := &domain.Notification{ID: "notif-2", Channels: []domain.Channel{domain.ChannelEmail, domain.ChannelPush}}
	d.Dispatch(context.Background(), n)

	assert.Len(t, repo.attempts, 1)
	assert.Equal(t, domain.ChannelPush, repo.attempts[0].Channel)
	assert.Equal(t, domain.StatusSent, repo.finalStatus)
}

func TestDispatch_AllChannelsDisabled_Failed(t *testing.T) {
	repo := &mockRepo{}
	d := New(repo, Config{})

	n := &domain.Notification{ID: "notif-3", Channels: []domain.Channel{domain.ChannelEmail}}
	d.Dispatch(context.Background(), n)

	assert.Empty(t, repo.attempts)
	assert.Equal(t, domain.StatusFailed, repo.finalStatus)
}

func TestDispatch_Webhook_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := &mockRepo{}
	d := New(repo, Config{WebhookEnabled: true, WebhookURL: server.URL})

	n := &domain.Notification{ID: "notif-4", Channels: []domain.Channel{domain.ChannelWebhook}}
	d.Dispatch(context.Background(), n)

	assert.Equal(t, domain.StatusSent, repo.finalStatus)
	assert.Equal(t, domain.AttemptSuccess, repo.attempts[0].Status)
}

func TestDispatch_Webhook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := &mockRepo{}
	d := New(repo, Config{WebhookEnabled: true, WebhookURL: server.URL})

	n := &domain.Notification{ID: "notif-5", Channels: []domain.Channel{domain.ChannelWebhook}}
	d.Dispatch(context.Background(), n)

	assert.Equal(t, domain.StatusFailed, repo.finalStatus)
	assert.Equal(t, domain.AttemptFailed, repo.attempts[0].Status)
	assert.NotEmpty(t, repo.attempts[0].ErrorMessage)
}

func TestDispatch_NoChannels(t *testing.T) {
	repo := &mockRepo{}
	d := New(repo, Config{EmailEnabled: true})

	n := &domain.Notification{ID: "notif-6", Channels: nil}
	d.Dispatch(context.Background(), n)

	assert.False(t, repo.updateCalled)
}
