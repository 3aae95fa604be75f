// Package dispatcher доставляет уведомления по включённым каналам.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// webhookTimeout — таймаут HTTP-запроса доставки по каналу WEBHOOK.
const webhookTimeout = 10 * time.Second

// Config определяет, какие каналы включены и куда стучится WEBHOOK.
type Config struct {
	EmailEnabled   bool
	SMSEnabled     bool
	PushEnabled    bool
	WebhookEnabled bool
	WebhookURL     string
}

// Dispatcher доставляет уведомление по всем его каналам и агрегирует
// финальный статус.
type Dispatcher struct {
	repo   repository.NotificationRepository
	cfg    Config
	client *http.Client
}

// New создаёт Dispatcher.
func New(repo repository.NotificationRepository, cfg Config) *Dispatcher {
	return &Dispatcher{repo: repo, cfg: cfg, client: &http.Client{Timeout: webhookTimeout}}
}

// webhookPayload — тело HTTP POST при доставке по каналу WEBHOOK.
type webhookPayload struct {
	NotificationID string `json:"notification_id"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
}

// Dispatch доставляет уведомление по каждому каналу из n.Channels,
// записывает DeliveryAttempt на канал и выставляет итоговый статус:
// SENT если все каналы успешны или хотя бы один (частичный успех всё
// равно SENT — доставка best-effort), FAILED если все отказали.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification) {
	log := logger.FromContext(ctx)

	if len(n.Channels) == 0 {
		log.Warn().Str("notification_id", n.ID).Msg("Уведомление без каналов доставки")
		return
	}

	successCount := 0
	for i, channel := range n.Channels {
		if !d.isEnabled(channel) {
			log.Debug().Str("channel", string(channel)).Msg("Канал отключён конфигурацией, пропущен")
			continue
		}

		attempt := &domain.DeliveryAttempt{
			NotificationID: n.ID,
			Channel:        channel,
			AttemptNumber:  i + 1,
		}
		if err := d.repo.CreateAttempt(ctx, attempt); err != nil {
			log.Error().Err(err).Str("notification_id", n.ID).Msg("Ошибка записи попытки доставки")
			continue
		}

		sendErr := d.send(ctx, channel, n)
		status := domain.AttemptSuccess
		errMsg := ""
		if sendErr != nil {
			status = domain.AttemptFailed
			errMsg = sendErr.Error()
			log.Warn().Err(sendErr).Str("channel", string(channel)).Str("notification_id", n.ID).Msg("Ошибка доставки по каналу")
		} else {
			successCount++
		}

		if err := d.repo.CompleteAttempt(ctx, attempt.ID, status, errMsg); err != nil {
			log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("Ошибка фиксации попытки доставки")
		}
	}

	finalStatus := domain.StatusFailed
	if successCount > 0 {
		finalStatus = domain.StatusSent
	}
	if err := d.repo.UpdateStatus(ctx, n.ID, finalStatus); err != nil {
		log.Error().Err(err).Str("notification_id", n.ID).Msg("Ошибка обновления финального статуса уведомления")
	}
}

func (d *Dispatcher) isEnabled(channel domain.Channel) bool {
	switch channel {
	case domain.ChannelEmail:
		return d.cfg.EmailEnabled
	case domain.ChannelSMS:
		return d.cfg.SMSEnabled
	case domain.ChannelPush:
		return d.cfg.PushEnabled
	case domain.ChannelWebhook:
		return d.cfg.WebhookEnabled
	default:
		return false
	}
}

func (d *Dispatcher) send(ctx context.Context, channel domain.Channel, n *domain.Notification) error {
	switch channel {
	case domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush:
		return d.sendMock(channel, n)
	case domain.ChannelWebhook:
		return d.sendWebhook(ctx, n)
	default:
		return fmt.Errorf("неизвестный канал доставки: %s", channel)
	}
}

// sendMock симулирует отправку по каналам, для которых в этой системе
// нет реального внешнего провайдера — доставка всегда успешна.
func (d *Dispatcher) sendMock(channel domain.Channel, n *domain.Notification) error {
	_ = channel
	_ = n
	return nil
}

func (d *Dispatcher) sendWebhook(ctx context.Context, n *domain.Notification) error {
	if d.cfg.WebhookURL == "" {
		return fmt.Errorf("webhook url не настроен")
	}

	body, err := json.Marshal(webhookPayload{NotificationID: n.ID, Subject: n.Subject, Message: n.Message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook вернул статус %d", resp.StatusCode)
	}
	return nil
}
