// Package domain содержит бизнес-сущности Notification Service.
package domain

import "time"

// Channel — канал доставки уведомления.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelPush    Channel = "PUSH"
	ChannelWebhook Channel = "WEBHOOK"
)

// Status — статус уведомления.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusDelivered Status = "DELIVERED"
)

// DefaultChannels — набор каналов по умолчанию, если событие не указывает свой.
var DefaultChannels = []Channel{ChannelEmail, ChannelPush}

// Notification — уведомление, порождённое одним событием саги.
type Notification struct {
	ID           string
	UserID       string
	OrderID      string
	Subject      string
	Message      string
	Channels     []Channel
	Priority     string
	Status       Status
	TemplateType string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AttemptStatus — результат попытки доставки по одному каналу.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "SUCCESS"
	AttemptFailed  AttemptStatus = "FAILED"
)

// DeliveryAttempt — попытка доставки уведомления по одному каналу.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	Channel        Channel
	AttemptNumber  int
	Status         AttemptStatus
	ErrorMessage   string
	CompletedAt    *time.Time
}

// Template — шаблон уведомления для одного типа события, разрешаемый
// по плейсхолдерам из полезной нагрузки события.
type Template struct {
	Type            string
	TitleTemplate   string
	MessageTemplate string
}
