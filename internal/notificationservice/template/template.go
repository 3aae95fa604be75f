// Package template загружает и рендерит шаблоны уведомлений по типу события.
package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"gorm.io/gorm"

	"github.com/vkuzmin/pizza-saga/internal/notificationservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/notificationservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// defaultTemplates — встроенный набор шаблонов, загружаемый в БД при
// первом старте сервиса, если таблица notification_templates пуста.
var defaultTemplates = []domain.Template{
	{
		Type:            "OrderCreated",
		TitleTemplate:   "Заказ {{.OrderID}} принят",
		MessageTemplate: "Ваш заказ на сумму {{.FormattedTotal}} принят в обработку.",
	},
	{
		Type:            "OrderPaid",
		TitleTemplate:   "Оплата заказа {{.OrderID}} прошла успешно",
		MessageTemplate: "Оплата на сумму {{.FormattedAmount}} подтверждена.",
	},
	{
		Type:            "PaymentFailed",
		TitleTemplate:   "Не удалось оплатить заказ {{.OrderID}}",
		MessageTemplate: "Оплата отклонена: {{.FailureReason}}.",
	},
}

// fallbackSubject и fallbackMessage используются, если рендер шаблона
// не удался — отсутствует плейсхолдер или шаблон не найден.
const (
	fallbackSubject = "Обновление по заказу"
	fallbackMessage = "По вашему заказу произошло событие, подробности уточните в приложении."
)

// Registry хранит шаблоны уведомлений, загруженные из БД при старте.
type Registry struct {
	db        *gorm.DB
	templates map[string]domain.Template
}

// NewRegistry создаёт Registry и загружает шаблоны из БД, засеивая
// таблицу встроенным набором при первом запуске.
func NewRegistry(ctx context.Context, db *gorm.DB) (*Registry, error) {
	r := &Registry{db: db, templates: make(map[string]domain.Template)}
	if err := r.seedIfEmpty(ctx); err != nil {
		return nil, err
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) seedIfEmpty(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&repository.TemplateModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, t := range defaultTemplates {
		model := repository.TemplateModel{Type: t.Type, TitleTemplate: t.TitleTemplate, MessageTemplate: t.MessageTemplate}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return fmt.Errorf("ошибка заполнения шаблонов по умолчанию: %w", err)
		}
	}
	return nil
}

// Reload перечитывает все шаблоны из БД.
func (r *Registry) Reload(ctx context.Context) error {
	var models []repository.TemplateModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return fmt.Errorf("ошибка загрузки шаблонов уведомлений: %w", err)
	}

	loaded := make(map[string]domain.Template, len(models))
	for _, m := range models {
		loaded[m.Type] = domain.Template{Type: m.Type, TitleTemplate: m.TitleTemplate, MessageTemplate: m.MessageTemplate}
	}
	r.templates = loaded
	return nil
}

// Rendered — результат рендеринга шаблона.
type Rendered struct {
	Subject string
	Message string
	Found   bool
}

// Render находит шаблон по eventType и рендерит его против payload.
// Отсутствующий плейсхолдер внутри шаблона приводит к fallback
// subject/message с Found=true, а не к ошибке. Отсутствующий шаблон
// возвращает fallback с Found=false; HandleEvent в этом случае
// логирует и отбрасывает событие, не создавая уведомления.
func (r *Registry) Render(ctx context.Context, eventType string, payload json.RawMessage) Rendered {
	log := logger.FromContext(ctx)

	tmpl, ok := r.templates[eventType]
	if !ok {
		log.Warn().Str("event_type", eventType).Msg("Шаблон уведомления не найден")
		return Rendered{Subject: fallbackSubject, Message: fallbackMessage, Found: false}
	}

	data, err := templateData(eventType, payload)
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Ошибка разбора полезной нагрузки для шаблона")
		return Rendered{Subject: fallbackSubject, Message: fallbackMessage, Found: true}
	}

	subject, subjErr := renderOne(tmpl.TitleTemplate, data)
	message, msgErr := renderOne(tmpl.MessageTemplate, data)
	if subjErr != nil || msgErr != nil {
		log.Warn().Str("event_type", eventType).Msg("Отсутствует плейсхолдер в шаблоне, используется fallback")
		if subjErr != nil {
			subject = fallbackSubject
		}
		if msgErr != nil {
			message = fallbackMessage
		}
	}

	return Rendered{Subject: subject, Message: message, Found: true}
}

func renderOne(text string, data map[string]interface{}) (string, error) {
	t, err := template.New("notification").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// templateData разбирает payload события в карту плейсхолдеров,
// предвычисляя денежные поля в виде строк (FormattedTotal,
// FormattedAmount), так как text/template не имеет арифметического
// конвейера для форматирования минимальных единиц валюты в рублях.
func templateData(eventType string, payload json.RawMessage) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	data := make(map[string]interface{}, len(raw)+2)
	for k, v := range raw {
		data[upperFirst(k)] = v
	}

	if totalAmount, ok := numberField(raw, "totalAmount", "total_amount"); ok {
		data["FormattedTotal"] = formatMinorUnits(totalAmount)
	}
	if amount, ok := numberField(raw, "amount"); ok {
		data["FormattedAmount"] = formatMinorUnits(amount)
	}
	if orderID, ok := stringField(raw, "orderId", "order_id"); ok {
		data["OrderID"] = orderID
	}
	if reason, ok := stringField(raw, "failure_reason", "failureReason"); ok {
		data["FailureReason"] = reason
	}

	return data, nil
}

func numberField(raw map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func stringField(raw map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func formatMinorUnits(minor float64) string {
	return fmt.Sprintf("%.2f", minor/100)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
