// Package repository содержит реализацию доступа к данным для Order Service.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vkuzmin/pizza-saga/internal/orderservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/platform/events"
	"github.com/vkuzmin/pizza-saga/internal/platform/kafka"
	"github.com/vkuzmin/pizza-saga/internal/platform/outbox"
)

// aggregateType — значение outbox.AggregateType для заказов.
const aggregateType = "order"

// OrderRepository определяет интерфейс для работы с заказами в БД.
type OrderRepository interface {
	// Create создаёт заказ с позициями и outbox-записью OrderCreated
	// одной транзакцией: либо обе записи фиксируются, либо ни одна.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ по ID с загруженными позициями.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// ListByUserID возвращает заказы пользователя с пагинацией.
	// status может быть nil для получения заказов во всех статусах.
	ListByUserID(ctx context.Context, userID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error)

	// UpdateStatus атомарно переводит заказ из текущего статуса from в
	// статус to и публикует OrderStatusChanged тем же outbox-рядом.
	// Guarded UPDATE (WHERE status = from) не затрагивает ни одной
	// строки, если заказ был изменён конкурентно — тогда возвращается
	// domain.ErrOrderStatusConflict.
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, reason string) error
}

// OrderModel — GORM модель для таблицы orders.
type OrderModel struct {
	ID              string           `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID          string           `gorm:"column:user_id;type:varchar(36);not null;index"`
	Status          string           `gorm:"column:status;type:varchar(20);not null;index"`
	TotalAmount     int64            `gorm:"column:total_amount;not null"`
	DeliveryAddress string           `gorm:"column:delivery_address;type:varchar(255);not null"`
	PaymentMethod   string           `gorm:"column:payment_method;type:varchar(32);not null"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel — GORM модель для таблицы order_items.
type OrderItemModel struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID    string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	PizzaID    string    `gorm:"column:pizza_id;type:varchar(36);not null"`
	PizzaName  string    `gorm:"column:pizza_name;type:varchar(255);not null"`
	PizzaPrice int64     `gorm:"column:pizza_price;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderItemModel) TableName() string {
	return "order_items"
}

func (m *OrderModel) toDomain() *domain.Order {
	order := &domain.Order{
		ID:              m.ID,
		UserID:          m.UserID,
		Status:          domain.OrderStatus(m.Status),
		Total:           domain.Money{Amount: m.TotalAmount},
		DeliveryAddress: m.DeliveryAddress,
		PaymentMethod:   m.PaymentMethod,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Items:           make([]domain.OrderItem, len(m.Items)),
	}

	for i, item := range m.Items {
		order.Items[i] = *item.toDomain()
	}

	return order
}

func (m *OrderItemModel) toDomain() *domain.OrderItem {
	return &domain.OrderItem{
		OrderID:    m.OrderID,
		PizzaID:    m.PizzaID,
		PizzaName:  m.PizzaName,
		PizzaPrice: domain.Money{Amount: m.PizzaPrice},
		Quantity:   m.Quantity,
	}
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	model := &OrderModel{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		TotalAmount:     o.Total.Amount,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemModel, len(o.Items)),
	}

	for i, item := range o.Items {
		model.Items[i] = *orderItemModelFromDomain(&item)
	}

	return model
}

func orderItemModelFromDomain(oi *domain.OrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:         uuid.NewString(),
		OrderID:    oi.OrderID,
		PizzaID:    oi.PizzaID,
		PizzaName:  oi.PizzaName,
		PizzaPrice: oi.PizzaPrice.Amount,
		Quantity:   oi.Quantity,
	}
}

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create создаёт заказ и пишет outbox-запись OrderCreated одной транзакцией.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	model := orderModelFromDomain(order)

	items := make([]events.OrderItemRef, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, events.OrderItemRef{PizzaID: it.PizzaID, Quantity: it.Quantity})
	}

	payload := events.OrderCreatedPayload{
		OrderID:         order.ID,
		UserID:          order.UserID,
		TotalAmount:     order.Total.Amount,
		ItemsCount:      len(order.Items),
		Items:           items,
		PaymentMethod:   order.PaymentMethod,
		DeliveryAddress: order.DeliveryAddress,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		row, err := buildOutboxRow(order.ID, events.TypeOrderCreated, payload)
		if err != nil {
			return err
		}
		return tx.Create(outbox.ModelFromDomain(row)).Error
	})

	if err != nil {
		return err
	}

	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt

	return nil
}

// GetByID возвращает заказ по ID с загруженными позициями.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// ListByUserID возвращает список заказов пользователя с пагинацией.
func (r *orderRepository) ListByUserID(ctx context.Context, userID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&OrderModel{}).Where("user_id = ?", userID)

	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].toDomain()
	}

	return orders, totalCount, nil
}

// UpdateStatus переводит заказ из from в to, предохраняя обновление
// условием WHERE status = from, и пишет OrderStatusChanged outbox-рядом
// в той же транзакции.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, reason string) error {
	payload := events.OrderStatusChangedPayload{
		OrderID:   id,
		NewStatus: string(to),
		Reason:    reason,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]interface{}{
				"status":     string(to),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&OrderModel{}).Where("id = ?", id).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return domain.ErrOrderNotFound
			}
			return domain.ErrOrderStatusConflict
		}

		row, err := buildOutboxRow(id, events.TypeOrderStatusChanged, payload)
		if err != nil {
			return err
		}
		if err := tx.Create(outbox.ModelFromDomain(row)).Error; err != nil {
			return err
		}

		return tx.Create(&SagaEventModel{
			ID:        uuid.NewString(),
			OrderID:   id,
			FromState: string(from),
			ToState:   string(to),
			Reason:    reason,
		}).Error
	})
}

// SagaEventModel — журнал переходов заказа, дополняющий guarded
// UPDATE в UpdateStatus. Не авторитетен для инвариантов (статус в
// orders — источник истины), служит только для операционной
// видимости хода саги.
type SagaEventModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID   string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	FromState string    `gorm:"column:from_state;type:varchar(20);not null"`
	ToState   string    `gorm:"column:to_state;type:varchar(20);not null"`
	Reason    string    `gorm:"column:reason;type:varchar(255)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (SagaEventModel) TableName() string {
	return "saga_events"
}

func buildOutboxRow(orderID, eventType string, payload interface{}) (*outbox.Outbox, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	topic, _ := events.TopicForEventType(eventType)

	return &outbox.Outbox{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   orderID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    orderID,
		Payload:       data,
		Headers:       map[string]string{kafka.HeaderTimestamp: time.Now().UTC().Format(time.RFC3339)},
	}, nil
}
