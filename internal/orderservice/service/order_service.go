// Package service содержит бизнес-логику Order Service.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vkuzmin/pizza-saga/internal/orderservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/orderservice/repository"
	"github.com/vkuzmin/pizza-saga/internal/platform/logger"
)

// Константы пагинации списка заказов.
const (
	defaultLimit = 20
	maxLimit     = 100
)

// ErrPizzaNotFound возвращается, когда каталог не знает указанный pizza_id.
var ErrPizzaNotFound = errors.New("пицца не найдена в каталоге")

// ItemRequest — позиция запроса на создание заказа (до обогащения
// данными каталога).
type ItemRequest struct {
	PizzaID  string
	Quantity int
}

// OrderService определяет интерфейс бизнес-логики заказов.
type OrderService interface {
	// CreateOrder обогащает позиции данными каталога, валидирует заказ
	// и создаёт его в статусе PENDING, публикуя OrderCreated.
	CreateOrder(ctx context.Context, userID string, items []ItemRequest, deliveryAddress, paymentMethod string) (*domain.Order, error)

	// GetOrder возвращает заказ по ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders возвращает заказы пользователя с пагинацией.
	ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error)

	// UpdateStatus переводит заказ в новый статус, проверяя допустимость
	// перехода по allowedTransitions. Используется как ручным REST-вызовом
	// (PUT /orders/{id}/status), так и консьюмером payment-events.
	UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error
}

type orderService struct {
	repo    repository.OrderRepository
	catalog PizzaCatalog
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(repo repository.OrderRepository, catalog PizzaCatalog) OrderService {
	return &orderService{repo: repo, catalog: catalog}
}

// CreateOrder обогащает позиции ценами каталога и создаёт заказ.
func (s *orderService) CreateOrder(ctx context.Context, userID string, items []ItemRequest, deliveryAddress, paymentMethod string) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	if len(items) == 0 {
		return nil, domain.ErrEmptyOrderItems
	}

	orderItems := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		pizza, err := s.catalog.GetPizza(ctx, it.PizzaID)
		if err != nil {
			log.Warn().Err(err).Str("pizza_id", it.PizzaID).Msg("Ошибка получения позиции каталога")
			return nil, fmt.Errorf("ошибка получения позиции каталога %s: %w", it.PizzaID, err)
		}

		orderItems = append(orderItems, domain.OrderItem{
			PizzaID:    pizza.ID,
			PizzaName:  pizza.Name,
			PizzaPrice: domain.Money{Amount: pizza.Price},
			Quantity:   it.Quantity,
		})
	}

	order := &domain.Order{
		UserID:          userID,
		Items:           orderItems,
		Status:          domain.OrderStatusPending,
		DeliveryAddress: deliveryAddress,
		PaymentMethod:   paymentMethod,
	}

	if err := order.Validate(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Ошибка валидации заказа")
		return nil, err
	}

	order.CalculateTotal()

	if err := s.repo.Create(ctx, order); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Ошибка создания заказа")
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Int64("total_amount", order.Total.Amount).
		Int("items_count", len(order.Items)).
		Msg("Заказ успешно создан")

	return order, nil
}

// GetOrder возвращает заказ по ID.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, fmt.Errorf("ошибка получения заказа: %w", err)
		}
		return nil, err
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя с пагинацией.
func (s *orderService) ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	orders, total, err := s.repo.ListByUserID(ctx, userID, status, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка заказов: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus переводит заказ в новый статус, если переход разрешён.
// Нелегальные переходы отклоняются молча и логируются: событие или
// REST-запрос подтверждается, но состояние заказа не меняется.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus, reason string) error {
	log := logger.FromContext(ctx)

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !order.CanTransitionTo(to) {
		log.Warn().
			Str("order_id", orderID).
			Str("from", string(order.Status)).
			Str("to", string(to)).
			Msg("Нелегальный переход статуса заказа отклонён")
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, orderID, order.Status, to, reason); err != nil {
		if errors.Is(err, domain.ErrOrderStatusConflict) {
			log.Warn().Str("order_id", orderID).Msg("Статус заказа изменился конкурентно, переход пропущен")
			return nil
		}
		return fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}

	log.Info().
		Str("order_id", orderID).
		Str("status", string(to)).
		Str("reason", reason).
		Msg("Статус заказа обновлён")

	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
