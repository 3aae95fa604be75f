// Package domain содержит бизнес-сущности Catalog Service.
package domain

import (
	"errors"
	"time"
)

// ErrPizzaNotFound — пицца не найдена в каталоге.
var ErrPizzaNotFound = errors.New("пицца не найдена")

// ErrInvalidPizza — некорректные данные пиццы.
var ErrInvalidPizza = errors.New("некорректные данные пиццы")

// Pizza — позиция каталога, источник истины для имени и цены,
// снимок которых Order Service копирует в OrderItem на создании заказа.
type Pizza struct {
	ID        string
	Name      string
	Price     int64
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет инвариант пиццы.
func (p *Pizza) Validate() error {
	if p.Name == "" {
		return ErrInvalidPizza
	}
	if p.Price <= 0 {
		return ErrInvalidPizza
	}
	return nil
}
