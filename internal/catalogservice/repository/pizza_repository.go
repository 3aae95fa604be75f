// Package repository содержит реализацию доступа к данным для Catalog Service.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vkuzmin/pizza-saga/internal/catalogservice/domain"
)

// PizzaRepository определяет интерфейс для работы с каталогом пицц в БД.
type PizzaRepository interface {
	Create(ctx context.Context, pizza *domain.Pizza) error
	GetByID(ctx context.Context, id string) (*domain.Pizza, error)
	List(ctx context.Context) ([]*domain.Pizza, error)
	Update(ctx context.Context, pizza *domain.Pizza) error
	Delete(ctx context.Context, id string) error
}

// PizzaModel — GORM модель для таблицы pizzas.
type PizzaModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	Price     int64     `gorm:"column:price;not null"`
	Available bool      `gorm:"column:available;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (PizzaModel) TableName() string {
	return "pizzas"
}

func (m *PizzaModel) toDomain() *domain.Pizza {
	return &domain.Pizza{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Available: m.Available,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func pizzaModelFromDomain(p *domain.Pizza) *PizzaModel {
	return &PizzaModel{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Available: p.Available,
	}
}

// pizzaRepository — GORM реализация PizzaRepository.
type pizzaRepository struct {
	db *gorm.DB
}

// NewPizzaRepository создаёт репозиторий каталога пицц.
func NewPizzaRepository(db *gorm.DB) PizzaRepository {
	return &pizzaRepository{db: db}
}

// Create создаёт позицию каталога.
func (r *pizzaRepository) Create(ctx context.Context, pizza *domain.Pizza) error {
	if pizza.ID == "" {
		pizza.ID = uuid.NewString()
	}
	model := pizzaModelFromDomain(pizza)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	pizza.CreatedAt = model.CreatedAt
	pizza.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID возвращает пиццу по ID.
func (r *pizzaRepository) GetByID(ctx context.Context, id string) (*domain.Pizza, error) {
	var model PizzaModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPizzaNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// List возвращает весь каталог.
func (r *pizzaRepository) List(ctx context.Context) ([]*domain.Pizza, error) {
	var models []PizzaModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	pizzas := make([]*domain.Pizza, len(models))
	for i := range models {
		pizzas[i] = models[i].toDomain()
	}
	return pizzas, nil
}

// Update обновляет позицию каталога.
func (r *pizzaRepository) Update(ctx context.Context, pizza *domain.Pizza) error {
	result := r.db.WithContext(ctx).
		Model(&PizzaModel{}).
		Where("id = ?", pizza.ID).
		Updates(map[string]interface{}{
			"name":       pizza.Name,
			"price":      pizza.Price,
			"available":  pizza.Available,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPizzaNotFound
	}
	return nil
}

// Delete удаляет позицию каталога.
func (r *pizzaRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&PizzaModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPizzaNotFound
	}
	return nil
}
