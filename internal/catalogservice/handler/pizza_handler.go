// Package handler содержит HTTP обработчики REST API Catalog Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vkuzmin/pizza-saga/internal/catalogservice/domain"
	"github.com/vkuzmin/pizza-saga/internal/catalogservice/repository"
)

// PizzaHandler — обработчик REST API каталога пицц.
type PizzaHandler struct {
	repo repository.PizzaRepository
}

// NewPizzaHandler создаёт обработчик каталога.
func NewPizzaHandler(repo repository.PizzaRepository) *PizzaHandler {
	return &PizzaHandler{repo: repo}
}

// ErrorResponse — структурированный ответ об ошибке.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// PizzaRequest — тело запроса на создание/обновление пиццы.
type PizzaRequest struct {
	Name      string `json:"name" binding:"required"`
	Price     int64  `json:"price" binding:"required,min=1"`
	Available *bool  `json:"available"`
}

// PizzaResponse — пицца в ответе.
type PizzaResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}

// CreatePizza создаёт позицию каталога.
// POST /api/v1/pizzas
func (h *PizzaHandler) CreatePizza(c *gin.Context) {
	ctx := c.Request.Context()

	var req PizzaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	pizza := &domain.Pizza{Name: req.Name, Price: req.Price, Available: available}
	if err := pizza.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if err := h.repo.Create(ctx, pizza); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, pizzaToResponse(pizza))
}

// GetPizza возвращает пиццу по ID.
// GET /api/v1/pizzas/:id
func (h *PizzaHandler) GetPizza(c *gin.Context) {
	ctx := c.Request.Context()

	pizza, err := h.repo.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrPizzaNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "пицца не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, pizzaToResponse(pizza))
}

// ListPizzas возвращает весь каталог.
// GET /api/v1/pizzas
func (h *PizzaHandler) ListPizzas(c *gin.Context) {
	ctx := c.Request.Context()

	pizzas, err := h.repo.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	resp := make([]PizzaResponse, len(pizzas))
	for i, p := range pizzas {
		resp[i] = pizzaToResponse(p)
	}
	c.JSON(http.StatusOK, gin.H{"pizzas": resp})
}

// UpdatePizza обновляет позицию каталога.
// PUT /api/v1/pizzas/:id
func (h *PizzaHandler) UpdatePizza(c *gin.Context) {
	ctx := c.Request.Context()

	var req PizzaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	pizza := &domain.Pizza{ID: c.Param("id"), Name: req.Name, Price: req.Price, Available: available}
	if err := pizza.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if err := h.repo.Update(ctx, pizza); err != nil {
		if errors.Is(err, domain.ErrPizzaNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "пицца не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, pizzaToResponse(pizza))
}

// DeletePizza удаляет позицию каталога.
// DELETE /api/v1/pizzas/:id
func (h *PizzaHandler) DeletePizza(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.repo.Delete(ctx, c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrPizzaNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "пицца не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func pizzaToResponse(p *domain.Pizza) PizzaResponse {
	return PizzaResponse{ID: p.ID, Name: p.Name, Price: p.Price, Available: p.Available}
}
