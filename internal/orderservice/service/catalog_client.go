package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PizzaInfo — снимок цены и названия пиццы в каталоге на момент запроса.
type PizzaInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// PizzaCatalog определяет интерфейс клиента Catalog Service, используемый
// при создании заказа для получения названия и цены позиций.
type PizzaCatalog interface {
	GetPizza(ctx context.Context, pizzaID string) (*PizzaInfo, error)
}

// httpPizzaCatalog — HTTP-клиент Catalog Service.
type httpPizzaCatalog struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPizzaCatalog создаёт клиент Catalog Service поверх REST API.
func NewHTTPPizzaCatalog(baseURL string) PizzaCatalog {
	return &httpPizzaCatalog{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// GetPizza запрашивает позицию каталога по ID.
func (c *httpPizzaCatalog) GetPizza(ctx context.Context, pizzaID string) (*PizzaInfo, error) {
	url := fmt.Sprintf("%s/pizzas/%s", c.baseURL, pizzaID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к catalog service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPizzaNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service вернул статус %d", resp.StatusCode)
	}

	var pizza PizzaInfo
	if err := json.NewDecoder(resp.Body).Decode(&pizza); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа catalog service: %w", err)
	}

	return &pizza, nil
}
