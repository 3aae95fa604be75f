// Package provider содержит HTTP-клиент к внешнему (mock) платёжному провайдеру.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChargeRequest — тело запроса к провайдеру на списание средств.
type ChargeRequest struct {
	OrderID     string      `json:"order_id"`
	Amount      int64       `json:"amount"`
	CardDetails CardDetails `json:"card_details"`
}

// CardDetails — данные карты, передаваемые провайдеру. Мок-провайдер
// не проверяет их содержимое, но контракт требует поле в запросе.
type CardDetails struct {
	PaymentMethod string `json:"payment_method"`
}

// ChargeResult — результат обращения к провайдеру.
type ChargeResult struct {
	Success       bool
	TransactionID string
	FailureReason string
}

// successResponse — тело ответа провайдера при HTTP 200.
type successResponse struct {
	TransactionID string `json:"transactionId"`
}

// failureResponse — тело ответа провайдера при не-200.
type failureResponse struct {
	FailureReason string `json:"failureReason"`
}

// Provider — интерфейс платёжного провайдера. Позволяет замокать HTTP
// вызов в unit-тестах executor'а.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// httpProvider — HTTP реализация Provider поверх mock-эндпоинта провайдера.
type httpProvider struct {
	url    string
	client *http.Client
}

// New создаёт HTTP клиент платёжного провайдера с заданным таймаутом на попытку.
func New(url string, timeout time.Duration) Provider {
	return &httpProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Charge выполняет POST /api/v1/payments/process. HTTP 200 означает
// успех с transactionId в теле; любой другой статус — отказ с
// failureReason в теле.
func (p *httpProvider) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса провайдеру: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса провайдеру: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ошибка обращения к платёжному провайдеру: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var ok successResponse
		if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
			return nil, fmt.Errorf("ошибка разбора успешного ответа провайдера: %w", err)
		}
		return &ChargeResult{Success: true, TransactionID: ok.TransactionID}, nil
	}

	var fail failureResponse
	_ = json.NewDecoder(resp.Body).Decode(&fail)
	reason := fail.FailureReason
	if reason == "" {
		reason = fmt.Sprintf("провайдер вернул статус %d", resp.StatusCode)
	}
	return &ChargeResult{Success: false, FailureReason: reason}, nil
}
