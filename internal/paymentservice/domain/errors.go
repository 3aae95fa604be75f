// Package domain содержит бизнес-сущности и доменные ошибки Payment Service.
package domain

import "errors"

// Доменные ошибки Payment Service.
var (
	// ErrPaymentNotFound — платёж не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrInvalidTransition — недопустимый переход состояния платежа.
	ErrInvalidTransition = errors.New("недопустимый переход состояния платежа")

	// ErrInvalidAmount — некорректная сумма платежа.
	ErrInvalidAmount = errors.New("сумма платежа должна быть больше нуля")

	// ErrDuplicatePayment возвращается при попытке создать второй платёж
	// для того же order_id — уникальный индекс на order_id серилизует
	// конкурентных создателей.
	ErrDuplicatePayment = errors.New("платёж для этого заказа уже существует")

	// ErrPaymentDeclined — провайдер отклонил платёж.
	ErrPaymentDeclined = errors.New("платёж отклонён провайдером")

	// ErrPaymentStatusConflict возвращается репозиторием, когда guarded
	// UPDATE не затронул ни одной строки — статус в БД уже изменился
	// между чтением и записью.
	ErrPaymentStatusConflict = errors.New("статус платежа был изменён конкурентно")
)
