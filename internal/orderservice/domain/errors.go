// Package domain содержит бизнес-сущности и доменные ошибки Order Service.
package domain

import "errors"

// Доменные ошибки Order Service.
// Используются для передачи бизнес-ошибок между слоями приложения.
var (
	// ErrOrderNotFound возвращается, когда заказ не найден в базе данных.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrEmptyOrderItems возвращается при попытке создать заказ без позиций.
	ErrEmptyOrderItems = errors.New("заказ должен содержать хотя бы одну позицию")

	// ErrInvalidUserID возвращается при пустом или некорректном идентификаторе пользователя.
	ErrInvalidUserID = errors.New("некорректный идентификатор пользователя")

	// ErrInvalidPizzaID возвращается при пустом или некорректном идентификаторе пиццы.
	ErrInvalidPizzaID = errors.New("некорректный идентификатор пиццы")

	// ErrInvalidPizzaName возвращается при пустом названии пиццы.
	ErrInvalidPizzaName = errors.New("название пиццы не может быть пустым")

	// ErrInvalidQuantity возвращается, когда количество меньше единицы.
	ErrInvalidQuantity = errors.New("количество должно быть не меньше одного")

	// ErrInvalidPrice возвращается, когда цена меньше или равна нулю.
	ErrInvalidPrice = errors.New("цена должна быть больше нуля")

	// ErrInvalidDeliveryAddress возвращается при пустом адресе доставки.
	ErrInvalidDeliveryAddress = errors.New("адрес доставки не может быть пустым")

	// ErrInvalidPaymentMethod возвращается при пустом способе оплаты.
	ErrInvalidPaymentMethod = errors.New("способ оплаты не может быть пустым")

	// ErrIllegalTransition возвращается при попытке перевести заказ
	// в статус, недостижимый из текущего согласно allowedTransitions.
	ErrIllegalTransition = errors.New("недопустимый переход статуса заказа")

	// ErrOrderStatusConflict возвращается репозиторием, когда guarded
	// UPDATE не затронул ни одной строки — статус в БД уже изменился
	// между чтением и записью (конкурентное обновление).
	ErrOrderStatusConflict = errors.New("статус заказа был изменён конкурентно")
)
