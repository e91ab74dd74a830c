package domain

import "errors"

// Доменные ошибки. Сервисы оборачивают их через fmt.Errorf с %w,
// чтобы сообщение несло конкретные id и количества; границы (HTTP)
// сопоставляют через errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrClientInactive    = errors.New("client inactive")
)
