package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput: общая причина ошибок валидации.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict возвращается, если операция недопустима в текущем состоянии полиса или заявки.
	ErrConflict = errors.New("conflict")
	// ErrForbidden возвращается, если у сотрудника нет нужной роли.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError описывает некорректное значение поля.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap позволяет сравнивать ошибку с ErrInvalidInput.
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// InvalidAmountError возвращается для неположительной суммы поступления.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("amount must be positive, got %s", e.Amount.String())
}

// Unwrap позволяет сравнивать ошибку с ErrInvalidInput.
func (e *InvalidAmountError) Unwrap() error { return ErrInvalidInput }

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
