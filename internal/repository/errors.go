package repository

import "errors"

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAgentNotFound возвращается, если агент не найден.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrClientNotFound возвращается, если клиент не найден.
	ErrClientNotFound = errors.New("client not found")
	// ErrPaypointNotFound возвращается, если точка удержания не найдена.
	ErrPaypointNotFound = errors.New("paypoint not found")
	// ErrPolicyNotFound возвращается, если полис не найден.
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrReceiptNotFound возвращается, если квитанция не найдена.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrClaimNotFound возвращается, если заявление на выплату не найдено.
	ErrClaimNotFound = errors.New("claim not found")
	// ErrCancellationNotFound возвращается, если заявка на расторжение не найдена.
	ErrCancellationNotFound = errors.New("cancellation request not found")
	// ErrDuplicate возвращается при нарушении уникальности.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotPending возвращается при попытке повторно рассмотреть уже рассмотренную заявку.
	ErrNotPending = errors.New("request is not pending")
	// ErrCancellationExists возвращается, если по полису уже есть действующая заявка на расторжение.
	ErrCancellationExists = errors.New("cancellation request already exists")
)

// IsNotFound сообщает, означает ли ошибка отсутствие записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrPaypointNotFound) ||
		errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrReceiptNotFound) ||
		errors.Is(err, ErrClaimNotFound) ||
		errors.Is(err, ErrCancellationNotFound)
}
