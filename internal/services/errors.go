package services

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentAlreadyUsed = errors.New("payment already used")
	ErrBoundToAnotherUser = errors.New("payment bound to another telegram account")
	ErrSelfRevoke         = errors.New("admin cannot revoke own access")
	ErrGroupNotConfigured = errors.New("group not configured")
	ErrGroupChatUnknown   = errors.New("group chat id unknown")
	ErrUserNotBound       = errors.New("no telegram account bound to payment")
	ErrInvalidTelegramID  = errors.New("telegram id must be numeric")
	ErrDuplicateOrder     = errors.New("order id already exists")
	ErrInvalidDate        = errors.New("date must be YYYY-MM-DD")
	ErrTransport          = errors.New("telegram transport failure")
)

// TransportError: ошибка вызова Bot API (бан, разбан, одобрение заявки)
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
