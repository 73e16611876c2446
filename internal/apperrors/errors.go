package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInsufficientFunds indicates a debit would take the account below its
// allowed floor (zero, or the overdraft limit where one is configured).
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountNotActive indicates the account is dormant, frozen, or closed.
var ErrAccountNotActive = errors.New("account is not active")

// ErrLimitExceeded is the base error matched by errors.Is for any
// LimitExceededError regardless of which ceiling was hit.
var ErrLimitExceeded = errors.New("transaction limit exceeded")

// ErrConflict indicates the atomic commit lost a race with a concurrent
// operation on the same account or counter. Safe to retry.
var ErrConflict = errors.New("concurrency conflict")

// ErrInternal indicates an unexpected internal failure.
var ErrInternal = errors.New("internal error")

// AppError carries an HTTP-ish status code alongside the wrapped cause.
// Repositories use it to report storage failures without losing the cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError wrapping an underlying cause.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// LimitExceededError names the first ceiling a transaction violated so the
// caller can display which limit blocked the operation.
type LimitExceededError struct {
	Ceiling string // e.g. "single_transaction", "daily_withdrawal"
	Limit   string // configured ceiling, formatted
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit of %s exceeded", e.Ceiling, e.Limit)
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}
