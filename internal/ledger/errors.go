package ledger

import "errors"

var (
	ErrValidation          = errors.New("validation_error")
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrDuplicateOperation  = errors.New("duplicate_operation")
	ErrPersistence         = errors.New("persistence_error")
)
