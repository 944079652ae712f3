package wager

import (
	"errors"

	"karat-arcade/internal/ledger"
)

var (
	ErrValidation          = ledger.ErrValidation
	ErrNotFound            = ledger.ErrNotFound
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrDuplicateOperation  = ledger.ErrDuplicateOperation

	ErrGameUnavailable     = errors.New("game_unavailable")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
	ErrInternal            = errors.New("internal_error")
)
