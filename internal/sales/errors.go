package sales

import (
	"errors"

	"gym-backend/internal/stock"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState marks a physical product whose stock ledger is malformed.
	ErrInvalidState = errors.New("invalid stock ledger")
	// ErrOutOfStock means no location of the product has any stock.
	ErrOutOfStock        = errors.New("no stock available")
	ErrInsufficientStock = stock.ErrInsufficientStock
	// ErrStockConflict marks a conditional stock write that lost against a
	// concurrent writer after the availability check passed.
	ErrStockConflict = errors.New("stock changed concurrently")
	// ErrDuplicateRequest is returned while a request with the same
	// idempotency key is still being processed.
	ErrDuplicateRequest = errors.New("duplicate request in progress")
)
