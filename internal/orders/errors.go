package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationRace     = errors.New("stock reservation failed")
	ErrNotFound            = errors.New("order not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStatusConflict means the order left the expected status before
	// the write landed.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StockError reports the line item that stopped a checkout. Err is
// ErrInsufficientStock or ErrReservationRace.
type StockError struct {
	Err       error
	ProductID int64
	Requested int64
	Available int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: product %d requested %d, available %d", e.Err, e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return e.Err }
