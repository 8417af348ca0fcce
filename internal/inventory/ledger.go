package inventory

import (
	"context"
	"errors"
)

var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrInsufficient    = errors.New("insufficient stock")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrBelowReserved   = errors.New("total below reserved units")
	ErrOverRelease     = errors.New("release exceeds reserved units")
)

// StockRecord holds the counters of one product. Available is derived and
// never stored.
type StockRecord struct {
	ProductID int64 `json:"productId" yaml:"productId"`
	Total     int64 `json:"total" yaml:"total"`
	Reserved  int64 `json:"reserved" yaml:"-"`
}

func (r StockRecord) Available() int64 { return r.Total - r.Reserved }

// Store is the single owner of the ledger. Every method is atomic with
// respect to the product it touches; callers never see the backing map or
// table.
type Store interface {
	// Get returns ErrUnknownProduct for a product that has never been stocked.
	Get(ctx context.Context, productID int64) (StockRecord, error)
	// SetTotal creates or replaces total; ErrBelowReserved leaves the record unchanged.
	SetTotal(ctx context.Context, productID, total int64) error
	Reserve(ctx context.Context, productID, qty int64) error
	Release(ctx context.Context, productID, qty int64) error
	// List is ordered by product id.
	List(ctx context.Context) ([]StockRecord, error)
	// Seed inserts records whose product does not exist yet.
	Seed(ctx context.Context, records []StockRecord) error
}
