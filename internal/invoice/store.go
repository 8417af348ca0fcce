package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("invoice not found")

// Store keeps rendered invoices in Redis, one key per order.
type Store struct {
	Redis *redis.Client
}

// Put stores doc unless an invoice already exists for the order. It
// reports whether this call wrote it.
func (s *Store) Put(ctx context.Context, orderID int64, doc []byte) (bool, error) {
	return s.Redis.SetNX(ctx, fmt.Sprintf(redisx.KeyInvoice, orderID), doc, redisx.TTLInvoice).Result()
}

func (s *Store) Get(ctx context.Context, orderID int64) ([]byte, error) {
	b, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeyInvoice, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
