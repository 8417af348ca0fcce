package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo keeps orders in process memory. It backs ORDERS_STORE=memory
// and the tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	nextID   int64
	orders   map[int64]Order
	products []Product
	now      func() time.Time
}

func NewMemoryRepo(products []Product) *MemoryRepo {
	return &MemoryRepo{
		orders:   make(map[int64]Order),
		products: append([]Product(nil), products...),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := r.now()
	o.ID = r.nextID
	o.CreatedAt, o.UpdatedAt = now, now
	r.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id int64) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryRepo) ListByEmail(_ context.Context, email string) ([]Order, error) {
	r.mu.RLock()
	out := []Order{}
	for _, o := range r.orders {
		if o.Email == email {
			out = append(out, cloneOrder(o))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) SetSessionID(_ context.Context, id int64, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.StripeSessionID = &sessionID
	o.UpdatedAt = r.now()
	r.orders[id] = o
	return nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, id int64, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = r.now()
	r.orders[id] = o
	return nil
}

func (r *MemoryRepo) ListProducts(_ context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Product(nil), r.products...), nil
}
