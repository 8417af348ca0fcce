package inventory

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps the ledger in process memory behind one mutex.
type MemoryStore struct {
	mu    sync.Mutex
	stock map[int64]StockRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stock: make(map[int64]StockRecord)}
}

func (s *MemoryStore) Get(_ context.Context, productID int64) (StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stock[productID]
	if !ok {
		return StockRecord{}, ErrUnknownProduct
	}
	return rec, nil
}

func (s *MemoryStore) SetTotal(_ context.Context, productID, total int64) error {
	if total < 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.stock[productID]
	if total < rec.Reserved {
		return ErrBelowReserved
	}
	rec.ProductID = productID
	rec.Total = total
	s.stock[productID] = rec
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, productID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stock[productID]
	if !ok {
		return ErrUnknownProduct
	}
	if qty > rec.Available() {
		return ErrInsufficient
	}
	rec.Reserved += qty
	s.stock[productID] = rec
	return nil
}

func (s *MemoryStore) Release(_ context.Context, productID, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stock[productID]
	if !ok {
		return ErrUnknownProduct
	}
	if qty > rec.Reserved {
		return ErrOverRelease
	}
	rec.Reserved -= qty
	s.stock[productID] = rec
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]StockRecord, error) {
	s.mu.Lock()
	out := make([]StockRecord, 0, len(s.stock))
	for _, rec := range s.stock {
		out = append(out, rec)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *MemoryStore) Seed(_ context.Context, records []StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.stock[r.ProductID]; ok {
			continue
		}
		if r.Total < 0 {
			return ErrInvalidQuantity
		}
		s.stock[r.ProductID] = StockRecord{ProductID: r.ProductID, Total: r.Total}
	}
	return nil
}
