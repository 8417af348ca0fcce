package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"go.uber.org/zap"
)

// StockLevel is the public view of a product's availability.
type StockLevel struct {
	ProductID int64 `json:"productId"`
	Available int64 `json:"available"`
}

// Service exposes the ledger operations. Business rejections come back as
// false with a nil error; a non-nil error means the store itself failed.
type Service struct {
	Store   Store
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func (s *Service) GetStock(ctx context.Context, productID int64) (StockLevel, error) {
	rec, err := s.Store.Get(ctx, productID)
	if errors.Is(err, ErrUnknownProduct) {
		return StockLevel{ProductID: productID}, nil
	}
	if err != nil {
		s.Metrics.InventoryOps.WithLabelValues("get", "error").Inc()
		return StockLevel{ProductID: productID}, err
	}
	return StockLevel{ProductID: productID, Available: rec.Available()}, nil
}

func (s *Service) UpdateStock(ctx context.Context, productID, total int64) (bool, error) {
	return s.apply(ctx, "update", productID, total, s.Store.SetTotal)
}

func (s *Service) ReserveStock(ctx context.Context, productID, qty int64) (bool, error) {
	return s.apply(ctx, "reserve", productID, qty, s.Store.Reserve)
}

func (s *Service) ReleaseStock(ctx context.Context, productID, qty int64) (bool, error) {
	return s.apply(ctx, "release", productID, qty, s.Store.Release)
}

func (s *Service) GetAllStock(ctx context.Context) ([]StockRecord, error) {
	return s.Store.List(ctx)
}

func (s *Service) apply(ctx context.Context, op string, productID, qty int64, fn func(context.Context, int64, int64) error) (bool, error) {
	err := fn(ctx, productID, qty)
	switch {
	case err == nil:
		s.Metrics.InventoryOps.WithLabelValues(op, "ok").Inc()
		return true, nil
	case isRejection(err):
		s.Metrics.InventoryOps.WithLabelValues(op, "rejected").Inc()
		s.Log.Info("stock operation rejected",
			zap.String("op", op),
			zap.Int64("product_id", productID),
			zap.Int64("quantity", qty),
			zap.String("reason", err.Error()))
		return false, nil
	default:
		s.Metrics.InventoryOps.WithLabelValues(op, "error").Inc()
		s.Log.Error("stock operation failed",
			zap.String("op", op),
			zap.Int64("product_id", productID),
			zap.Error(err))
		return false, err
	}
}

func isRejection(err error) bool {
	return errors.Is(err, ErrUnknownProduct) ||
		errors.Is(err, ErrInsufficient) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrBelowReserved) ||
		errors.Is(err, ErrOverRelease)
}
