package invoice

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Service struct {
	Store *Store
	Log   *zap.Logger
}

// HandleOrderCreated is the consumer handler for the order_created topic.
// A malformed payload is logged and committed; only store failures are
// returned so the offset stays uncommitted and the message is retried.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	log := s.Log.With(
		zap.String("event_id", kafkax.Header(m, orders.HeaderEventID)),
		zap.Int64("offset", m.Offset))

	if t := kafkax.Header(m, orders.HeaderEventType); t != "" && t != orders.EventOrderCreated {
		log.Debug("skipping event", zap.String("event_type", t))
		return nil
	}
	if v := kafkax.Header(m, orders.HeaderEventVersion); v != "" && v != orders.EventVersion {
		log.Warn("unsupported event version", zap.String("event_version", v))
		return nil
	}

	ev, err := kafkax.Decode[orders.OrderCreatedEvent](m.Value)
	if err != nil {
		log.Error("dropping undecodable order_created", zap.Error(err))
		return nil
	}
	if ev.OrderID <= 0 {
		log.Error("dropping order_created without order id")
		return nil
	}

	created, err := s.Store.Put(ctx, ev.OrderID, Render(ev))
	if err != nil {
		return fmt.Errorf("store invoice for order %d: %w", ev.OrderID, err)
	}
	if !created {
		log.Info("invoice already exists", zap.Int64("order_id", ev.OrderID))
		return nil
	}
	log.Info("invoice generated", zap.Int64("order_id", ev.OrderID), zap.Int64("amount_cents", ev.AmountCents))
	return nil
}
