package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Inventory is the remote stock contract. Implementations fail closed:
// 0 / false together with a non-nil error when the service is unreachable.
type Inventory interface {
	GetStock(ctx context.Context, productID int64) (int64, error)
	ReserveStock(ctx context.Context, productID, quantity int64) (bool, error)
	ReleaseStock(ctx context.Context, productID, quantity int64) (bool, error)
}

type PaymentGateway interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (payment.Session, error)
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev OrderCreatedEvent) error
}

// EventClaims remembers which webhook deliveries were already applied.
type EventClaims interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type CheckoutConfig struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// Outcome tells the webhook caller what a delivery did.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Service coordinates checkout across inventory, the order store and the
// payment provider, and applies payment outcomes to orders.
type Service struct {
	Repo      Repository
	Inventory Inventory
	Payments  PaymentGateway
	Publisher EventPublisher
	Claims    EventClaims
	Checkout  CheckoutConfig
	Log       *zap.Logger
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Checkout, error) {
	ctx, span := s.Tracer.Start(ctx, "orders.Create")
	defer span.End()

	out, err := s.create(ctx, req)
	result := "ok"
	if err != nil {
		result = checkoutResult(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("order.id", out.Order.ID))
	}
	s.Metrics.Checkouts.WithLabelValues(result).Inc()
	return out, err
}

func (s *Service) create(ctx context.Context, req CreateRequest) (Checkout, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := Validate(req); err != nil {
		return Checkout{}, err
	}
	log := s.Log.With(zap.String("email", req.Email), zap.Int("items", len(req.Items)))

	// availability first, nothing is held if any item is short
	available := make([]int64, len(req.Items))
	for i, it := range req.Items {
		n, err := s.Inventory.GetStock(ctx, it.ProductID)
		if err != nil {
			return Checkout{}, fmt.Errorf("%w: check stock: %v", ErrUpstreamUnavailable, err)
		}
		if n < it.Quantity {
			return Checkout{}, &StockError{Err: ErrInsufficientStock, ProductID: it.ProductID, Requested: it.Quantity, Available: n}
		}
		available[i] = n
	}

	var undo compensations
	for i, it := range req.Items {
		ok, err := s.Inventory.ReserveStock(ctx, it.ProductID, it.Quantity)
		if err != nil || !ok {
			log.Warn("reservation failed, releasing earlier items",
				zap.Int64("product_id", it.ProductID),
				zap.Int("released", len(undo.steps)),
				zap.Error(err))
			undo.run(ctx)
			if err != nil {
				// the ledger may have applied this reserve before the call failed;
				// releasing blindly could free units held by another order
				log.Error("reservation outcome unknown, units may stay reserved",
					zap.Int64("product_id", it.ProductID),
					zap.Int64("quantity", it.Quantity),
					zap.Error(err))
				return Checkout{}, fmt.Errorf("%w: reserve stock: %v", ErrUpstreamUnavailable, err)
			}
			return Checkout{}, &StockError{Err: ErrReservationRace, ProductID: it.ProductID, Requested: it.Quantity, Available: available[i]}
		}
		undo.add(s.releaseStep(it, "checkout rollback"))
	}

	o := Order{
		Email:           req.Email,
		AmountCents:     AmountCents(req.Items),
		Status:          StatusPending,
		Items:           append([]Item(nil), req.Items...),
		ShippingAddress: req.ShippingAddress,
	}
	if err := s.Repo.Create(ctx, &o); err != nil {
		undo.run(ctx)
		return Checkout{}, fmt.Errorf("persist order: %w", err)
	}
	log = log.With(zap.Int64("order_id", o.ID))
	undo.add(func(ctx context.Context) {
		if err := s.Repo.UpdateStatus(ctx, o.ID, StatusPending, StatusCancelled); err != nil {
			log.Error("cancel abandoned order", zap.Error(err))
		}
	})

	sess, err := s.Payments.CreateSession(ctx, s.sessionRequest(ctx, o))
	if err != nil {
		log.Error("payment session failed", zap.Error(err))
		undo.run(ctx)
		return Checkout{}, fmt.Errorf("%w: payment session: %v", ErrUpstreamUnavailable, err)
	}
	if err := s.Repo.SetSessionID(ctx, o.ID, sess.ID); err != nil {
		log.Error("store session id", zap.String("session_id", sess.ID), zap.Error(err))
		undo.run(ctx)
		return Checkout{}, fmt.Errorf("store session id: %w", err)
	}
	o.StripeSessionID = &sess.ID

	log.Info("checkout created", zap.Int64("amount_cents", o.AmountCents), zap.String("session_id", sess.ID))
	return Checkout{Order: o, CheckoutURL: sess.URL}, nil
}

func (s *Service) sessionRequest(ctx context.Context, o Order) payment.SessionRequest {
	names := map[int64]string{}
	if ps, err := s.Repo.ListProducts(ctx); err == nil {
		for _, p := range ps {
			names[p.ID] = p.Name
		}
	} else {
		s.Log.Warn("product names unavailable", zap.Error(err))
	}

	req := payment.SessionRequest{
		OrderID:       o.ID,
		CustomerEmail: o.Email,
		Currency:      s.Checkout.Currency,
		SuccessURL:    s.Checkout.SuccessURL,
		CancelURL:     s.Checkout.CancelURL,
	}
	for _, it := range o.Items {
		name, ok := names[it.ProductID]
		if !ok {
			name = fmt.Sprintf("Product #%d", it.ProductID)
		}
		req.LineItems = append(req.LineItems, payment.LineItem{Name: name, UnitAmount: it.PriceCents, Quantity: it.Quantity})
	}
	return req
}

func (s *Service) releaseStep(it Item, reason string) func(context.Context) {
	return func(ctx context.Context) {
		ok, err := s.Inventory.ReleaseStock(ctx, it.ProductID, it.Quantity)
		if err != nil || !ok {
			s.Log.Error("stock release failed",
				zap.String("reason", reason),
				zap.Int64("product_id", it.ProductID),
				zap.Int64("quantity", it.Quantity),
				zap.Error(err))
		}
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Problems: []string{"email query parameter is required"}}
	}
	return s.Repo.ListByEmail(ctx, email)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Repo.ListProducts(ctx)
}

// HandlePaymentEvent applies one webhook delivery at most once. Deliveries
// that cannot apply (unknown order, wrong status, unknown type) are
// acknowledged as ignored rather than rejected, so the provider stops
// redelivering them.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev payment.Event) (Outcome, error) {
	ctx, span := s.Tracer.Start(ctx, "orders.HandlePaymentEvent",
		trace.WithAttributes(attribute.String("event.id", ev.ID), attribute.String("event.type", ev.Type)))
	defer span.End()

	if ev.ID == "" {
		return "", &ValidationError{Problems: []string{"event id is required"}}
	}
	first, err := s.Claims.Claim(ctx, ev.ID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("claim event %s: %w", ev.ID, err)
	}
	if !first {
		s.Metrics.WebhookEvents.WithLabelValues(ev.Type, string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	outcome, err := s.applyPaymentEvent(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ferr := s.Claims.Forget(ctx, ev.ID); ferr != nil {
			s.Log.Error("drop event claim", zap.String("event_id", ev.ID), zap.Error(ferr))
		}
		return "", err
	}
	s.Metrics.WebhookEvents.WithLabelValues(ev.Type, string(outcome)).Inc()
	return outcome, nil
}

func (s *Service) applyPaymentEvent(ctx context.Context, ev payment.Event) (Outcome, error) {
	log := s.Log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	var target Status
	switch ev.Type {
	case payment.EventCheckoutCompleted:
		target = StatusPaid
	case payment.EventCheckoutExpired:
		target = StatusCancelled
	default:
		log.Debug("unhandled event type")
		return OutcomeIgnored, nil
	}

	id, err := strconv.ParseInt(ev.OrderID, 10, 64)
	if err != nil || id <= 0 {
		log.Warn("event without usable order id", zap.String("order_id", ev.OrderID))
		return OutcomeIgnored, nil
	}
	log = log.With(zap.Int64("order_id", id))

	o, err := s.Repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		log.Warn("event for unknown order")
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", fmt.Errorf("load order %d: %w", id, err)
	}

	if !CanTransition(o.Status, target) {
		log.Warn("transition not allowed, event ignored",
			zap.String("status", string(o.Status)),
			zap.String("target", string(target)))
		return OutcomeIgnored, nil
	}
	if target == StatusPaid && ev.AmountTotal != 0 && ev.AmountTotal != o.AmountCents {
		log.Error("paid amount does not match order, left pending",
			zap.Int64("amount_total", ev.AmountTotal),
			zap.Int64("amount_cents", o.AmountCents))
		return OutcomeIgnored, nil
	}

	if err := s.Repo.UpdateStatus(ctx, o.ID, o.Status, target); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			log.Warn("order changed concurrently, event ignored")
			return OutcomeIgnored, nil
		}
		return "", fmt.Errorf("update order %d: %w", id, err)
	}
	o.Status = target

	switch target {
	case StatusPaid:
		s.publishOrderCreated(ctx, o, log)
	case StatusCancelled:
		for _, it := range o.Items {
			s.releaseStep(it, "session expired")(ctx)
		}
	}
	log.Info("order transitioned", zap.String("status", string(target)))
	return OutcomeProcessed, nil
}

// publishOrderCreated logs instead of failing: the order is already PAID
// and a redelivered webhook would be ignored by the state machine.
func (s *Service) publishOrderCreated(ctx context.Context, o Order, log *zap.Logger) {
	ev := OrderCreatedEvent{
		OrderID:     o.ID,
		Email:       o.Email,
		AmountCents: o.AmountCents,
		Items:       o.Items,
		Timestamp:   s.now(),
	}
	if err := s.Publisher.PublishOrderCreated(ctx, ev); err != nil {
		log.Error("publish order_created failed", zap.Error(err))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrReservationRace):
		return "reservation_race"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "error"
	}
}
