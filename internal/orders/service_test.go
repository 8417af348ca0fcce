package orders

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// ledger adapts the in-process inventory service to the Inventory contract.
type ledger struct {
	svc           *inventory.Service
	beforeReserve func(productID int64)
	down          bool
	// lostReply applies the reserve for this product and then reports a
	// transport failure, like a client timeout after the server committed.
	lostReply int64
}

var errLedgerDown = errors.New("inventory unreachable")

func (l *ledger) GetStock(ctx context.Context, id int64) (int64, error) {
	if l.down {
		return 0, errLedgerDown
	}
	lvl, err := l.svc.GetStock(ctx, id)
	return lvl.Available, err
}

func (l *ledger) ReserveStock(ctx context.Context, id, qty int64) (bool, error) {
	if l.beforeReserve != nil {
		l.beforeReserve(id)
	}
	ok, err := l.svc.ReserveStock(ctx, id, qty)
	if err == nil && id == l.lostReply {
		return false, errLedgerDown
	}
	return ok, err
}

func (l *ledger) ReleaseStock(ctx context.Context, id, qty int64) (bool, error) {
	return l.svc.ReleaseStock(ctx, id, qty)
}

type fakeGateway struct {
	mu   sync.Mutex
	reqs []payment.SessionRequest
	err  error
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return payment.Session{}, g.err
	}
	return payment.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []OrderCreatedEvent
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, ev OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type harness struct {
	svc     *Service
	store   *inventory.MemoryStore
	ledger  *ledger
	gateway *fakeGateway
	pub     *fakePublisher
	repo    *MemoryRepo
	redis   *miniredis.Miniredis
}

func newHarness(t *testing.T, stock ...inventory.StockRecord) *harness {
	t.Helper()
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())

	store := inventory.NewMemoryStore()
	if err := store.Seed(ctx, stock); err != nil {
		t.Fatal(err)
	}
	l := &ledger{svc: &inventory.Service{Store: store, Log: zap.NewNop(), Metrics: m}}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:   store,
		ledger:  l,
		gateway: &fakeGateway{},
		pub:     &fakePublisher{},
		repo:    NewMemoryRepo(DefaultProducts),
		redis:   mr,
	}
	h.svc = &Service{
		Repo:      h.repo,
		Inventory: l,
		Payments:  h.gateway,
		Publisher: h.pub,
		Claims:    &RedisClaims{Redis: rdb},
		Checkout: CheckoutConfig{
			SuccessURL: "http://localhost:3000/checkout?success=1",
			CancelURL:  "http://localhost:3000/checkout?canceled=1",
			Currency:   "usd",
		},
		Log:     zap.NewNop(),
		Tracer:  noop.NewTracerProvider().Tracer("test"),
		Metrics: m,
		Now:     func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) stock(t *testing.T, id int64) inventory.StockRecord {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("stock %d: %v", id, err)
	}
	return rec
}

func hoodieAndMug() CreateRequest {
	return CreateRequest{
		Email: "buyer@example.com",
		Items: []Item{
			{ProductID: 1, Quantity: 1, PriceCents: 5900},
			{ProductID: 2, Quantity: 1, PriceCents: 1900},
		},
	}
}

func TestCreateHappyPath(t *testing.T) {
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 5}, inventory.StockRecord{ProductID: 2, Total: 5})

	out, err := h.svc.Create(context.Background(), hoodieAndMug())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	o := out.Order
	if o.AmountCents != 7800 || o.Status != StatusPending || o.StripeSessionID == nil || *o.StripeSessionID != "cs_test_1" {
		t.Fatalf("order = %+v", o)
	}
	if out.CheckoutURL != "https://checkout.example/cs_test_1" {
		t.Fatalf("CheckoutURL = %q", out.CheckoutURL)
	}
	if h.stock(t, 1).Reserved != 1 || h.stock(t, 2).Reserved != 1 {
		t.Fatal("items not reserved")
	}

	stored, _ := h.repo.Get(context.Background(), o.ID)
	if stored.StripeSessionID == nil || stored.Status != StatusPending {
		t.Fatalf("stored = %+v", stored)
	}

	req := h.gateway.reqs[0]
	if req.OrderID != o.ID || req.Currency != "usd" || len(req.LineItems) != 2 {
		t.Fatalf("session request = %+v", req)
	}
	if req.LineItems[0].Name != "Pro Hoodie" || req.LineItems[0].UnitAmount != 5900 {
		t.Fatalf("line item = %+v", req.LineItems[0])
	}
}

func TestCreateInsufficientStockReservesNothing(t *testing.T) {
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 1})

	_, err := h.svc.Create(context.Background(), CreateRequest{
		Email: "buyer@example.com",
		Items: []Item{{ProductID: 1, Quantity: 2, PriceCents: 5900}},
	})
	var se *StockError
	if !errors.Is(err, ErrInsufficientStock) || !errors.As(err, &se) || se.Available != 1 {
		t.Fatalf("err = %v", err)
	}
	if h.stock(t, 1).Reserved != 0 {
		t.Fatal("stock reserved despite shortage")
	}
	if len(h.gateway.reqs) != 0 {
		t.Fatal("payment session created")
	}
}

func TestCreateReservationRaceReleasesEarlierItems(t *testing.T) {
	h := newHarness(t,
		inventory.StockRecord{ProductID: 1, Total: 2},
		inventory.StockRecord{ProductID: 2, Total: 1},
		inventory.StockRecord{ProductID: 3, Total: 4},
	)
	// another buyer takes the last mug between the check and the reserve
	h.ledger.beforeReserve = func(id int64) {
		if id == 2 {
			_ = h.store.Reserve(context.Background(), 2, 1)
		}
	}

	req := hoodieAndMug()
	req.Items = append([]Item{{ProductID: 3, Quantity: 2, PriceCents: 900}}, req.Items...)
	_, err := h.svc.Create(context.Background(), req)
	if !errors.Is(err, ErrReservationRace) {
		t.Fatalf("err = %v", err)
	}
	if h.stock(t, 1).Reserved != 0 || h.stock(t, 3).Reserved != 0 {
		t.Fatal("earlier reservations were not compensated")
	}
	if h.stock(t, 2).Reserved != 1 {
		t.Fatal("the competing reservation must stay")
	}
	if orders, _ := h.repo.ListByEmail(context.Background(), "buyer@example.com"); len(orders) != 0 {
		t.Fatalf("order persisted: %+v", orders)
	}
}

func TestCreateGatewayFailureCancelsAndReleases(t *testing.T) {
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 5}, inventory.StockRecord{ProductID: 2, Total: 5})
	h.gateway.err = errors.New("stripe: 503")

	_, err := h.svc.Create(context.Background(), hoodieAndMug())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if h.stock(t, 1).Reserved != 0 || h.stock(t, 2).Reserved != 0 {
		t.Fatal("stock not released")
	}
	orders, _ := h.repo.ListByEmail(context.Background(), "buyer@example.com")
	if len(orders) != 1 || orders[0].Status != StatusCancelled {
		t.Fatalf("orders = %+v", orders)
	}
}

func TestCreateInventoryDown(t *testing.T) {
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 5})
	h.ledger.down = true

	_, err := h.svc.Create(context.Background(), CreateRequest{
		Email: "buyer@example.com",
		Items: []Item{{ProductID: 1, Quantity: 1, PriceCents: 5900}},
	})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateReserveLostReplyKeepsUnknownItem(t *testing.T) {
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 5}, inventory.StockRecord{ProductID: 2, Total: 5})
	h.ledger.lostReply = 2
	core, logs := observer.New(zapcore.ErrorLevel)
	h.svc.Log = zap.New(core)

	_, err := h.svc.Create(context.Background(), hoodieAndMug())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if h.stock(t, 1).Reserved != 0 {
		t.Fatal("earlier item not released")
	}
	// never released blindly, the outcome of that call is unknown
	if h.stock(t, 2).Reserved != 1 {
		t.Fatalf("product 2 = %+v", h.stock(t, 2))
	}
	entries := logs.FilterMessage("reservation outcome unknown, units may stay reserved").All()
	if len(entries) != 1 || entries[0].ContextMap()["product_id"] != int64(2) {
		t.Fatalf("logs = %+v", logs.All())
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), CreateRequest{Email: "nope"})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 2 {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateRejectsOverflowingAmount(t *testing.T) {
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 10})

	_, err := h.svc.Create(context.Background(), CreateRequest{
		Email: "buyer@example.com",
		Items: []Item{{ProductID: 1, Quantity: 2, PriceCents: math.MaxInt64/2 + 1}},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 1 || ve.Problems[0] != "item 0: amount overflows" {
		t.Fatalf("err = %v", err)
	}
	if h.stock(t, 1).Reserved != 0 {
		t.Fatal("stock reserved for an invalid order")
	}
	if orders, _ := h.repo.ListByEmail(context.Background(), "buyer@example.com"); len(orders) != 0 {
		t.Fatalf("order persisted: %+v", orders)
	}
}

func checkoutFixture(t *testing.T) (*harness, Order) {
	t.Helper()
	h := newHarness(t, inventory.StockRecord{ProductID: 1, Total: 5}, inventory.StockRecord{ProductID: 2, Total: 5})
	out, err := h.svc.Create(context.Background(), hoodieAndMug())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return h, out.Order
}

func event(id, typ string, o Order) payment.Event {
	return payment.Event{ID: id, Type: typ, OrderID: strconv.FormatInt(o.ID, 10), AmountTotal: o.AmountCents}
}

func TestCompletedWebhookMarksPaidAndPublishes(t *testing.T) {
	h, o := checkoutFixture(t)

	outcome, err := h.svc.HandlePaymentEvent(context.Background(), event("evt_1", payment.EventCheckoutCompleted, o))
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("HandlePaymentEvent = %v, %v", outcome, err)
	}
	got, _ := h.repo.Get(context.Background(), o.ID)
	if got.Status != StatusPaid {
		t.Fatalf("status = %s", got.Status)
	}
	if len(h.pub.events) != 1 {
		t.Fatalf("published = %d", len(h.pub.events))
	}
	ev := h.pub.events[0]
	if ev.OrderID != o.ID || ev.Email != "buyer@example.com" || ev.AmountCents != 7800 || len(ev.Items) != 2 {
		t.Fatalf("event = %+v", ev)
	}
	// paid orders keep their reservation
	if h.stock(t, 1).Reserved != 1 {
		t.Fatal("reservation released on payment")
	}
}

func TestExpiredWebhookReleasesAndCancels(t *testing.T) {
	h, o := checkoutFixture(t)

	outcome, err := h.svc.HandlePaymentEvent(context.Background(), event("evt_2", payment.EventCheckoutExpired, o))
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("HandlePaymentEvent = %v, %v", outcome, err)
	}
	got, _ := h.repo.Get(context.Background(), o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if r := h.stock(t, 1); r.Reserved != 0 || r.Available() != 5 {
		t.Fatalf("product 1 = %+v", r)
	}
	if r := h.stock(t, 2); r.Reserved != 0 || r.Available() != 5 {
		t.Fatalf("product 2 = %+v", r)
	}
}

func TestCompletedAfterCancelDoesNotResurrect(t *testing.T) {
	h, o := checkoutFixture(t)
	ctx := context.Background()

	if _, err := h.svc.HandlePaymentEvent(ctx, event("evt_exp", payment.EventCheckoutExpired, o)); err != nil {
		t.Fatal(err)
	}
	outcome, err := h.svc.HandlePaymentEvent(ctx, event("evt_late", payment.EventCheckoutCompleted, o))
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("HandlePaymentEvent = %v, %v", outcome, err)
	}
	got, _ := h.repo.Get(ctx, o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if len(h.pub.events) != 0 {
		t.Fatal("order_created published for a cancelled order")
	}
}

func TestDuplicateDeliveryAppliesOnce(t *testing.T) {
	h, o := checkoutFixture(t)
	ctx := context.Background()
	ev := event("evt_dup", payment.EventCheckoutExpired, o)

	if outcome, _ := h.svc.HandlePaymentEvent(ctx, ev); outcome != OutcomeProcessed {
		t.Fatalf("first = %v", outcome)
	}
	// restock so a second release would be visible
	_ = h.store.SetTotal(ctx, 1, 5)
	_ = h.store.Reserve(ctx, 1, 1)

	outcome, err := h.svc.HandlePaymentEvent(ctx, ev)
	if err != nil || outcome != OutcomeDuplicate {
		t.Fatalf("second = %v, %v", outcome, err)
	}
	if h.stock(t, 1).Reserved != 1 {
		t.Fatal("duplicate delivery released stock again")
	}
}

func TestAmountMismatchLeavesPending(t *testing.T) {
	h, o := checkoutFixture(t)
	ev := event("evt_amt", payment.EventCheckoutCompleted, o)
	ev.AmountTotal = 100

	outcome, err := h.svc.HandlePaymentEvent(context.Background(), ev)
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("HandlePaymentEvent = %v, %v", outcome, err)
	}
	got, _ := h.repo.Get(context.Background(), o.ID)
	if got.Status != StatusPending || len(h.pub.events) != 0 {
		t.Fatalf("status = %s, published = %d", got.Status, len(h.pub.events))
	}
}

func TestWebhookIgnoresUnknownOrdersAndTypes(t *testing.T) {
	h, o := checkoutFixture(t)
	ctx := context.Background()

	cases := []payment.Event{
		{ID: "evt_a", Type: payment.EventCheckoutCompleted, OrderID: "999"},
		{ID: "evt_b", Type: payment.EventCheckoutCompleted, OrderID: "abc"},
		{ID: "evt_c", Type: payment.EventCheckoutExpired},
		{ID: "evt_d", Type: "invoice.paid", OrderID: strconv.FormatInt(o.ID, 10)},
	}
	for _, ev := range cases {
		outcome, err := h.svc.HandlePaymentEvent(ctx, ev)
		if err != nil || outcome != OutcomeIgnored {
			t.Fatalf("%s: %v, %v", ev.ID, outcome, err)
		}
	}
	if _, err := h.svc.HandlePaymentEvent(ctx, payment.Event{Type: payment.EventCheckoutExpired}); !errors.Is(err, ErrValidation) {
		t.Fatalf("event without id = %v", err)
	}
}

type failingRepo struct {
	*MemoryRepo
	fail bool
}

func (r *failingRepo) Get(ctx context.Context, id int64) (Order, error) {
	if r.fail {
		return Order{}, errors.New("db down")
	}
	return r.MemoryRepo.Get(ctx, id)
}

func TestFailedDeliveryCanBeRetried(t *testing.T) {
	h, o := checkoutFixture(t)
	repo := &failingRepo{MemoryRepo: h.repo, fail: true}
	h.svc.Repo = repo
	ev := event("evt_retry", payment.EventCheckoutCompleted, o)

	if _, err := h.svc.HandlePaymentEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error while the store is down")
	}
	repo.fail = false
	outcome, err := h.svc.HandlePaymentEvent(context.Background(), ev)
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("retry = %v, %v", outcome, err)
	}
}

func TestListByEmailRequiresEmail(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.ListByEmail(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}
