package orders

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
)

// Runs against a disposable database: TEST_POSTGRES_DSN=postgres://... go test -p 1 ./...
func newPostgresRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE orders, order_items, products`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	r := &Repo{DB: db}
	if err := r.SeedProducts(ctx, DefaultProducts); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return r
}

func TestPostgresRepoRoundTrip(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	o := Order{
		Email:       "buyer@example.com",
		AmountCents: 7800,
		Status:      StatusPending,
		Items: []Item{
			{ProductID: 1, Quantity: 1, PriceCents: 5900},
			{ProductID: 2, Quantity: 1, PriceCents: 1900},
		},
		ShippingAddress: &Address{Name: "Ada", Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"},
	}
	if err := r.Create(ctx, &o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.SetSessionID(ctx, o.ID, "cs_test_1"); err != nil {
		t.Fatalf("SetSessionID: %v", err)
	}

	got, err := r.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.StripeSessionID == nil || *got.StripeSessionID != "cs_test_1" || len(got.Items) != 2 ||
		got.Items[1].ProductID != 2 || got.ShippingAddress == nil || got.ShippingAddress.City != "Austin" {
		t.Fatalf("order = %+v", got)
	}

	list, err := r.ListByEmail(ctx, "buyer@example.com")
	if err != nil || len(list) != 1 || len(list[0].Items) != 2 {
		t.Fatalf("ListByEmail = %+v, %v", list, err)
	}
	ps, err := r.ListProducts(ctx)
	if err != nil || len(ps) != 3 || ps[0].Name != "Pro Hoodie" {
		t.Fatalf("ListProducts = %+v, %v", ps, err)
	}
	if _, err := r.Get(ctx, o.ID+1000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v", err)
	}
}

func TestPostgresRepoConditionalStatus(t *testing.T) {
	r := newPostgresRepo(t)
	ctx := context.Background()

	o := Order{Email: "buyer@example.com", AmountCents: 900, Status: StatusPending,
		Items: []Item{{ProductID: 3, Quantity: 1, PriceCents: 900}}}
	if err := r.Create(ctx, &o); err != nil {
		t.Fatal(err)
	}

	if err := r.UpdateStatus(ctx, o.ID, StatusPending, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// a completion racing the expiry must not apply
	if err := r.UpdateStatus(ctx, o.ID, StatusPending, StatusPaid); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("stale transition = %v", err)
	}
	if err := r.UpdateStatus(ctx, o.ID+1000, StatusPending, StatusPaid); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing order = %v", err)
	}
	if err := r.SetSessionID(ctx, o.ID+1000, "cs_x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetSessionID missing = %v", err)
	}

	got, _ := r.Get(ctx, o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
}
