package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/httpx"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/invoice"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"github.com/ariefcatur/go-storefront-checkout/internal/observability"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/payment"
	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observability.Setup(ctx, observability.Options{
		ServiceName: cfg.ServiceName,
		LogLevel:    cfg.LogLevel,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, tel); err != nil {
		tel.Logger.Error("order api stopped", zap.Error(err))
		_ = tel.Shutdown(context.Background())
		os.Exit(1)
	}
	_ = tel.Shutdown(context.Background())
}

func run(ctx context.Context, cfg config.Config, tel *observability.Telemetry) error {
	log := tel.Logger
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	health := &httpx.HealthHandler{}
	health.Checks = append(health.Checks, httpx.Check{Name: "redis", Probe: func(ctx context.Context) error {
		return redisx.Ping(ctx, rdb)
	}})

	// Orders store
	var repo orders.Repository
	switch cfg.OrdersStore {
	case "memory":
		repo = orders.NewMemoryRepo(orders.DefaultProducts)
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, 16)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		pg := &orders.Repo{DB: db}
		if err := pg.SeedProducts(ctx, orders.DefaultProducts); err != nil {
			return err
		}
		repo = pg
		dbCheck := httpx.Check{Name: "database", Probe: db.Ping}
		health.Checks = append([]httpx.Check{dbCheck}, health.Checks...)
		health.Ready = append(health.Ready, dbCheck)
	default:
		return fmt.Errorf("unknown ORDERS_STORE %q", cfg.OrdersStore)
	}
	repo = &orders.CachedRepo{Repository: repo, Redis: rdb, Metrics: m, Log: log}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log, m)
	// closed explicitly after the HTTP server drains
	prod.Start(context.Background())
	health.Checks = append(health.Checks, httpx.Check{Name: "kafka", Probe: func(ctx context.Context) error {
		return kafkax.Ping(ctx, cfg.KafkaBrokers)
	}})

	inv := inventory.NewClient(cfg.InventoryURL, cfg.InventoryTimeout, tel.Tracer, log)
	health.Checks = append(health.Checks, httpx.Check{Name: "inventory", Probe: inv.Ping})

	var gateway orders.PaymentGateway = payment.Sandbox{BaseURL: siteOrigin(cfg.CheckoutSuccessURL)}
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeAPIURL)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, using sandbox checkout sessions")
	}
	if cfg.StripeWebhookKey == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	svc := &orders.Service{
		Repo:      repo,
		Inventory: inv,
		Payments:  gateway,
		Publisher: &orders.KafkaPublisher{Producer: prod, ServiceName: cfg.ServiceName},
		Claims:    &orders.RedisClaims{Redis: rdb},
		Checkout: orders.CheckoutConfig{
			SuccessURL: cfg.CheckoutSuccessURL,
			CancelURL:  cfg.CheckoutCancelURL,
			Currency:   cfg.CheckoutCurrency,
		},
		Log:     log,
		Tracer:  tel.Tracer,
		Metrics: m,
	}

	router := httpx.NewRouter(log, m, reg, tel.Tracer)
	(&httpx.OrdersHandler{Service: svc, Invoices: &invoice.Store{Redis: rdb}, Log: log}).Register(router)
	(&httpx.WebhookHandler{Verifier: payment.WebhookVerifier{Secret: cfg.StripeWebhookKey}, Events: svc, Log: log}).Register(router)
	health.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		prod.Close()
		prod.WaitClosed()
		return err
	})
	return g.Wait()
}

// siteOrigin reduces a redirect URL to scheme://host for sandbox payment links.
func siteOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
