package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/httpx"
	"github.com/ariefcatur/go-storefront-checkout/internal/inventory"
	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"github.com/ariefcatur/go-storefront-checkout/internal/observability"
	"github.com/ariefcatur/go-storefront-checkout/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
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
		ServiceName: cfg.ServiceName + "-inventory",
		LogLevel:    cfg.LogLevel,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		os.Exit(1)
	}
	log := tel.Logger

	if err := run(ctx, cfg, tel); err != nil {
		log.Error("inventory service stopped", zap.Error(err))
		_ = tel.Shutdown(context.Background())
		os.Exit(1)
	}
	_ = tel.Shutdown(context.Background())
}

func run(ctx context.Context, cfg config.Config, tel *observability.Telemetry) error {
	log := tel.Logger
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	seed := inventory.DefaultSeed(cfg.InventorySeedScale)
	if cfg.InventorySeedFile != "" {
		if seed, err = inventory.LoadSeed(cfg.InventorySeedFile); err != nil {
			return err
		}
	}
	if err := store.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed stock: %w", err)
	}
	log.Info("stock ledger ready", zap.String("store", cfg.InventoryStore), zap.Int("seeded", len(seed)))

	svc := &inventory.Service{Store: store, Log: log, Metrics: m}

	router := httpx.NewRouter(log, m, reg, tel.Tracer)
	(&httpx.InventoryHandler{Service: svc, Log: log}).Register(router)
	health := &httpx.HealthHandler{}
	if db != nil {
		dbCheck := httpx.Check{Name: "database", Probe: db.Ping}
		health.Checks = append(health.Checks, dbCheck)
		health.Ready = append(health.Ready, dbCheck)
	}
	health.Register(router)

	srv := &http.Server{Addr: cfg.InventoryAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("inventory listening", zap.String("addr", cfg.InventoryAddr))
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
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (inventory.Store, *pgxpool.Pool, error) {
	switch cfg.InventoryStore {
	case "memory":
		return inventory.NewMemoryStore(), nil, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, 8)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return &inventory.PostgresStore{DB: db}, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown INVENTORY_STORE %q", cfg.InventoryStore)
	}
}
