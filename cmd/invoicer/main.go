package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront-checkout/internal/config"
	"github.com/ariefcatur/go-storefront-checkout/internal/invoice"
	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/ariefcatur/go-storefront-checkout/internal/observability"
	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observability.Setup(ctx, observability.Options{
		ServiceName: cfg.ServiceName + "-invoicer",
		LogLevel:    cfg.LogLevel,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		os.Exit(1)
	}
	log := tel.Logger

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis not reachable yet", zap.Error(err))
	}

	svc := &invoice.Service{Store: &invoice.Store{Redis: rdb}, Log: log}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InvoicerGroup, orders.TopicOrderCreated, cfg.InvoicerWorkers, log)

	log.Info("invoice consumer started",
		zap.String("group", cfg.InvoicerGroup),
		zap.String("topic", orders.TopicOrderCreated),
		zap.Int("workers", cfg.InvoicerWorkers))

	code := 0
	if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
		log.Error("consumer exit", zap.Error(err))
		code = 1
	}
	log.Info("invoice consumer stopped")
	_ = tel.Shutdown(context.Background())
	if code != 0 {
		os.Exit(code)
	}
}
