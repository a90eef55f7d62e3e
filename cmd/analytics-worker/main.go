package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/glowhaus/storefront-backend/api"
	"github.com/glowhaus/storefront-backend/internal/analytics/router"
	"github.com/glowhaus/storefront-backend/internal/analytics/types"
	"github.com/glowhaus/storefront-backend/internal/analytics/worker"
	"github.com/glowhaus/storefront-backend/internal/analytics/writer"
	"github.com/glowhaus/storefront-backend/pkg/bigquery"
	"github.com/glowhaus/storefront-backend/pkg/config"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/metrics"
	"github.com/glowhaus/storefront-backend/pkg/outbox/idempotency"
	"github.com/glowhaus/storefront-backend/pkg/pubsub"
	"github.com/glowhaus/storefront-backend/pkg/redis"
)

const serviceName = "analytics-worker"

var errNoSubscription = errors.New("analytics subscription is not configured")

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), "analytics.env_file_missing")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "analytics.config_invalid", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceName})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics.worker_failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics.worker_stopped")
}

// run wires Pub/Sub -> router -> BigQuery and blocks until ctx is done.
// Every client opened here is closed on the way out and close failures are
// folded into the returned error.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	rdb, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, rdb.Close()) }()

	ps, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.Requirements{Subscription: true}, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, ps.Close()) }()

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, bigquery.TableSpec{
		Name:           cfg.BigQuery.OrderSalesTable,
		Row:            types.OrderSalesRow{},
		PartitionField: "placed_at",
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, bq.Close()) }()

	sub := ps.AnalyticsSubscription()
	if sub == nil {
		return errNoSubscription
	}
	claims, err := idempotency.NewManager(rdb, cfg.Eventing.ConsumerIdempotencyTTL, cfg.Eventing.ConsumerLease)
	if err != nil {
		return err
	}
	sales, err := writer.New(bq, writer.Config{OrderSalesTable: cfg.BigQuery.OrderSalesTable})
	if err != nil {
		return err
	}
	routes, err := router.NewRouter(sales, logg, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := worker.NewService(sub, routes, claims, metrics.NewWorkerMetrics(reg), logg)
	if err != nil {
		return err
	}

	srv := api.NewServer(":"+cfg.App.Port, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := api.Serve(ctx, srv, logg); err != nil {
			logg.Error(ctx, "analytics.metrics_server_failed", err)
		}
	}()

	logg.Info(ctx, "analytics.worker_ready")
	return svc.Run(ctx)
}
