package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glowhaus/storefront-backend/api"
	"github.com/glowhaus/storefront-backend/api/controllers"
	"github.com/glowhaus/storefront-backend/api/routes"
	"github.com/glowhaus/storefront-backend/internal/address"
	"github.com/glowhaus/storefront-backend/internal/assistant"
	"github.com/glowhaus/storefront-backend/internal/auth"
	"github.com/glowhaus/storefront-backend/internal/cart"
	"github.com/glowhaus/storefront-backend/internal/catalog"
	"github.com/glowhaus/storefront-backend/internal/checkout"
	"github.com/glowhaus/storefront-backend/internal/locations"
	"github.com/glowhaus/storefront-backend/internal/orders"
	"github.com/glowhaus/storefront-backend/internal/users"
	"github.com/glowhaus/storefront-backend/pkg/auth/session"
	"github.com/glowhaus/storefront-backend/pkg/config"
	"github.com/glowhaus/storefront-backend/pkg/db"
	"github.com/glowhaus/storefront-backend/pkg/logger"
	"github.com/glowhaus/storefront-backend/pkg/metrics"
	"github.com/glowhaus/storefront-backend/pkg/migrate"
	"github.com/glowhaus/storefront-backend/pkg/outbox"
	"github.com/glowhaus/storefront-backend/pkg/redis"
	"github.com/glowhaus/storefront-backend/pkg/square"
	"github.com/glowhaus/storefront-backend/pkg/storage/gcs"
	"github.com/glowhaus/storefront-backend/pkg/telemetry"
)

const serviceName = "storefront-api"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fail := func(msg string, err error) {
		logg.Error(context.Background(), msg, err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, serviceName, logg)
	if err != nil {
		fail("failed to init telemetry", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail("failed to bootstrap database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		fail("failed to run dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		fail("failed to bootstrap redis", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	poolCollector, err := dbClient.Collector("storefront")
	if err != nil {
		fail("failed to read database pool", err)
	}
	registry.MustRegister(poolCollector)
	cartMetrics := metrics.NewCartMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	directory, err := locations.Load()
	if err != nil {
		fail("failed to load location directory", err)
	}

	static, err := catalog.LoadStatic()
	if err != nil {
		fail("failed to load static catalog", err)
	}
	feed, err := newCatalogFeed(ctx, cfg, logg)
	if err != nil {
		fail("failed to build catalog feed", err)
	}
	products, err := catalog.New(catalog.Params{
		Static:   static,
		Feed:     feed,
		Cache:    redisClient,
		CacheTTL: cfg.Catalog.CacheTTL,
		Logger:   logg,
	})
	if err != nil {
		fail("failed to build catalog", err)
	}

	cartRepo, err := newCartRepository(cfg, dbClient, redisClient, logg)
	if err != nil {
		fail("failed to build cart repository", err)
	}
	cartService, err := cart.NewService(cartRepo, products, cartMetrics, logg)
	if err != nil {
		fail("failed to create cart service", err)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	deadLetters := outbox.NewDLQService(dbClient, outboxRepo, outbox.NewDLQRepository(dbClient.DB()), logg)
	addressRepo := address.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	draftStore, err := checkout.NewRedisDraftStore(redisClient, cfg.Checkout.DraftTTL, logg)
	if err != nil {
		fail("failed to build draft store", err)
	}
	checkoutManager, err := checkout.NewManager(checkout.ManagerParams{
		Store:     draftStore,
		Addresses: addressRepo,
		Orders:    ordersRepo,
		Carts:     cartService,
		Directory: directory,
		Logger:    logg,
	})
	if err != nil {
		fail("failed to create checkout manager", err)
	}

	gateway, err := newPaymentGateway(ctx, cfg, logg)
	if err != nil {
		fail("failed to configure payments", err)
	}
	confirmations, err := orders.NewRedisConfirmationStore(redisClient, cfg.Checkout.ConfirmationTTL, logg)
	if err != nil {
		fail("failed to build confirmation store", err)
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:          ordersRepo,
		Tx:            dbClient,
		Drafts:        checkoutManager,
		Carts:         cartService,
		Outbox:        outboxService,
		Gateway:       gateway,
		Confirmations: confirmations,
		Metrics:       checkoutMetrics,
		Currency:      cfg.Checkout.Currency,
		Logger:        logg,
	})
	if err != nil {
		fail("failed to create order service", err)
	}

	script, err := assistant.LoadScript()
	if err != nil {
		fail("failed to load assistant script", err)
	}
	engine, err := assistant.NewEngine(assistant.Params{
		Script:   script,
		Products: products,
		Tracker:  ordersService,
		Bag:      cartService,
		Prefs:    assistant.NewRedisPreferenceStore(redisClient, cfg.Session.TTL),
		Logger:   logg,
	})
	if err != nil {
		fail("failed to create assistant", err)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		fail("failed to create session manager", err)
	}

	authParams := auth.ServiceParams{
		Tx:             dbClient,
		Users:          users.NewRepository(dbClient.DB()),
		Outbox:         outboxService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	}
	if cfg.FeatureFlags.MergeGuestCart {
		authParams.Carts = cartService
	}
	authService, err := auth.NewService(authParams)
	if err != nil {
		fail("failed to create auth service", err)
	}

	addressService, err := address.NewService(addressRepo, dbClient, directory, logg)
	if err != nil {
		fail("failed to create address service", err)
	}

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		Probes: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Redis:     redisClient,
		Sessions:  sessionManager,
		Catalog:   products,
		Carts:     cartService,
		Checkout:  checkoutManager,
		Orders:    ordersService,
		Assistant: engine,
		Auth:      authService,
		Addresses: addressService,
		Outbox:    deadLetters,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"payments": cfg.Payments.Provider,
	})
	logg.Info(logCtx, "starting api server")

	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func newCartRepository(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client, logg *logger.Logger) (cart.Repository, error) {
	if strings.EqualFold(cfg.Checkout.CartBackend, config.CartBackendDB) {
		return cart.NewGormRepository(dbClient.DB()), nil
	}
	return cart.NewRedisRepository(redisClient, cfg.Session.TTL, logg)
}

func newCatalogFeed(ctx context.Context, cfg *config.Config, logg *logger.Logger) (catalog.Feed, error) {
	if !cfg.Catalog.UsesGCS() {
		return catalog.NewXMLSource(cfg.Catalog.XMLURL, telemetry.NewHTTPClient(cfg.Catalog.FetchTimeout)), nil
	}
	client, err := gcs.NewClient(ctx, cfg.Catalog.XMLBucket, cfg.GCP, cfg.Catalog.FetchTimeout, logg)
	if err != nil {
		return nil, err
	}
	return catalog.NewGCSSource(client, cfg.Catalog.XMLObject), nil
}

func newPaymentGateway(ctx context.Context, cfg *config.Config, logg *logger.Logger) (orders.PaymentGateway, error) {
	if !cfg.Payments.UsesSquare() {
		return orders.NewSimulatedGateway(), nil
	}
	client, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, err
	}
	return orders.NewSquareGateway(client)
}
