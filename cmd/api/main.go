package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/labstore-backend/api/controllers"
	"github.com/angelmondragon/labstore-backend/api/routes"
	"github.com/angelmondragon/labstore-backend/internal/notifications"
	"github.com/angelmondragon/labstore-backend/internal/orders"
	"github.com/angelmondragon/labstore-backend/internal/pricing"
	"github.com/angelmondragon/labstore-backend/internal/quotes"
	"github.com/angelmondragon/labstore-backend/internal/stats"
	"github.com/angelmondragon/labstore-backend/pkg/config"
	"github.com/angelmondragon/labstore-backend/pkg/db"
	"github.com/angelmondragon/labstore-backend/pkg/logger"
	"github.com/angelmondragon/labstore-backend/pkg/metrics"
	"github.com/angelmondragon/labstore-backend/pkg/migrate"
	"github.com/angelmondragon/labstore-backend/pkg/pubsub"
	"github.com/angelmondragon/labstore-backend/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

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
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	readiness := map[string]controllers.Pinger{}
	exit := func(msg string, err error) {
		logg.Error(ctx, msg, err)
		_ = closeAll(closers)
		os.Exit(1)
	}

	repo := orders.NewMemoryRepository()
	if cfg.Store.Persistent() {
		dbClient, err := db.New(ctx, cfg.Store.Driver, cfg.DB, logg)
		if err != nil {
			exit("failed to bootstrap database", err)
		}
		closers = append(closers, dbClient.Close)
		readiness["database"] = dbClient

		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			exit("failed to run migrations", err)
		}
		repo = orders.NewRepository(dbClient.DB(), dbClient)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			exit("failed to bootstrap redis", err)
		}
		closers = append(closers, redisClient.Close)
		readiness["redis"] = redisClient
	}

	var numberer orders.Numberer = orders.PositionalNumberer{Prefix: cfg.Orders.Prefix, Orders: repo}
	if cfg.Orders.Numbering == config.NumberingCounter {
		numberer = orders.NewCounterNumberer(cfg.Orders.Prefix, redisClient, repo)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	commerce := metrics.NewCommerceMetrics(registry)

	sink, publisher, err := buildSink(ctx, cfg, logg, readiness, &closers)
	if err != nil {
		exit("failed to bootstrap notification sink", err)
	}
	dispatcher, err := notifications.NewAsyncDispatcher(sink, notifications.DispatcherOptions{
		QueueSize:      cfg.Notifications.QueueSize,
		Workers:        cfg.Notifications.Workers,
		DeliverTimeout: cfg.Notifications.PublishTimeout,
		Metrics:        commerce,
		Logger:         logg,
	})
	if err != nil {
		exit("failed to create notification dispatcher", err)
	}
	// closers run in reverse, so the queue drains before the publisher flushes
	if publisher != nil {
		closers = append(closers, func() error {
			publisher.Stop()
			return nil
		})
	}
	closers = append(closers, dispatcher.Close)
	dispatcher.Start(context.WithoutCancel(ctx))

	policy := pricing.PolicyFromConfig(cfg.Pricing)
	orderSvc, err := orders.NewService(repo, numberer, orders.Options{
		Policy:         &policy,
		Transitions:    orders.TransitionPolicyFor(cfg.Orders.StrictTransitions),
		NoteMode:       orders.NoteMode(cfg.Orders.NoteMode),
		LeadTimes:      orders.LeadTimesFromConfig(cfg.Orders),
		DefaultCountry: cfg.Orders.DefaultCountry,
		Metrics:        commerce,
		Logger:         logg,
	})
	if err != nil {
		exit("failed to create orders service", err)
	}

	builder, err := quotes.NewBuilder(orderSvc, quotes.Options{
		Policy:       &policy,
		ValidityDays: cfg.Quote.ValidityDays,
		Prefix:       cfg.Quote.Prefix,
		Dispatcher:   dispatcher,
		Metrics:      commerce,
		Logger:       logg,
	})
	if err != nil {
		exit("failed to create quote builder", err)
	}

	statsSvc, err := stats.NewService(orderSvc)
	if err != nil {
		exit("failed to create stats service", err)
	}
	registry.MustRegister(stats.NewCollector(statsSvc, 5*time.Second, logg))

	deps := routes.Dependencies{
		Orders:    orderSvc,
		Quotes:    builder,
		Stats:     statsSvc,
		Policy:    policy,
		Readiness: readiness,
		Gatherer:  registry,
	}
	if redisClient != nil {
		deps.Idempotency = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"store":     cfg.Store.Driver,
		"numbering": cfg.Orders.Numbering,
		"sink":      cfg.Notifications.Sink,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			exit("api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(server.Shutdown(shutdownCtx), closeAll(closers))
	if err != nil {
		logg.Error(logCtx, "shutdown finished with errors", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}

// buildSink picks the quote notification sink. The Pub/Sub client is added
// to the readiness checks and closers.
func buildSink(ctx context.Context, cfg *config.Config, logg *logger.Logger, readiness map[string]controllers.Pinger, closers *[]func() error) (notifications.Sink, *gcppubsub.Publisher, error) {
	if cfg.Notifications.Sink != config.NotifySinkPubSub {
		return notifications.LogSink{Logger: logg}, nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.Notifications, logg)
	if err != nil {
		return nil, nil, err
	}
	*closers = append(*closers, client.Close)
	readiness["pubsub"] = client

	publisher := client.QuotesPublisher()
	sink, err := notifications.NewPubSubSink(publisher)
	if err != nil {
		return nil, nil, err
	}
	return sink, publisher, nil
}

// closeAll releases resources in reverse acquisition order.
func closeAll(closers []func() error) error {
	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i]())
	}
	return err
}
