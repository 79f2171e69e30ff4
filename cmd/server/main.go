// Command server runs the licensure service: the application lifecycle state
// machine, the verification ledger, and the audit trail behind one HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	apphandler "licensure/internal/application/handler"
	appmetrics "licensure/internal/application/metrics"
	appservice "licensure/internal/application/service"
	appstore "licensure/internal/application/store/application"
	itemstore "licensure/internal/application/store/item"
	"licensure/internal/application/store/statuscache"
	histhandler "licensure/internal/history/handler"
	histservice "licensure/internal/history/service"
	histstore "licensure/internal/history/store"
	"licensure/internal/jwttoken"
	"licensure/internal/notify"
	"licensure/internal/platform/config"
	"licensure/internal/platform/httpserver"
	"licensure/internal/platform/logger"
	"licensure/internal/platform/middleware"
	"licensure/internal/platform/postgres"
	platformredis "licensure/internal/platform/redis"
	httptransport "licensure/internal/transport/http"
	verifhandler "licensure/internal/verification/handler"
	verifmetrics "licensure/internal/verification/metrics"
	verifservice "licensure/internal/verification/service"
)

func main() {
	log := logger.New()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	health := map[string]httptransport.HealthChecker{}

	// Stores: postgres when configured, in-memory otherwise.
	var (
		applications appservice.ApplicationStore
		items        interface {
			appservice.ItemStore
			verifservice.ItemStore
		}
		history interface {
			appservice.HistoryStore
			histservice.Store
		}
		storeTx appservice.StoreTx
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.ApplySchema(ctx, db); err != nil {
			return err
		}
		health["postgres"] = db.PingContext

		applications = appstore.NewPostgres(db)
		items = itemstore.NewPostgres(db)
		history = histstore.NewPostgres(db)
		storeTx = appservice.NewPostgresTx(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		applications = appstore.NewInMemory()
		items = itemstore.NewInMemory()
		history = histstore.NewInMemory()
		storeTx = appservice.NewShardedTx()
	}

	// Notifications: Kafka when brokers are configured, log sink otherwise.
	// Either way delivery runs on a worker, off the request path.
	var sink notify.Dispatcher = notify.NewLogDispatcher(log)
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := notify.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = publisher.Close(context.Background())
		}()
		sink = publisher
	}
	dispatcher := notify.NewChannelDispatcher(256, log)
	worker := notify.NewWorker(sink, dispatcher.Inbox())

	appOpts := []appservice.Option{
		appservice.WithLogger(log),
		appservice.WithMetrics(appmetrics.New()),
		appservice.WithDispatcher(dispatcher),
		appservice.WithTx(storeTx),
	}
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		health["redis"] = redisClient.Health
		appOpts = append(appOpts, appservice.WithStatusCache(statuscache.New(redisClient.Client, log)))
	}

	applicationService := appservice.New(applications, items, history, appOpts...)
	verificationService := verifservice.New(items, history, storeTx,
		verifservice.WithLogger(log),
		verifservice.WithMetrics(verifmetrics.New()),
	)
	historyService := histservice.New(history, applications)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "licensure", "licensure-api")
	router := httptransport.NewRouter(
		log,
		middleware.RequireAuth(jwtService, log),
		health,
		apphandler.New(applicationService, log),
		verifhandler.New(verificationService, log),
		histhandler.New(historyService, log),
	)

	server := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := worker.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
