package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"LedgerApi/internal/config"
	"LedgerApi/internal/handler"
	"LedgerApi/internal/notifier"
	"LedgerApi/internal/rabbitmq"
	"LedgerApi/internal/repository"
	"LedgerApi/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := cfg.NewLogger(os.Stdout)

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	// Optional Redis replay cache
	ledgerOpts := []service.Option{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, replay cache will fail open")
		} else {
			logger.Info().Msg("connected to redis")
		}
		ledgerOpts = append(ledgerOpts, service.WithReplayCache(repository.NewRedisReplayCache(redisClient, cfg.ReplayCacheTTL)))
	}

	// Optional RabbitMQ event sink
	notifierOpts := []notifier.Option{
		notifier.WithTimeout(cfg.WebhookTimeout),
		notifier.WithMaxParallel(cfg.WebhookMaxParallel),
	}
	if cfg.AMQPURL != "" {
		conn, err := amqp.DialConfig(cfg.AMQPURL, amqp.Config{
			Properties: amqp.Table{"connection_name": "ledger-api"},
		})
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unreachable, events will not be published")
		} else {
			defer conn.Close()
			ch, err := conn.Channel()
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to open rabbitmq channel")
			}
			defer ch.Close()

			publisher, err := rabbitmq.NewPublisher(ch, cfg.AMQPExchange, logger)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to set up rabbitmq publisher")
			}
			notifierOpts = append(notifierOpts, notifier.WithEventSink(publisher))
			logger.Info().Str("exchange", cfg.AMQPExchange).Msg("connected to rabbitmq")
		}
	}

	// Webhook delivery runs on its own workers, off the request path
	dispatcher := notifier.NewDispatcher(
		notifier.New(store, logger, notifierOpts...),
		cfg.WebhookWorkers,
		cfg.WebhookQueueSize,
		logger,
	)
	ledgerOpts = append(ledgerOpts, service.WithNotifier(dispatcher))

	router := handler.NewRouter(handler.RouterConfig{
		Accounts:       service.NewAccountService(store, logger),
		Ledger:         service.NewLedgerService(store, logger, ledgerOpts...),
		Webhooks:       service.NewWebhookService(store, logger),
		Store:          store,
		AdminToken:     cfg.AdminToken,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// Deliver what is already queued before the store goes away.
	dispatcher.Shutdown()
	logger.Info().Msg("server exiting")
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Repository, func()) {
	if cfg.Store == config.StoreMemory {
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		return repository.NewMemoryRepository(), func() {}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Fatal().Err(err).Msg("database ping failed")
	}

	if err := repository.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	return repository.NewPostgresRepository(db), func() { db.Close() }
}
