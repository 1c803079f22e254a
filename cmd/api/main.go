// Package main provides the entry point for the logtower API server.
package main

import (
	"context"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/logtower/logtower/internal/api"
	"github.com/logtower/logtower/internal/auth"
	"github.com/logtower/logtower/internal/broker"
	"github.com/logtower/logtower/internal/buffer"
	"github.com/logtower/logtower/internal/ingest"
	"github.com/logtower/logtower/internal/shutdown"
	"github.com/logtower/logtower/internal/store"
	"github.com/logtower/logtower/internal/store/memory"
	pgstore "github.com/logtower/logtower/internal/store/postgres"
	"github.com/logtower/logtower/pkg/config"
	"github.com/logtower/logtower/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogJSON)

	// Initialize ticket storage. Postgres when DATABASE_URL is set,
	// in-memory otherwise.
	var tickets store.TicketStore
	if cfg.DatabaseDSN != "" {
		storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
		pg, err := pgstore.NewTicketStore(storeCfg, log.Logger)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		tickets = pg
		log.Info("using postgres ticket store")
	} else {
		tickets = memory.NewTicketStore(log.Logger)
		log.Info("using in-memory ticket store")
	}

	// Initialize the log pipeline: ring buffer, broker, ingestion.
	ring := buffer.New(cfg.BufferCapacity)
	b := broker.New(cfg.SubscriberQueue, log.Logger)
	pipeline := ingest.NewPipeline(ring, b, log.Logger)

	// Initialize auth service when a secret is configured. Without a
	// secret the API runs open, matching local development setups.
	var authService *auth.Service
	if cfg.AuthSecret != "" {
		authService = auth.NewService(&auth.Config{
			Secret:      []byte(cfg.AuthSecret),
			TokenExpiry: cfg.AuthExpiry,
		}, log.Logger)
		log.Info("authentication enabled")
	} else {
		log.Warn("AUTH_SECRET not set, running without authentication")
	}

	server := api.NewServer(cfg, pipeline, b, tickets, authService, log.Logger)

	// Setup graceful shutdown. Components are shut down in reverse
	// registration order, so the store closes after the server drains.
	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("ticket-store", tickets))
	coordinator.Register(shutdown.NewCloserComponent("broker", b))
	coordinator.Register(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Kafka ingestion source.
	if len(cfg.Kafka.Brokers) > 0 {
		source, err := ingest.NewKafkaSource(ingest.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, pipeline, log.Logger)
		if err != nil {
			log.Error("failed to create kafka source", "error", err)
			os.Exit(1)
		}
		coordinator.Register(source)

		go func() {
			if err := source.Run(ctx); err != nil {
				log.Error("kafka source error", "error", err)
			}
		}()
		log.Info("kafka ingestion enabled",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
	}

	go func() {
		coordinator.WaitForSignal()
		cancel()
	}()

	log.Info("starting API server",
		"addr", cfg.Addr(),
		"buffer_capacity", cfg.BufferCapacity,
		"subscriber_queue", cfg.SubscriberQueue,
	)

	if err := server.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	coordinator.Wait()
	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
