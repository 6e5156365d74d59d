package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-order-to-cash/internal/config"
	"github.com/ariefcatur/go-order-to-cash/internal/events"
	kafkax "github.com/ariefcatur/go-order-to-cash/internal/kafka"
	"github.com/ariefcatur/go-order-to-cash/internal/postgres"
	"github.com/ariefcatur/go-order-to-cash/internal/projector"
	"github.com/ariefcatur/go-order-to-cash/internal/redisx"
)

func main() {
	cfg := config.Load()
	log := cfg.Logger(os.Stdout).With("component", "projector")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, log); err != nil {
		log.Error("db migrate", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Journal: &postgres.Journal{DB: db},
		Dedup:   redisx.Dedup{R: rdb, Service: cfg.ProjectorGroup},
		Log:     log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, events.AllTopics, cfg.ProjectorWorkers, log)
	log.Info("projector consumer started", "group", cfg.ProjectorGroup, "topics", events.AllTopics, "workers", cfg.ProjectorWorkers)
	if err := cons.Start(ctx, svc.HandleMessage); err != nil {
		log.Error("consumer exit", "error", err)
		os.Exit(1)
	}
	log.Info("projector stopped")
}
