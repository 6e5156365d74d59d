package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-to-cash/internal/app"
	"github.com/ariefcatur/go-order-to-cash/internal/config"
	"github.com/ariefcatur/go-order-to-cash/internal/demo"
	"github.com/ariefcatur/go-order-to-cash/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-to-cash/internal/kafka"
	"github.com/ariefcatur/go-order-to-cash/internal/redisx"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := cfg.Logger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kafka producer, shared by every service
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.With("component", "producer"))
	prodCtx, cancelProd := context.WithCancel(context.Background())
	defer cancelProd()
	prod.Start(prodCtx)

	svc := app.New(app.OptionsFrom(cfg, prod, log))
	if cfg.SeedDemo {
		if err := demo.Seed(ctx, svc.Catalog, svc.Credit); err != nil {
			log.Error("demo seed", "error", err)
			os.Exit(1)
		}
		log.Info("demo data loaded")
	}

	// Redis is a cache; the API keeps serving without it
	api := &httpx.API{Svc: svc, Log: log.With("component", "http")}
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, idempotency keys and status cache disabled", "addr", cfg.RedisAddr, "error", err)
	} else {
		api.Idem = redisx.Idempotency{R: rdb}
		api.Status = redisx.StatusCache{R: rdb}
	}

	router := httpx.NewRouter(log.With("component", "http"))
	api.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return svc.RunSweeper(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	prod.Close()      // stop accepting events, flush the queue
	prod.WaitClosed() // writer closed
	if err != nil {
		log.Error("exit", "error", err)
		os.Exit(1)
	}
}
