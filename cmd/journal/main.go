package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/config"
	"github.com/ariefcatur/go-shopora-console/internal/journal"
	kafkax "github.com/ariefcatur/go-shopora-console/internal/kafka"
	"github.com/ariefcatur/go-shopora-console/internal/logger"
	"github.com/ariefcatur/go-shopora-console/internal/orders"
	"github.com/ariefcatur/go-shopora-console/internal/postgres"
	"github.com/ariefcatur/go-shopora-console/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(logger.Options{Service: cfg.ServiceName + "-journal", Env: cfg.AppEnv, Level: cfg.LogLevel})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: int32(cfg.JournalWorkers) + 1})
	if err != nil {
		log.Error("db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := &journal.Repo{DB: db}
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("schema", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Service
	svc := &journal.Service{
		Repo:        repo,
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-journal",
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.JournalGroup, orders.Topics, cfg.JournalWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("journal consumer started", "group", cfg.JournalGroup, "topics", orders.Topics, "workers", cfg.JournalWorkers)
		if err := cons.Start(ctx, svc.HandleOrderEvent); err != nil {
			log.Error("consumer exit", "error", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("consumer did not stop in time")
	}
}
