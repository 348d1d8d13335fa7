package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shopora-console/internal/checkout"
	"github.com/ariefcatur/go-shopora-console/internal/config"
	"github.com/ariefcatur/go-shopora-console/internal/httpx"
	"github.com/ariefcatur/go-shopora-console/internal/journal"
	kafkax "github.com/ariefcatur/go-shopora-console/internal/kafka"
	"github.com/ariefcatur/go-shopora-console/internal/logger"
	"github.com/ariefcatur/go-shopora-console/internal/postgres"
	"github.com/ariefcatur/go-shopora-console/internal/redisx"
	"github.com/ariefcatur/go-shopora-console/internal/session"
	"github.com/ariefcatur/go-shopora-console/internal/shopapi"
	"github.com/ariefcatur/go-shopora-console/internal/storefront"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{Service: cfg.ServiceName, Env: cfg.AppEnv, Level: cfg.LogLevel})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backend
	api, err := shopapi.New(cfg.BackendURL,
		shopapi.WithLogger(log),
		shopapi.WithTimeout(cfg.RequestTimeout),
		shopapi.WithBreaker(uint32(cfg.BreakerTripAfter), cfg.BreakerCooldown),
	)
	if err != nil {
		log.Error("backend client", "error", err)
		os.Exit(1)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Timeline is optional: without Postgres the console still serves everything else.
	var timeline httpx.TimelineReader
	if db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: 4}); err != nil {
		log.Warn("order journal unavailable, timeline disabled", "error", err)
	} else {
		defer db.Close()
		timeline = &journal.Repo{DB: db}
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	// Storefront carts
	shops := storefront.NewRegistry(api, checkout.Options{
		Ledger:   redisx.NewCheckoutLedger(rdb),
		Resolver: api,
		Hold:     cfg.CheckoutSuccessHold,
		Logger:   log,
	}, cfg.ShopIdleTTL)
	go shops.Run(ctx, time.Minute)

	// Router & handlers
	sessions := session.NewStore(rdb)
	router := httpx.NewRouter(cfg.RequestTimeout+5*time.Second, httpx.Sessions(sessions, log))
	(&httpx.SessionHandler{
		Auth:    api,
		Signup:  api,
		Store:   sessions,
		Timeout: cfg.RequestTimeout,
		Log:     log,
	}).Register(router)
	(&httpx.StorefrontHandler{
		Shops:          shops,
		Events:         prod,
		Service:        cfg.ServiceName,
		DefaultStoreID: cfg.StoreID,
		Timeout:        cfg.RequestTimeout,
		Log:            log,
	}).Register(router)
	(&httpx.OrdersHandler{
		API:      func(token string) httpx.OrdersAPI { return api.WithToken(token) },
		Timeline: timeline,
		Events:   prod,
		Service:  cfg.ServiceName,
		Timeout:  cfg.RequestTimeout,
		Log:      log,
	}).Register(router)

	(&httpx.MerchantHandler{
		API:     func(token string) httpx.MerchantAPI { return api.WithToken(token) },
		Timeout: cfg.RequestTimeout,
		Log:     log,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	// handlers may run up to the router timeout; let them finish before the producer closes
	ctx2, cancel2 := context.WithTimeout(context.Background(), cfg.RequestTimeout+10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("shutdown deadline passed", "error", err)
	}
	prod.Close()      // close inbox: flush and close the writer
	cancel()          // stop producer loop and sweeper
	prod.WaitClosed() // drain
}
