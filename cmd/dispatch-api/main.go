// README: Entry point; loads config, wires services, starts HTTP server and the retry loop.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/eta"
	httptransport "dispatch/internal/http"
	"dispatch/internal/infra"
	"dispatch/internal/logger"
	"dispatch/internal/maps"
	"dispatch/internal/modules/dispatch"
	"dispatch/internal/modules/order"
	"dispatch/internal/modules/pricing"
	"dispatch/internal/modules/rider"
	"dispatch/internal/modules/settings"
	"dispatch/internal/modules/wallet"
	"dispatch/internal/modules/zone"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog := logger.New("dispatch-api")
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
	defer func() { _ = redisClient.Close() }()

	dispatchStore := dispatch.NewStore(redisClient)

	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, pricingSvc)

	riderStore := rider.NewStore(dbPool)
	riderSvc := rider.NewService(riderStore, dispatchStore, zlog)

	zoneStore := zone.NewStore(dbPool)
	walletStore := wallet.NewStore(dbPool)
	settingsStore := settings.NewStore(dbPool, cfg.Dispatch.CashLimitDefault)

	matcher := dispatch.NewMatcher(riderStore, zoneStore, walletStore, settingsStore, dispatchStore, zlog)

	var estimator eta.Estimator
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			zlog.Warn("maps client init failed, eta falls back to heuristic", zap.Error(err))
		} else {
			estimator = routes
		}
	}
	notifier := eta.NewNotifier(estimator, redisClient, zlog)

	coordinator := dispatch.NewCoordinator(orderStore, matcher, dispatchStore, notifier, cfg.Dispatch, zlog)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:     orderSvc,
		Riders:     riderSvc,
		Wallets:    walletStore,
		Dispatcher: coordinator,
		Candidates: matcher,
		Log:        zlog,
	})
	server := httptransport.NewServer(cfg.HTTP.Addr, router)

	go coordinator.RunRetryLoop(ctx, time.Duration(cfg.Dispatch.RetryTickSeconds)*time.Second)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error("server shutdown", zap.Error(err))
		}
	}()

	zlog.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server", zap.Error(err))
	}
}
