package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sks-store/merchant-api/internal/app"
	"github.com/sks-store/merchant-api/internal/auth"
	"github.com/sks-store/merchant-api/internal/clock"
	"github.com/sks-store/merchant-api/internal/config"
	"github.com/sks-store/merchant-api/internal/metrics"
	"github.com/sks-store/merchant-api/internal/notify"
	"github.com/sks-store/merchant-api/internal/storage/postgres"
	"github.com/sks-store/merchant-api/internal/sweeper"
	transporthttp "github.com/sks-store/merchant-api/internal/transport/http"
	"github.com/sks-store/merchant-api/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		logger.Fatal("CLIENT_ID and CLIENT_SECRET must be set")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	clk := clock.NewSystem()
	m := metrics.New()

	authority := auth.NewAuthority(auth.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, clk)

	var notifier app.SaleNotifier = app.NopNotifier{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
		defer tg.Close()
		notifier = tg
	} else {
		logger.Warn("telegram not configured, sale notifications disabled")
	}

	reservationSvc := app.NewReservationService(postgres.NewReservationRepository(pool), clk)
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), clk, notifier)
	keySvc := app.NewKeyService(postgres.NewKeyRepository(pool), clk)

	sweep := sweeper.New(reservationSvc, authority, logger, m, sweeper.WithInterval(cfg.SweepInterval))
	if err := sweep.Start(); err != nil {
		logger.Fatal("start sweeper", zap.Error(err))
	}
	defer sweep.Stop()

	mux := http.NewServeMux()
	mux.Handle("/oauth/token", transporthttp.HandleToken(authority))
	mux.Handle("/metrics", m.Handler())

	mux.Handle("/healthcheck", transporthttp.BearerAuth(authority, http.HandlerFunc(transporthttp.HealthHandler)))
	mux.Handle("/reservation", transporthttp.BearerAuth(authority, transporthttp.HandleCreateReservation(reservationSvc, m)))
	mux.Handle("/reservation/", transporthttp.BearerAuth(authority, transporthttp.HandleDeleteReservation(reservationSvc)))
	mux.Handle("/order", transporthttp.BearerAuth(authority, transporthttp.HandleCreateOrder(orderSvc, m)))
	mux.Handle("/order/", transporthttp.BearerAuth(authority, transporthttp.HandleOrderInventory(orderSvc)))

	mux.Handle("/admin/keys", transporthttp.AdminKeyAuth(cfg.AdminAPIKey, transporthttp.HandleAdminAddKeys(keySvc)))
	mux.Handle("/admin/keys/status", transporthttp.AdminKeyAuth(cfg.AdminAPIKey, transporthttp.HandleAdminUpdateKeyStatus(keySvc)))
	mux.Handle("/admin/keys/by-product/", transporthttp.AdminKeyAuth(cfg.AdminAPIKey, transporthttp.HandleAdminKeysByProduct(keySvc)))
	mux.Handle("/admin/stats", transporthttp.AdminKeyAuth(cfg.AdminAPIKey, transporthttp.HandleAdminStats(keySvc)))

	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info("merchant api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
