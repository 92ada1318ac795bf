package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	simhttp "github.com/bingaodosamigos/bingao-platform/internal/payment-simulator/http"
	"github.com/bingaodosamigos/bingao-platform/internal/payment-simulator/store"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/config"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/logger"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	simhttp.MustRegisterMetrics(prometheus.DefaultRegisterer)

	sim := simhttp.NewServer(log, store.NewMemory(), cfg.SimulatorPublicURL)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// MUX DE MÉTRICAS (/healthz, /metrics)
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)

	go func() {
		log.Info("payment simulator (public) running",
			zap.String("addr", srv.Addr),
			zap.String("paths", "/checkout/preferences,/v1/payments/{id},/merchant_orders/{id},/simulator/pay"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
