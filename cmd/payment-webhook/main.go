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

	whttp "github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/http"
	"github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/notify"
	"github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/reconcile"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/cache"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/config"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/db"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/kafka"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/logger"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/metrics"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
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

	// Postgres: única fonte de verdade do status das apostas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	if cfg.AutoMigrate {
		if err := db.RunMigrations(pg); err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
	}

	// Redis: pub/sub de status para o WebSocket do bet-service
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka producer: bet_settled para o bet-stats-worker
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer writer.Close()

	mp := mercadopago.New(cfg.MercadoPago.BaseURL, cfg.MercadoPago.AccessToken)
	publisher := notify.NewPublisher(writer, rdb, cfg.RedisStatusChannel)
	receiver := reconcile.NewReceiver(log, mp, repo.NewBetRepo(pg), publisher)

	whttp.MustRegisterMetrics(prometheus.DefaultRegisterer)

	api := whttp.NewServer(log, receiver, 15*time.Second)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	go func() {
		log.Info("payment-webhook listening",
			zap.String("addr", apiSrv.Addr),
			zap.String("publish", cfg.TopicBetSettled),
			zap.String("channel", cfg.RedisStatusChannel),
		)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("payment-webhook shutting down")

	// aguarda avisos em andamento terminarem a transição
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
