package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/bet-stats/consumer"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/cache"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/config"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/kafka"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/logger"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/metrics"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/stats"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// consumer group bet-stats lendo bet_settled
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "bet-stats")
	defer reader.Close()

	var dlq kafka.MessageWriter
	if cfg.TopicBetSettledDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
		defer w.Close()
		dlq = w
	}

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_stats_messages_consumed_total", Help: "mensagens consumidas"})
	recorded := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_stats_bets_recorded_total", Help: "apostas aprovadas contabilizadas"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_stats_skipped_total", Help: "rejeitadas ou reentregas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_stats_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, recorded, skipped, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Stats:      stats.NewStore(rdb),
		DLQ:        dlq,
		Retries:    3,
		Backoff:    300 * time.Millisecond,
		OnConsumed: func() { consumed.Inc() },
		OnRecorded: func() { recorded.Inc() },
		OnSkipped:  func() { skipped.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("bet-stats-worker started", zap.String("consume", cfg.TopicBetSettled), zap.String("dlq", cfg.TopicBetSettledDLQ))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("bet-stats-worker stopped")
}
