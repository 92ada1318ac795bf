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

	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/auth"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/checkout"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/drawcache"
	bhttp "github.com/bingaodosamigos/bingao-platform/internal/bet-service/http"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/ratelimit"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/ws"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/cache"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/config"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/db"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/logger"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/metrics"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/stats"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.CheckJWTSecret(); err != nil {
		log.Fatal("jwt secret", zap.String("env", cfg.Env), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
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

	// Redis (cache do sorteio, rate limit, estatísticas e pub/sub do WS)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.MercadoPago.AccessToken == "" {
		log.Warn("MP_ACCESS_TOKEN not set; preference creation will be rejected")
	}

	// deps
	bets := repo.NewBetRepo(pg)
	draws := repo.NewDrawRepo(pg)
	users := repo.NewUserRepo(pg)
	mp := mercadopago.New(cfg.MercadoPago.BaseURL, cfg.MercadoPago.AccessToken)

	initiator := checkout.NewInitiator(log, bets, draws, users, mp, checkout.Options{
		Rules: checkout.Rules{
			NumbersPerSelection: cfg.Game.NumbersPerSelection,
			MaxNumber:           cfg.Game.MaxNumber,
			MaxSelections:       cfg.Game.MaxSelections,
			TicketPrice:         cfg.Game.TicketPrice,
		},
		PublicBaseURL:   cfg.PublicBaseURL,
		NotificationURL: cfg.WebhookPublicURL,
		Sandbox:         cfg.MercadoPago.UseSandbox,
	})

	// WebSocket: só o dono da aposta acompanha o status
	hub := ws.NewHub(log, func(*http.Request) bool { return true }, func(r *http.Request, betID string) bool {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			return false
		}
		b, err := bets.Get(r.Context(), betID)
		return err == nil && b.UserID == userID
	})
	ws.StartRedisSubscriber(ctx, log, rdb, cfg.RedisStatusChannel, hub)

	bhttp.MustRegisterMetrics(prometheus.DefaultRegisterer)

	// HTTP público
	api := bhttp.NewServer(log, bhttp.Deps{
		Initiator: initiator,
		Bets:      bets,
		Draws:     draws,
		Users:     users,
		Cache:     drawcache.New(rdb, cfg.DrawCacheTTL),
		Stats:     stats.NewStore(rdb),
		Limiter:   ratelimit.New(rdb),
		Rate:      bhttp.RateRule{Limit: cfg.CheckoutRateLimit, Window: cfg.CheckoutRateWindow},
		JWTSecret: []byte(cfg.JWTSecret),
		WS:        hub.HandleWS,
	})
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	go func() {
		log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("bet-service shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
