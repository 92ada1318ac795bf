package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/config"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/logger"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// routes monta o roteamento por prefixo para cada serviço
func routes(betURL, webhookURL string) (http.Handler, error) {
	bet, err := rp(betURL)
	if err != nil {
		return nil, err
	}
	webhook, err := rp(webhookURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// bets (ex.: /api/bets/checkout -> bet-service /checkout)
	mux.Handle("/api/bets/", http.StripPrefix("/api/bets", bet))

	// webhooks (ex.: /api/webhooks/mercadopago -> payment-webhook /webhooks/mercadopago)
	mux.Handle("/api/webhooks/", http.StripPrefix("/api", webhook))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return withCORS(mux), nil
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	h, err := routes(cfg.BetServiceURL, cfg.WebhookServiceURL)
	if err != nil {
		log.Fatal("gateway targets", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("bets", cfg.BetServiceURL),
		zap.String("webhooks", cfg.WebhookServiceURL),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
