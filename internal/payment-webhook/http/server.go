package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/dto"
	"github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/reconcile"
)

const maxBodyBytes = 1 << 20

// Receiver processa um aviso já lido da requisição
type Receiver interface {
	Handle(ctx context.Context, body []byte, query url.Values) reconcile.Outcome
}

var notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_notifications_total",
	Help: "Avisos do Mercado Pago por resultado da conciliação",
}, []string{"outcome"})

// MustRegisterMetrics registra os contadores do payment-webhook
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(notifications)
}

type Server struct {
	log      *zap.Logger
	receiver Receiver
	timeout  time.Duration
}

func NewServer(log *zap.Logger, receiver Receiver, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{log: log, receiver: receiver, timeout: timeout}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverAck)

	// o Mercado Pago usa POST; o IPN legado às vezes chega por GET só com query
	r.Post("/webhooks/mercadopago", s.notification)
	r.Get("/webhooks/mercadopago", s.notification)
	return r
}

// notification sempre responde 200: reentregas não mudam nada e erros ficam no log
func (s *Server) notification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.log.Warn("webhook body read failed", zap.Error(err))
	}

	// o processamento não é interrompido se o provedor fechar a conexão
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
	defer cancel()

	outcome := s.receiver.Handle(ctx, body, r.URL.Query())
	notifications.WithLabelValues(string(outcome)).Inc()

	writeJSON(w, http.StatusOK, dto.Ack{Status: "ok"})
}

// recoverAck troca o 500 do panic por 200: o aviso é descartado e fica no log
func (s *Server) recoverAck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			notifications.WithLabelValues("panic").Inc()
			s.log.Error("webhook handler panic",
				zap.Any("panic", rec),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Stack("stack"),
			)
			writeJSON(w, http.StatusOK, dto.Ack{Status: "ok"})
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
