package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/payment-simulator/dto"
	"github.com/bingaodosamigos/bingao-platform/internal/payment-simulator/store"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
)

var (
	preferencesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulator_preferences_created_total",
		Help: "Preferências criadas no simulador",
	})
	paymentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_payments_total",
		Help: "Pagamentos simulados por status",
	}, []string{"status"})
	notificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_notifications_total",
		Help: "Avisos enviados para a notification_url",
	}, []string{"result"})
)

// MustRegisterMetrics registra os contadores do simulador
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(preferencesCreated, paymentsCreated, notificationsSent)
}

// Server imita o subconjunto da API do Mercado Pago que a plataforma usa
type Server struct {
	log       *zap.Logger
	mem       *store.Memory
	publicURL string
	client    *http.Client
}

func NewServer(log *zap.Logger, mem *store.Memory, publicURL string) *Server {
	return &Server{
		log:       log,
		mem:       mem,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// API (mesmos caminhos do api.mercadopago.com)
	r.Group(func(r chi.Router) {
		r.Use(requireBearer)
		r.Post("/checkout/preferences", s.createPreference)
		r.Get("/checkout/preferences/{id}", s.getPreference)
		r.Get("/v1/payments/{id}", s.getPayment)
		r.Get("/merchant_orders/{id}", s.getMerchantOrder)
	})

	// página de checkout e gatilho de pagamento
	r.Get("/checkout", s.checkoutPage)
	r.Post("/simulator/pay", s.pay)
	return r
}

func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeAPIError(w, http.StatusUnauthorized, "unauthorized", "invalid access token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createPreference(w http.ResponseWriter, r *http.Request) {
	var req mercadopago.PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if len(req.Items) == 0 {
		writeAPIError(w, http.StatusBadRequest, "bad_request", "items needed")
		return
	}

	p, created := s.mem.CreatePreference(req, r.Header.Get("X-Idempotency-Key"), s.publicURL)
	if created {
		preferencesCreated.Inc()
		s.log.Info("preference created",
			zap.String("preference_id", p.ID),
			zap.String("external_reference", req.ExternalReference),
			zap.String("total", p.Total.StringFixed(2)),
		)
	}
	writeJSON(w, http.StatusCreated, p.Preference)
}

func (s *Server) getPreference(w http.ResponseWriter, r *http.Request) {
	p, err := s.mem.Preference(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "not_found", "preference not found")
		return
	}
	writeJSON(w, http.StatusOK, p.Preference)
}

func (s *Server) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.mem.Payment(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "not_found", "Payment not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getMerchantOrder(w http.ResponseWriter, r *http.Request) {
	mo, err := s.mem.MerchantOrder(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "not_found", "Merchant order not found")
		return
	}
	writeJSON(w, http.StatusOK, mo)
}

// checkoutPage é o destino do init_point: mostra a preferência e como pagá-la
func (s *Server) checkoutPage(w http.ResponseWriter, r *http.Request) {
	p, err := s.mem.Preference(r.URL.Query().Get("pref_id"))
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "not_found", "preference not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preference": p.Preference,
		"items":      p.Request.Items,
		"total":      p.Total.StringFixed(2),
		"pay":        fmt.Sprintf(`POST %s/simulator/pay {"preferenceId":"%s","status":"approved"}`, s.publicURL, p.ID),
	})
}

// pay cria o pagamento e avisa a notification_url da preferência (1 + duplicate vezes)
func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	var req dto.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.Status == "" {
		req.Status = mercadopago.PaymentApproved
	}

	p, mo, err := s.mem.Pay(req.PreferenceID, req.Status)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, "not_found", "preference not found")
		return
	case errors.Is(err, store.ErrInvalidState):
		writeAPIError(w, http.StatusBadRequest, "bad_request", "unsupported status "+req.Status)
		return
	case err != nil:
		writeAPIError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	paymentsCreated.WithLabelValues(p.Status).Inc()

	pref, _ := s.mem.Preference(req.PreferenceID)
	notified := 0
	if pref.Request.NotificationURL != "" {
		for i := 0; i <= req.Duplicate; i++ {
			if err := s.notify(r.Context(), pref.Request.NotificationURL, p, mo, req.Legacy); err != nil {
				notificationsSent.WithLabelValues("error").Inc()
				s.log.Warn("notification failed", zap.String("payment_id", p.ID.String()), zap.Error(err))
				continue
			}
			notificationsSent.WithLabelValues("ok").Inc()
			notified++
		}
	}

	s.log.Info("payment simulated",
		zap.String("payment_id", p.ID.String()),
		zap.String("status", p.Status),
		zap.String("external_reference", p.ExternalReference),
		zap.Int("notified", notified),
	)
	writeJSON(w, http.StatusOK, dto.PayResponse{Payment: p, MerchantOrder: mo.ID, Notified: notified})
}

// notify monta o aviso nos dois formatos aceitos pelo Mercado Pago:
// webhook v1 ({"type":"payment","data":{"id":...}}) ou IPN (?topic=merchant_order&id=...)
func (s *Server) notify(ctx context.Context, target string, p mercadopago.Payment, mo mercadopago.MerchantOrder, legacy bool) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}

	var body any
	q := u.Query()
	if legacy {
		q.Set("topic", "merchant_order")
		q.Set("id", mo.ID.String())
		body = map[string]string{
			"topic":    "merchant_order",
			"resource": s.publicURL + "/merchant_orders/" + mo.ID.String(),
		}
	} else {
		q.Set("type", "payment")
		q.Set("data.id", p.ID.String())
		body = map[string]any{
			"action":       "payment.created",
			"api_version":  "v1",
			"type":         "payment",
			"live_mode":    false,
			"date_created": time.Now().UTC().Format(time.RFC3339),
			"data":         map[string]string{"id": p.ID.String()},
		}
	}
	u.RawQuery = q.Encode()

	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("notification_url answered %d", res.StatusCode)
	}
	return nil
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, dto.APIError{Message: msg, Error: code, Status: status})
}
