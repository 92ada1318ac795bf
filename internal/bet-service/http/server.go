package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/auth"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/checkout"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/dto"
	"github.com/bingaodosamigos/bingao-platform/internal/bet-service/ranking"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/stats"
)

const maxBodyBytes = 64 << 10

type Initiator interface {
	Initiate(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type BetReader interface {
	Get(ctx context.Context, betID string) (repo.Bet, error)
	ListByUser(ctx context.Context, userID string) ([]repo.Bet, error)
	ListApproved(ctx context.Context) ([]repo.Bet, error)
}

type DrawReader interface {
	Current(ctx context.Context) (repo.Draw, error)
	List(ctx context.Context, limit int) ([]repo.Draw, error)
}

type DrawCache interface {
	GetCurrent(ctx context.Context) (repo.Draw, bool, error)
	SetCurrent(ctx context.Context, d repo.Draw) error
}

type UserNames interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

type NumberStats interface {
	Top(ctx context.Context, n int) ([]stats.NumberCount, error)
	ApprovedBets(ctx context.Context) (int64, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error)
}

// RateRule limita quantos checkouts um usuário abre por janela
type RateRule struct {
	Limit  int
	Window time.Duration
}

// Deps agrupa as dependências do Server; Limiter, Cache, Stats e WS são opcionais
type Deps struct {
	Initiator Initiator
	Bets      BetReader
	Draws     DrawReader
	Users     UserNames
	Cache     DrawCache
	Stats     NumberStats
	Limiter   RateLimiter
	Rate      RateRule
	JWTSecret []byte
	WS        http.HandlerFunc
}

var checkoutRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "checkout_requests_total",
	Help: "Checkouts recebidos por resultado",
}, []string{"result"})

// MustRegisterMetrics registra os contadores do bet-service
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(checkoutRequests)
}

type Server struct {
	log *zap.Logger
	d   Deps
}

func NewServer(log *zap.Logger, d Deps) *Server {
	return &Server{log: log, d: d}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// públicos
	r.Get("/draws/latest", s.latestDraw)
	r.Get("/draws", s.listDraws)
	r.Get("/ranking", s.ranking)
	r.Get("/numbers/favorites", s.favoriteNumbers)

	// autenticados (Bearer JWT)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.d.JWTSecret))
		r.With(s.rateLimit("checkout")).Post("/checkout", s.checkout)
		r.Get("/bets", s.listBets)
		r.Get("/bets/{id}", s.getBet)
		if s.d.WS != nil {
			r.Get("/ws", s.d.WS)
		}
	})
	return r
}

func (s *Server) rateLimit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := auth.UserID(r.Context())
			if s.d.Limiter == nil || s.d.Rate.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := s.d.Limiter.Allow(r.Context(), userID, action, s.d.Rate.Limit, s.d.Rate.Window)
			if err != nil {
				// Redis fora não derruba o checkout
				s.log.Warn("rate limit check failed", zap.Error(err))
			} else if !ok {
				checkoutRequests.WithLabelValues("rate_limited").Inc()
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkout: POST /checkout -> cria aposta pending + preferência no Mercado Pago
func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		checkoutRequests.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	userID, _ := auth.UserID(r.Context())
	if req.BuyerID != userID {
		checkoutRequests.WithLabelValues("forbidden").Inc()
		writeError(w, http.StatusForbidden, "buyerId does not match authenticated user")
		return
	}

	res, err := s.d.Initiator.Initiate(r.Context(), checkout.Request{
		BuyerID:    req.BuyerID,
		Amount:     req.Amount,
		Selections: req.Selections,
	})

	var vErr *checkout.ValidationError
	switch {
	case errors.As(err, &vErr):
		checkoutRequests.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, vErr.Msg)
		return
	case err != nil:
		checkoutRequests.WithLabelValues("upstream_error").Inc()
		s.log.Error("checkout failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not start payment")
		return
	}

	checkoutRequests.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, dto.CheckoutResponse{
		BetID:       res.BetID,
		SessionID:   res.SessionID,
		RedirectURL: res.RedirectURL,
	})
}

// listBets: GET /bets -> apostas do usuário logado
func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	bets, err := s.d.Bets.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error("list bets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list bets")
		return
	}

	out := dto.BetsResponse{Bets: make([]dto.BetResponse, 0, len(bets))}
	for _, b := range bets {
		out.Bets = append(out.Bets, dto.NewBetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// getBet: GET /bets/{id} -> status de uma aposta do próprio usuário
func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	b, err := s.d.Bets.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && b.UserID != userID) {
		writeError(w, http.StatusNotFound, "bet not found")
		return
	}
	if err != nil {
		s.log.Error("get bet", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load bet")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBetResponse(b))
}

// latestDraw retorna o sorteio atual, preferencialmente do cache
func (s *Server) latestDraw(w http.ResponseWriter, r *http.Request) {
	if s.d.Cache != nil {
		if d, ok, _ := s.d.Cache.GetCurrent(r.Context()); ok {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}

	d, err := s.d.Draws.Current(r.Context())
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no draw yet")
		return
	}
	if err != nil {
		s.log.Error("current draw", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load draw")
		return
	}

	if s.d.Cache != nil {
		if err := s.d.Cache.SetCurrent(r.Context(), d); err != nil {
			s.log.Debug("draw cache set", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) listDraws(w http.ResponseWriter, r *http.Request) {
	draws, err := s.d.Draws.List(r.Context(), 0)
	if err != nil {
		s.log.Error("list draws", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list draws")
		return
	}
	writeJSON(w, http.StatusOK, dto.DrawsResponse{Draws: draws})
}

// ranking: maior número de acertos por usuário entre as apostas pagas
func (s *Server) ranking(w http.ResponseWriter, r *http.Request) {
	draws, err := s.d.Draws.List(r.Context(), 0)
	if err != nil {
		s.log.Error("ranking draws", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not build ranking")
		return
	}
	bets, err := s.d.Bets.ListApproved(r.Context())
	if err != nil {
		s.log.Error("ranking bets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not build ranking")
		return
	}

	entries := ranking.Compute(draws, bets)
	if s.d.Users != nil && len(entries) > 0 {
		names, err := s.d.Users.Names(r.Context(), ranking.UserIDs(entries))
		if err != nil {
			s.log.Warn("ranking names", zap.Error(err))
		}
		for i := range entries {
			entries[i].Name = names[entries[i].UserID]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ranking": entries})
}

// favoriteNumbers: números mais jogados + total de apostas pagas contabilizadas
func (s *Server) favoriteNumbers(w http.ResponseWriter, r *http.Request) {
	favorites := []stats.NumberCount{}
	var approved int64
	if s.d.Stats != nil {
		top, err := s.d.Stats.Top(r.Context(), 10)
		if err != nil {
			s.log.Error("favorite numbers", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load favorites")
			return
		}
		favorites = top

		approved, err = s.d.Stats.ApprovedBets(r.Context())
		if err != nil {
			s.log.Error("approved bets counter", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load favorites")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites, "approvedBets": approved})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
