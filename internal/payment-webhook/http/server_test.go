package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/payment-webhook/reconcile"
)

type fakeReceiver struct {
	outcome reconcile.Outcome
	body    []byte
	query   url.Values
	ctxErr  error
}

func (f *fakeReceiver) Handle(ctx context.Context, body []byte, query url.Values) reconcile.Outcome {
	f.body = body
	f.query = query
	f.ctxErr = ctx.Err()
	return f.outcome
}

func TestNotification_AlwaysAcks(t *testing.T) {
	outcomes := []reconcile.Outcome{
		reconcile.OutcomeApproved,
		reconcile.OutcomeDuplicate,
		reconcile.OutcomeMalformed,
		reconcile.OutcomeUpstreamError,
		reconcile.OutcomeUncorrelated,
	}

	for _, o := range outcomes {
		t.Run(string(o), func(t *testing.T) {
			rcv := &fakeReceiver{outcome: o}
			h := NewServer(zap.NewNop(), rcv, 0).Router()

			req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago?type=payment&data.id=123",
				strings.NewReader(`{"type":"payment","data":{"id":"123"}}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
			assert.Equal(t, `{"type":"payment","data":{"id":"123"}}`, string(rcv.body))
			assert.Equal(t, "123", rcv.query.Get("data.id"))
		})
	}
}

// conflictCount lê o contador pelo Gather de um registry isolado
func conflictCount(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "webhook_notifications_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == string(reconcile.OutcomeConflict) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNotification_CountsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	before := conflictCount(t, reg)

	h := NewServer(zap.NewNop(), &fakeReceiver{outcome: reconcile.OutcomeConflict}, 0).Router()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", strings.NewReader(`{}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, conflictCount(t, reg))
}

func TestNotification_LegacyGET(t *testing.T) {
	rcv := &fakeReceiver{outcome: reconcile.OutcomeApproved}
	h := NewServer(zap.NewNop(), rcv, 0).Router()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/mercadopago?topic=payment&id=123", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rcv.body)
	assert.Equal(t, "payment", rcv.query.Get("topic"))
}

func TestNotification_SurvivesClientCancel(t *testing.T) {
	rcv := &fakeReceiver{outcome: reconcile.OutcomeApproved}
	h := NewServer(zap.NewNop(), rcv, 0).Router()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", strings.NewReader(`{}`)).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NoError(t, rcv.ctxErr)
}

type panicReceiver struct{}

func (panicReceiver) Handle(context.Context, []byte, url.Values) reconcile.Outcome {
	panic("nil map")
}

func TestNotification_PanicStillAcks(t *testing.T) {
	h := NewServer(zap.NewNop(), panicReceiver{}, 0).Router()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago",
		strings.NewReader(`{"type":"payment","data":{"id":"123"}}`))
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rec, req) })

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
