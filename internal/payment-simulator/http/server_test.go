package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bingaodosamigos/bingao-platform/internal/payment-simulator/dto"
	"github.com/bingaodosamigos/bingao-platform/internal/payment-simulator/store"
	"github.com/bingaodosamigos/bingao-platform/internal/shared/mercadopago"
)

type received struct {
	query url.Values
	body  map[string]any
}

// webhookSink registra os avisos que chegam na notification_url
type webhookSink struct {
	mu  sync.Mutex
	got []received
}

func (s *webhookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)
	s.mu.Lock()
	s.got = append(s.got, received{query: r.URL.Query(), body: body})
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func setup(t *testing.T) (*mercadopago.Client, *httptest.Server, *webhookSink) {
	t.Helper()
	sink := &webhookSink{}
	hook := httptest.NewServer(sink)
	t.Cleanup(hook.Close)

	srv := NewServer(zap.NewNop(), store.NewMemory(), "")
	sim := httptest.NewServer(srv.Router())
	t.Cleanup(sim.Close)
	srv.publicURL = sim.URL

	return mercadopago.New(sim.URL, "TEST-token"), hook, sink
}

func pay(t *testing.T, simURL string, req dto.PayRequest) dto.PayResponse {
	t.Helper()
	b, _ := json.Marshal(req)
	res, err := http.Post(simURL+"/simulator/pay", "application/json", strings.NewReader(string(b)))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out dto.PayResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func preference(hookURL string) mercadopago.PreferenceRequest {
	return mercadopago.PreferenceRequest{
		Items:             []mercadopago.Item{{Title: "Bingão dos Amigos - Aposta", Quantity: 1, UnitPrice: 10, CurrencyID: "BRL"}},
		ExternalReference: "bet-1",
		NotificationURL:   hookURL + "/webhooks/mercadopago",
	}
}

func TestFullPaymentRoundTrip(t *testing.T) {
	client, hook, sink := setup(t)
	ctx := context.Background()

	pref, err := client.CreatePreference(ctx, preference(hook.URL), "bet-1")
	require.NoError(t, err)
	assert.Contains(t, pref.InitPoint, "/checkout?pref_id="+pref.ID)
	assert.Equal(t, "bet-1", pref.ExternalReference)

	again, err := client.CreatePreference(ctx, preference(hook.URL), "bet-1")
	require.NoError(t, err)
	assert.Equal(t, pref.ID, again.ID)

	out := pay(t, client.BaseURL, dto.PayRequest{PreferenceID: pref.ID, Status: "approved", Duplicate: 2})
	assert.Equal(t, 3, out.Notified)

	require.Len(t, sink.got, 3)
	for _, n := range sink.got {
		assert.Equal(t, "payment", n.body["type"])
		assert.Equal(t, out.Payment.ID.String(), n.query.Get("data.id"))
	}

	p, err := client.GetPayment(ctx, out.Payment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, mercadopago.PaymentApproved, p.Status)
	assert.Equal(t, "bet-1", p.ExternalReference)
	assert.Equal(t, "10", p.TransactionAmount.String())

	mo, err := client.GetMerchantOrder(ctx, out.MerchantOrder.String())
	require.NoError(t, err)
	id, ok := mo.PaymentID()
	require.True(t, ok)
	assert.Equal(t, p.ID.String(), id)
}

func TestLegacyNotification(t *testing.T) {
	client, hook, sink := setup(t)

	pref, err := client.CreatePreference(context.Background(), preference(hook.URL), "")
	require.NoError(t, err)

	out := pay(t, client.BaseURL, dto.PayRequest{PreferenceID: pref.ID, Status: "rejected", Legacy: true})
	assert.Equal(t, 1, out.Notified)

	require.Len(t, sink.got, 1)
	assert.Equal(t, "merchant_order", sink.got[0].query.Get("topic"))
	assert.Equal(t, out.MerchantOrder.String(), sink.got[0].query.Get("id"))
	assert.Equal(t, client.BaseURL+"/merchant_orders/"+out.MerchantOrder.String(), sink.got[0].body["resource"])
}

func TestAPIErrors(t *testing.T) {
	client, _, _ := setup(t)
	ctx := context.Background()

	_, err := client.GetPayment(ctx, "999")
	var apiErr *mercadopago.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, client.BaseURL+"/v1/payments/1", nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, err = client.CreatePreference(ctx, mercadopago.PreferenceRequest{ExternalReference: "x"}, "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestPay_Errors(t *testing.T) {
	client, _, _ := setup(t)

	res, err := http.Post(client.BaseURL+"/simulator/pay", "application/json", strings.NewReader(`{"preferenceId":"nope"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	pref, err := client.CreatePreference(context.Background(), preference("http://127.0.0.1:1"), "")
	require.NoError(t, err)
	res, err = http.Post(client.BaseURL+"/simulator/pay", "application/json",
		strings.NewReader(`{"preferenceId":"`+pref.ID+`","status":"refunded"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// notification_url fora do ar não impede o pagamento
	out := pay(t, client.BaseURL, dto.PayRequest{PreferenceID: pref.ID})
	assert.Equal(t, 0, out.Notified)
	assert.Equal(t, mercadopago.PaymentApproved, out.Payment.Status)
}
