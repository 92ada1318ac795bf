package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.Method+" "+r.URL.Path)
	}))
}

func TestRoutes(t *testing.T) {
	bet := echo("bet")
	defer bet.Close()
	webhook := echo("webhook")
	defer webhook.Close()

	h, err := routes(bet.URL, webhook.URL)
	require.NoError(t, err)
	gw := httptest.NewServer(h)
	defer gw.Close()

	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/bets/checkout", "bet POST /checkout"},
		{http.MethodGet, "/api/bets/bets/123", "bet GET /bets/123"},
		{http.MethodPost, "/api/webhooks/mercadopago", "webhook POST /webhooks/mercadopago"},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, gw.URL+tt.path, nil)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()

		assert.Equal(t, tt.want, string(body))
		assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestRoutes_Preflight(t *testing.T) {
	h, err := routes("http://bet", "http://webhook")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/bets/checkout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
