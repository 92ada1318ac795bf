package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserID(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func TestMiddleware(t *testing.T) {
	valid, err := Issue(secret, "u-1", time.Hour)
	require.NoError(t, err)
	expired, err := Issue(secret, "u-1", -time.Minute)
	require.NoError(t, err)
	otherKey, err := Issue([]byte("other"), "u-1", time.Hour)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		code   int
		body   string
	}{
		{"Valid", "Bearer " + valid, "", http.StatusOK, "u-1"},
		{"QueryToken", "", "?token=" + valid, http.StatusOK, "u-1"},
		{"Missing", "", "", http.StatusUnauthorized, ""},
		{"BadFormat", "Token " + valid, "", http.StatusUnauthorized, ""},
		{"Expired", "Bearer " + expired, "", http.StatusUnauthorized, ""},
		{"WrongKey", "Bearer " + otherKey, "", http.StatusUnauthorized, ""},
		{"NoSubject", "Bearer " + noSub, "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/bets"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Middleware(secret)(echoUser()).ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = Parse(secret, tok)
	assert.Error(t, err)
}
