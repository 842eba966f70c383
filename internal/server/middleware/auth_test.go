package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authTestHandler(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	return Auth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	authTestHandler(t, "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forecasts", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	authTestHandler(t, "secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forecasts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/forecasts", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	authTestHandler(t, "secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthAcceptsAPIKeyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/forecasts", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	authTestHandler(t, "secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRejectsWrongToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/forecasts", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	authTestHandler(t, "secret").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
