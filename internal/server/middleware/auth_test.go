package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedStatus(t *testing.T, apiKey string, decorate func(*http.Request)) int {
	t.Helper()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/executions", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	Auth(apiKey)(next).ServeHTTP(rec, req)
	return rec.Code
}

func TestAuth(t *testing.T) {
	t.Run("disabled when no key configured", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, authedStatus(t, "", nil))
	})

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, authedStatus(t, "k1", nil))
	})

	t.Run("wrong token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, authedStatus(t, "k1", func(r *http.Request) {
			r.Header.Set("X-API-Key", "nope")
		}))
	})

	t.Run("x-api-key header", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, authedStatus(t, "k1", func(r *http.Request) {
			r.Header.Set("X-API-Key", "k1")
		}))
	})

	t.Run("bearer token", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, authedStatus(t, "k1", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer k1")
		}))
	})
}
