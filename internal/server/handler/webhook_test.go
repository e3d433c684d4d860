package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tvrelay/internal/domain"
)

// fakeRouter captures the signal the handler built and returns canned values.
type fakeRouter struct {
	lastSig domain.SignalEvent
	results []domain.ExecutionResult
	err     error
}

func (f *fakeRouter) Route(_ context.Context, sig domain.SignalEvent) ([]domain.ExecutionResult, error) {
	f.lastSig = sig
	return f.results, f.err
}

func newWebhook(cfg WebhookConfig, router SignalRouter) *WebhookHandler {
	return NewWebhookHandler(cfg, router, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func post(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_BadJSON(t *testing.T) {
	h := newWebhook(WebhookConfig{Passphrase: "pw"}, &fakeRouter{})

	rec := post(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_Passphrase(t *testing.T) {
	t.Run("wrong passphrase", func(t *testing.T) {
		h := newWebhook(WebhookConfig{Passphrase: "pw"}, &fakeRouter{})
		rec := post(t, h, `{"passphrase":"nope","action":"long","symbol":"BTCUSDT"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty configured passphrase rejects everything", func(t *testing.T) {
		h := newWebhook(WebhookConfig{Passphrase: ""}, &fakeRouter{})
		rec := post(t, h, `{"passphrase":"","action":"long","symbol":"BTCUSDT"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandleWebhook_Processed(t *testing.T) {
	router := &fakeRouter{results: []domain.ExecutionResult{{ID: "r1", Symbol: "BTCUSDT"}}}
	h := newWebhook(WebhookConfig{Passphrase: "pw", MissingIDPolicy: "process"}, router)

	rec := post(t, h, `{"passphrase":"pw","id":"a-1","action":"buy","symbol":"BINANCE:BTCUSD","price":"42000.5","timeframe":"15m"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string                   `json:"status"`
		ID      string                   `json:"id"`
		Results []domain.ExecutionResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "processed", resp.Status)
	assert.Equal(t, "a-1", resp.ID)
	assert.Len(t, resp.Results, 1)

	// The handler normalizes before routing.
	assert.Equal(t, "a-1", router.lastSig.AlertID)
	assert.Equal(t, domain.ActionLong, router.lastSig.Action)
	assert.Equal(t, "BTCUSDT", router.lastSig.Symbol)
	assert.InDelta(t, 42000.5, router.lastSig.Price, 1e-9)
	assert.Equal(t, "15m", router.lastSig.Timeframe)
}

func TestHandleWebhook_NumericPrice(t *testing.T) {
	router := &fakeRouter{}
	h := newWebhook(WebhookConfig{Passphrase: "pw"}, router)

	rec := post(t, h, `{"passphrase":"pw","id":"a-2","action":"long","symbol":"BTCUSDT","price":42000.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 42000.5, router.lastSig.Price, 1e-9)
}

func TestHandleWebhook_AlertIDShapes(t *testing.T) {
	t.Run("numeric id is coerced to its literal", func(t *testing.T) {
		router := &fakeRouter{}
		h := newWebhook(WebhookConfig{Passphrase: "pw"}, router)

		rec := post(t, h, `{"passphrase":"pw","id":12345,"action":"long","symbol":"BTCUSDT","price":100}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "12345", router.lastSig.AlertID)
	})

	t.Run("null id falls back to the missing-id policy", func(t *testing.T) {
		router := &fakeRouter{}
		h := newWebhook(WebhookConfig{Passphrase: "pw", MissingIDPolicy: "sentinel"}, router)

		rec := post(t, h, `{"passphrase":"pw","id":null,"action":"long","symbol":"BTCUSDT"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "null", router.lastSig.AlertID)
	})
}

func TestHandleWebhook_MissingIDPolicy(t *testing.T) {
	t.Run("process assigns a fresh uuid", func(t *testing.T) {
		router := &fakeRouter{}
		h := newWebhook(WebhookConfig{Passphrase: "pw", MissingIDPolicy: "process"}, router)

		post(t, h, `{"passphrase":"pw","action":"long","symbol":"BTCUSDT"}`)
		first := router.lastSig.AlertID
		post(t, h, `{"passphrase":"pw","action":"long","symbol":"BTCUSDT"}`)

		assert.NotEmpty(t, first)
		assert.NotEqual(t, first, router.lastSig.AlertID)
	})

	t.Run("sentinel uses the null literal", func(t *testing.T) {
		router := &fakeRouter{}
		h := newWebhook(WebhookConfig{Passphrase: "pw", MissingIDPolicy: "sentinel"}, router)

		post(t, h, `{"passphrase":"pw","action":"long","symbol":"BTCUSDT"}`)
		assert.Equal(t, "null", router.lastSig.AlertID)
	})
}

func TestHandleWebhook_RouterErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"duplicate", domain.ErrDuplicateAlert, http.StatusOK},
		{"unrecognized action", domain.ErrUnrecognizedAction, http.StatusBadRequest},
		{"invalid symbol", domain.ErrInvalidSymbol, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newWebhook(WebhookConfig{Passphrase: "pw"},
				&fakeRouter{err: fmt.Errorf("router: %w", tt.err)})

			rec := post(t, h, `{"passphrase":"pw","id":"x","action":"long","symbol":"BTCUSDT"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.err == domain.ErrDuplicateAlert {
				assert.JSONEq(t, `{"status":"duplicate_ignored"}`, rec.Body.String())
			}
		})
	}
}

func TestHandleWebhook_ExchangeFailureStillReturns200(t *testing.T) {
	router := &fakeRouter{results: []domain.ExecutionResult{{
		ID: "r1", Symbol: "BTCUSDT", Error: "binance: rate limited",
	}}}
	h := newWebhook(WebhookConfig{Passphrase: "pw"}, router)

	rec := post(t, h, `{"passphrase":"pw","id":"x","action":"long","symbol":"BTCUSDT"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limited")
}
