package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// defaultPnLWindow is the lookback used when the request has no since param.
const defaultPnLWindow = 24 * time.Hour

// PnLSource reports realized profit and loss from the exchange.
type PnLSource interface {
	Configured() bool
	RealizedPnLSince(ctx context.Context, symbol string, since time.Time) (float64, error)
}

// PnLHandler serves realized-PnL queries against the exchange income API.
type PnLHandler struct {
	source PnLSource
	logger *slog.Logger
}

// NewPnLHandler creates a PnLHandler.
func NewPnLHandler(source PnLSource, logger *slog.Logger) *PnLHandler {
	return &PnLHandler{source: source, logger: logger}
}

// GetPnL returns realized PnL for a symbol over the requested window.
// GET /api/pnl?symbol=BTCUSDT&since=2026-08-30T00:00:00Z
func (h *PnLHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol parameter")
		return
	}

	if h.source == nil || !h.source.Configured() {
		writeError(w, http.StatusServiceUnavailable, "exchange credentials are not configured")
		return
	}

	since := time.Now().Add(-defaultPnLWindow)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since parameter, expected RFC 3339")
			return
		}
		since = t
	}

	pnl, err := h.source.RealizedPnLSince(r.Context(), symbol, since)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "pnl: query failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to query realized pnl")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":       symbol,
		"since":        since.UTC().Format(time.RFC3339),
		"realized_pnl": pnl,
	})
}
