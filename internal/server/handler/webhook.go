package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tvrelay/internal/domain"
	"github.com/alanyoungcy/tvrelay/internal/platform/binance"
)

// maxWebhookBody bounds the accepted alert payload size.
const maxWebhookBody = 64 * 1024

// SignalRouter routes a parsed alert into order executions.
type SignalRouter interface {
	Route(ctx context.Context, sig domain.SignalEvent) ([]domain.ExecutionResult, error)
}

// WebhookConfig controls webhook authentication and alert-ID handling.
type WebhookConfig struct {
	// Passphrase is the shared secret alerts must carry. An empty value
	// rejects every request.
	Passphrase string

	// MissingIDPolicy selects how alerts without an id field are treated:
	// "process" assigns a fresh UUID, "sentinel" uses the literal "null"
	// so repeated id-less alerts dedupe against each other.
	MissingIDPolicy string
}

// WebhookHandler receives TradingView alert webhooks and hands them to the
// signal router.
type WebhookHandler struct {
	cfg    WebhookConfig
	router SignalRouter
	bus    domain.EventBus
	logger *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(cfg WebhookConfig, router SignalRouter, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:    cfg,
		router: router,
		logger: logger,
	}
}

// SetEventBus enables publishing accepted alerts on the "alerts" channel.
func (h *WebhookHandler) SetEventBus(bus domain.EventBus) {
	h.bus = bus
}

// alertPayload is the JSON body TradingView sends. ID, price, and time are
// tolerant of both string and numeric encodings since alert templates vary.
type alertPayload struct {
	Passphrase string          `json:"passphrase"`
	ID         json.RawMessage `json:"id"`
	Action     string          `json:"action"`
	Symbol     string          `json:"symbol"`
	Price      json.Number     `json:"price"`
	Timeframe  string          `json:"timeframe"`
	Time       json.RawMessage `json:"time"`
}

// HandleWebhook processes an incoming alert.
// POST /webhook
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var payload alertPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if !h.authorized(payload.Passphrase) {
		h.logger.WarnContext(r.Context(), "webhook: rejected alert with bad passphrase",
			slog.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusUnauthorized, "invalid passphrase")
		return
	}

	sig := h.buildSignal(payload)

	h.logger.InfoContext(r.Context(), "webhook: alert received",
		slog.String("alert_id", sig.AlertID),
		slog.String("action", string(sig.Action)),
		slog.String("symbol", sig.Symbol),
	)

	h.publishAlert(r.Context(), sig)

	results, err := h.router.Route(r.Context(), sig)
	switch {
	case errors.Is(err, domain.ErrDuplicateAlert):
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate_ignored"})
		return
	case errors.Is(err, domain.ErrUnrecognizedAction):
		writeError(w, http.StatusBadRequest, "unrecognized action: "+payload.Action)
		return
	case errors.Is(err, domain.ErrInvalidSymbol):
		writeError(w, http.StatusBadRequest, "missing or invalid symbol")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "webhook: routing failed",
			slog.String("alert_id", sig.AlertID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Exchange-level failures are reported inside the results rather than
	// via the HTTP status so TradingView does not retry the alert.
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "processed",
		"id":      sig.AlertID,
		"results": results,
	})
}

// authorized performs a constant-time passphrase check. An empty configured
// passphrase rejects all requests.
func (h *WebhookHandler) authorized(supplied string) bool {
	if h.cfg.Passphrase == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(h.cfg.Passphrase)) == 1
}

// buildSignal converts the raw payload into a SignalEvent, applying the
// missing-ID policy and symbol normalization.
func (h *WebhookHandler) buildSignal(payload alertPayload) domain.SignalEvent {
	alertID := coerceAlertID(payload.ID)
	if alertID == "" {
		if h.cfg.MissingIDPolicy == "sentinel" {
			alertID = "null"
		} else {
			alertID = uuid.NewString()
		}
	}

	price, _ := payload.Price.Float64()

	return domain.SignalEvent{
		AlertID:    alertID,
		RawAction:  payload.Action,
		Action:     domain.ParseAction(payload.Action),
		Symbol:     binance.NormalizeSymbol(payload.Symbol),
		Price:      price,
		Timeframe:  payload.Timeframe,
		Timestamp:  parseAlertTime(payload.Time),
		ReceivedAt: time.Now().UTC(),
	}
}

// coerceAlertID renders the alert id as a string whether it arrived as a
// JSON string or a number. Absent, null, or unusable values yield "" so the
// missing-ID policy applies.
func coerceAlertID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseAlertTime accepts the alert time as an RFC 3339 string or a Unix
// timestamp in seconds or milliseconds. Unparsable values yield zero.
func parseAlertTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return unixFlexible(n)
		}
		return time.Time{}
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return unixFlexible(n)
	}

	return time.Time{}
}

// unixFlexible treats values above 1e12 as milliseconds, otherwise seconds.
func unixFlexible(n int64) time.Time {
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// publishAlert broadcasts the accepted alert for WebSocket consumers.
// Failures are logged and ignored.
func (h *WebhookHandler) publishAlert(ctx context.Context, sig domain.SignalEvent) {
	if h.bus == nil {
		return
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}
	if err := h.bus.Publish(ctx, "alerts", data); err != nil {
		h.logger.WarnContext(ctx, "webhook: failed to publish alert",
			slog.String("alert_id", sig.AlertID),
			slog.String("error", err.Error()),
		)
	}
}
