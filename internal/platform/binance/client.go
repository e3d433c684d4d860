// Package binance implements the signed USDⓈ-M futures REST calls the relay
// depends on: position risk, leverage, market orders, and income history.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/tvrelay/internal/crypto"
	"github.com/alanyoungcy/tvrelay/internal/domain"
)

const (
	defaultBaseURL    = "https://fapi.binance.com"
	defaultRecvWindow = 5000
	defaultTimeout    = 15 * time.Second

	// incomeHistoryLimit caps the rows fetched per PnL aggregation.
	incomeHistoryLimit = 100
)

// Config holds the client's connection and credential parameters.
type Config struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	RecvWindowMS int64
	Timeout      time.Duration
	QtyPrecision int // decimal places used when formatting order quantities
}

// Client is the signed REST client for the futures API. One instance with a
// pooled transport is shared across all inbound requests.
type Client struct {
	baseURL    string
	apiKey     string
	signer     *crypto.Signer
	recvWindow int64
	precision  int
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client from configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	recvWindow := cfg.RecvWindowMS
	if recvWindow <= 0 {
		recvWindow = defaultRecvWindow
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	precision := cfg.QtyPrecision
	if precision <= 0 {
		precision = 3
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		signer:     crypto.NewSigner(cfg.APISecret),
		recvWindow: recvWindow,
		precision:  precision,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "binance")),
		now:        time.Now,
	}
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetClock sets the timestamp source for testing.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// Configured reports whether both the API key and secret are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.signer.Configured()
}

// PositionQuantity returns the signed net position for symbol. The call
// fails open: any transport or parse problem is logged and reported as flat
// (0.0) so a malformed read of this endpoint never aborts the pipeline.
// Reduce-only semantics downstream are the safety net.
func (c *Client) PositionQuantity(ctx context.Context, symbol string) float64 {
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", []param{
		{"symbol", symbol},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "position risk query failed, assuming flat",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return 0
	}

	// The endpoint returns an array, but a single object has been observed
	// on some deployments; accept both shapes.
	var entries []positionRisk
	if err := json.Unmarshal(body, &entries); err != nil {
		var one positionRisk
		if err := json.Unmarshal(body, &one); err != nil {
			c.logger.WarnContext(ctx, "position risk response unreadable, assuming flat",
				slog.String("symbol", symbol),
			)
			return 0
		}
		entries = []positionRisk{one}
	}

	for _, e := range entries {
		if !strings.EqualFold(e.Symbol, symbol) {
			continue
		}
		qty, err := strconv.ParseFloat(e.PositionAmt, 64)
		if err != nil {
			c.logger.WarnContext(ctx, "position amount unparsable, assuming flat",
				slog.String("symbol", symbol),
				slog.String("positionAmt", e.PositionAmt),
			)
			return 0
		}
		return qty
	}
	return 0
}

// SetLeverage configures the account leverage for symbol. Failures are the
// caller's to log and ignore; the account keeps whatever leverage was
// already configured.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/leverage", []param{
		{"symbol", symbol},
		{"leverage", strconv.Itoa(leverage)},
	})
	if err != nil {
		return fmt.Errorf("binance: set leverage %s: %w", symbol, err)
	}
	return nil
}

// PlaceMarketOrder submits one market order and returns the raw exchange
// response. Orders are never retried here.
func (c *Client) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (json.RawMessage, error) {
	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", []param{
		{"symbol", req.Symbol},
		{"side", string(req.Side)},
		{"type", "MARKET"},
		{"quantity", FormatQuantity(req.Quantity, c.precision)},
		{"reduceOnly", strconv.FormatBool(req.ReduceOnly)},
	})
	if err != nil {
		return nil, fmt.Errorf("binance: place order %s %s: %w", req.Side, req.Symbol, err)
	}
	return body, nil
}

// RecentRealizedPnL returns realized-PnL income entries for symbol since the
// given time. Best-effort telemetry; callers swallow and log failures.
func (c *Client) RecentRealizedPnL(ctx context.Context, symbol string, since time.Time, limit int) ([]IncomeEntry, error) {
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/income", []param{
		{"symbol", symbol},
		{"incomeType", "REALIZED_PNL"},
		{"startTime", strconv.FormatInt(since.UnixMilli(), 10)},
		{"limit", strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, fmt.Errorf("binance: income history %s: %w", symbol, err)
	}
	var entries []IncomeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("binance: decode income history: %w", err)
	}
	return entries, nil
}

// RealizedPnLSince sums the realized PnL booked for symbol since the given
// time. Unparsable entries are skipped rather than failing the sum.
func (c *Client) RealizedPnLSince(ctx context.Context, symbol string, since time.Time) (float64, error) {
	entries, err := c.RecentRealizedPnL(ctx, symbol, since, incomeHistoryLimit)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, e := range entries {
		v, err := strconv.ParseFloat(e.Income, 64)
		if err != nil {
			continue
		}
		total += v
	}
	return total, nil
}

// Ping hits the unsigned test-connectivity endpoint. It needs no credentials
// and verifies only that the REST API is reachable from this host.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fapi/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("binance: create ping request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("binance: ping: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("binance: read ping response: %w", err)
	}
	if err := c.checkStatus(resp.StatusCode, body); err != nil {
		return fmt.Errorf("binance: ping: %w", err)
	}
	return nil
}

// FormatQuantity renders a quantity with fixed precision and then strips
// trailing zeros and a trailing decimal point; the exchange rejects numeric
// strings with superfluous zeros.
func FormatQuantity(qty float64, precision int) string {
	s := strconv.FormatFloat(qty, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// param is one query-string pair. A slice keeps the field order
// deterministic; the signature is computed over the exact joined string.
type param struct {
	key, value string
}

// doSigned builds the canonical query string, appends timestamp and
// recvWindow, signs it, and performs the request with the API-key header.
func (c *Client) doSigned(ctx context.Context, method, path string, params []param) ([]byte, error) {
	if !c.Configured() {
		return nil, domain.ErrMissingCredentials
	}

	pairs := make([]string, 0, len(params)+3)
	for _, p := range params {
		pairs = append(pairs, p.key+"="+url.QueryEscape(p.value))
	}
	pairs = append(pairs, "timestamp="+strconv.FormatInt(c.now().UnixMilli(), 10))
	pairs = append(pairs, "recvWindow="+strconv.FormatInt(c.recvWindow, 10))
	query := strings.Join(pairs, "&")

	sig, err := c.signer.SignQuery(query)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	fullURL := c.baseURL + path + "?" + query + "&signature=" + sig

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to appropriate errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("binance: unauthorized: %s (%d): %w", apiErr.Msg, apiErr.Code, domain.ErrUnauthorized)
	case http.StatusTooManyRequests:
		return fmt.Errorf("binance: rate limited: %s (%d): %w", apiErr.Msg, apiErr.Code, domain.ErrRateLimited)
	case http.StatusBadRequest:
		return fmt.Errorf("binance: bad request: %s (%d)", apiErr.Msg, apiErr.Code)
	default:
		return fmt.Errorf("binance: HTTP %d: %s (%d)", statusCode, apiErr.Msg, apiErr.Code)
	}
}
