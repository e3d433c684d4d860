package binance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tvrelay/internal/crypto"
	"github.com/alanyoungcy/tvrelay/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetClock(func() time.Time { return time.UnixMilli(1700000000000) })
	return c
}

func TestPlaceMarketOrder_SignedRequest(t *testing.T) {
	var gotQuery, gotHeader, gotPath string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-MBX-APIKEY")
		gotPath = r.URL.Path
		w.Write([]byte(`{"orderId": 12345}`))
	})

	raw, err := c.PlaceMarketOrder(context.Background(), domain.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     domain.OrderSideBuy,
		Quantity: 0.5,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId": 12345}`, string(raw))

	assert.Equal(t, "/fapi/v1/order", gotPath)
	assert.Equal(t, "test-key", gotHeader)

	// The signature must cover the exact query string that precedes it.
	sigIdx := strings.LastIndex(gotQuery, "&signature=")
	require.Positive(t, sigIdx)
	unsigned := gotQuery[:sigIdx]
	gotSig := gotQuery[sigIdx+len("&signature="):]

	assert.Equal(t,
		"symbol=BTCUSDT&side=BUY&type=MARKET&quantity=0.5&reduceOnly=false&timestamp=1700000000000&recvWindow=5000",
		unsigned,
	)

	want, err := crypto.NewSigner("test-secret").SignQuery(unsigned)
	require.NoError(t, err)
	assert.Equal(t, want, gotSig)
}

func TestPositionQuantity(t *testing.T) {
	t.Run("array response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fapi/v2/positionRisk", r.URL.Path)
			w.Write([]byte(`[{"symbol":"BTCUSDT","positionAmt":"-1.250"}]`))
		})
		assert.Equal(t, -1.25, c.PositionQuantity(context.Background(), "BTCUSDT"))
	})

	t.Run("single object response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol":"ethusdt","positionAmt":"2.000"}`))
		})
		assert.Equal(t, 2.0, c.PositionQuantity(context.Background(), "ETHUSDT"))
	})

	t.Run("unparsable amount fails open to flat", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"symbol":"BTCUSDT","positionAmt":"not-a-number"}]`))
		})
		assert.Zero(t, c.PositionQuantity(context.Background(), "BTCUSDT"))
	})

	t.Run("http error fails open to flat", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		assert.Zero(t, c.PositionQuantity(context.Background(), "BTCUSDT"))
	})

	t.Run("symbol not in response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"symbol":"ETHUSDT","positionAmt":"5"}]`))
		})
		assert.Zero(t, c.PositionQuantity(context.Background(), "BTCUSDT"))
	})
}

func TestRealizedPnLSince(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/income", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "incomeType=REALIZED_PNL")
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","incomeType":"REALIZED_PNL","income":"1.50"},
			{"symbol":"BTCUSDT","incomeType":"REALIZED_PNL","income":"-0.25"},
			{"symbol":"BTCUSDT","incomeType":"REALIZED_PNL","income":"garbage"}
		]`))
	})

	total, err := c.RealizedPnLSince(context.Background(), "BTCUSDT", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 1.25, total, 1e-9)
}

func TestCheckStatus_ErrorMapping(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key"}`))
		})
		err := c.SetLeverage(context.Background(), "BTCUSDT", 5)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("rate limited", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
		})
		err := c.SetLeverage(context.Background(), "BTCUSDT", 5)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})
}

func TestDoSigned_MissingCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.False(t, c.Configured())
	err := c.SetLeverage(context.Background(), "BTCUSDT", 5)
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		qty       float64
		precision int
		want      string
	}{
		{0.5, 3, "0.5"},
		{10.0, 3, "10"},
		{0.001, 3, "0.001"},
		{1.230, 3, "1.23"},
		{2.5, 0, "2"},
		{0.1234567, 5, "0.12346"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatQuantity(tt.qty, tt.precision))
	}
}

func TestPing(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		var gotPath, gotQuery string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{}`))
		})

		require.NoError(t, c.Ping(context.Background()))
		assert.Equal(t, "/fapi/v1/ping", gotPath)
		// Unsigned probe: no credentials or signature on the wire.
		assert.Empty(t, gotQuery)
	})

	t.Run("unreachable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"msg":"down"}`, http.StatusServiceUnavailable)
		})

		err := c.Ping(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("works without credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL},
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, c.Ping(context.Background()))
	})
}
