package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tvrelay/internal/domain"
)

// fakeExchange records the orders the router asks for and serves a canned
// position per symbol.
type fakeExchange struct {
	configured bool
	positions  map[string]float64
	orders     []domain.OrderRequest
	orderErrs  []error // consumed in order; nil entries mean success
	leverages  []int
}

func (f *fakeExchange) Configured() bool { return f.configured }

func (f *fakeExchange) PositionQuantity(_ context.Context, symbol string) float64 {
	return f.positions[symbol]
}

func (f *fakeExchange) SetLeverage(_ context.Context, _ string, leverage int) error {
	f.leverages = append(f.leverages, leverage)
	return nil
}

func (f *fakeExchange) PlaceMarketOrder(_ context.Context, req domain.OrderRequest) (json.RawMessage, error) {
	f.orders = append(f.orders, req)
	if len(f.orderErrs) > 0 {
		err := f.orderErrs[0]
		f.orderErrs = f.orderErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return json.RawMessage(`{"orderId":1}`), nil
}

func (f *fakeExchange) RealizedPnLSince(context.Context, string, time.Time) (float64, error) {
	return 0, nil
}

func newTestRouter(ex *fakeExchange, cfg Config) *Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(ex, NewDedup(time.Minute), cfg, logger)
}

func defaultCfg() Config {
	return Config{
		NotionalUSDT: 1000,
		Leverage:     1,
		MinQty:       0.001,
	}
}

func signal(action domain.Action, symbol string, price float64) domain.SignalEvent {
	return domain.SignalEvent{
		AlertID:    "alert-" + string(action) + symbol,
		RawAction:  string(action),
		Action:     action,
		Symbol:     symbol,
		Price:      price,
		ReceivedAt: time.Now().UTC(),
	}
}

func TestRoute_LongBuysRegardlessOfPosition(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": -2}}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionLong, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, ex.orders, 1)

	assert.Equal(t, domain.OrderSideBuy, ex.orders[0].Side)
	assert.False(t, ex.orders[0].ReduceOnly)
	assert.InDelta(t, 10.0, ex.orders[0].Quantity, 1e-9)
	assert.True(t, results[0].OK())
}

func TestRoute_SellClosesLongClamped(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 2}}
	r := newTestRouter(ex, defaultCfg())

	// Sized quantity is 10 but only 2 are held long.
	results, err := r.Route(context.Background(), signal(domain.ActionSell, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, ex.orders, 1)

	assert.Equal(t, domain.OrderSideSell, ex.orders[0].Side)
	assert.True(t, ex.orders[0].ReduceOnly)
	assert.InDelta(t, 2.0, ex.orders[0].Quantity, 1e-9)
	assert.True(t, results[0].OK())
}

func TestRoute_SellWithNoLongSkipsWhenShortDisabled(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 0}}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionSell, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Empty(t, ex.orders)
	assert.True(t, results[0].Skipped)
	assert.Contains(t, results[0].Reason, "no long to close")
}

func TestRoute_SellOpensShortWhenAllowed(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 0}}
	cfg := defaultCfg()
	cfg.AllowShortOnSell = true
	r := newTestRouter(ex, cfg)

	_, err := r.Route(context.Background(), signal(domain.ActionSell, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, ex.orders, 1)

	assert.Equal(t, domain.OrderSideSell, ex.orders[0].Side)
	assert.False(t, ex.orders[0].ReduceOnly)
	assert.InDelta(t, 10.0, ex.orders[0].Quantity, 1e-9)
}

func TestRoute_ShortSellsRegardlessOfPosition(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 5}}
	r := newTestRouter(ex, defaultCfg())

	_, err := r.Route(context.Background(), signal(domain.ActionShort, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, ex.orders, 1)

	assert.Equal(t, domain.OrderSideSell, ex.orders[0].Side)
	assert.False(t, ex.orders[0].ReduceOnly)
}

func TestRoute_CoverClosesShortClamped(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": -5}}
	r := newTestRouter(ex, defaultCfg())

	_, err := r.Route(context.Background(), signal(domain.ActionCover, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, ex.orders, 1)

	assert.Equal(t, domain.OrderSideBuy, ex.orders[0].Side)
	assert.True(t, ex.orders[0].ReduceOnly)
	assert.InDelta(t, 5.0, ex.orders[0].Quantity, 1e-9)
}

func TestRoute_CoverWithNoShortSkips(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 3}}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionCover, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Empty(t, ex.orders)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, "no short to close", results[0].Reason)
}

func TestRoute_CloseSendsBothReduceOnlyOrders(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 2}}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionClose, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, ex.orders, 2)

	assert.Equal(t, domain.OrderSideSell, ex.orders[0].Side)
	assert.True(t, ex.orders[0].ReduceOnly)
	assert.InDelta(t, 2.0, ex.orders[0].Quantity, 1e-9)

	assert.Equal(t, domain.OrderSideBuy, ex.orders[1].Side)
	assert.True(t, ex.orders[1].ReduceOnly)
	assert.InDelta(t, 10.0, ex.orders[1].Quantity, 1e-9)
}

func TestRoute_CloseSecondOrderProceedsAfterFirstFails(t *testing.T) {
	ex := &fakeExchange{
		configured: true,
		positions:  map[string]float64{"BTCUSDT": 0},
		orderErrs:  []error{errors.New("boom"), nil},
	}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionClose, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, ex.orders, 2)
	require.Len(t, results, 2)

	assert.Equal(t, "boom", results[0].Error)
	assert.False(t, results[0].OK())
	assert.True(t, results[1].OK())
}

func TestRoute_DuplicateAlert(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{}}
	r := newTestRouter(ex, defaultCfg())
	sig := signal(domain.ActionLong, "BTCUSDT", 100)

	_, err := r.Route(context.Background(), sig)
	require.NoError(t, err)

	_, err = r.Route(context.Background(), sig)
	assert.ErrorIs(t, err, domain.ErrDuplicateAlert)
	assert.Len(t, ex.orders, 1)
}

func TestRoute_EmptySymbol(t *testing.T) {
	ex := &fakeExchange{configured: true}
	r := newTestRouter(ex, defaultCfg())

	_, err := r.Route(context.Background(), signal(domain.ActionLong, "", 100))
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
	assert.Empty(t, ex.orders)
}

func TestRoute_UnknownAction(t *testing.T) {
	ex := &fakeExchange{configured: true}
	r := newTestRouter(ex, defaultCfg())

	sig := signal(domain.ActionUnknown, "BTCUSDT", 100)
	sig.RawAction = "hodl"

	_, err := r.Route(context.Background(), sig)
	assert.ErrorIs(t, err, domain.ErrUnrecognizedAction)
	assert.Empty(t, ex.orders)
}

func TestRoute_IgnoreAction(t *testing.T) {
	ex := &fakeExchange{configured: true}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionIgnore, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Skipped)
	assert.Empty(t, ex.orders)
}

func TestRoute_MissingCredentialsSkips(t *testing.T) {
	ex := &fakeExchange{configured: false}
	r := newTestRouter(ex, defaultCfg())

	results, err := r.Route(context.Background(), signal(domain.ActionLong, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Skipped)
	assert.Equal(t, "missing api credentials", results[0].Reason)
	assert.Empty(t, ex.orders)
}

func TestRoute_DryRunSuppressesOrders(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{}}
	cfg := defaultCfg()
	cfg.DryRun = true
	r := newTestRouter(ex, cfg)

	results, err := r.Route(context.Background(), signal(domain.ActionLong, "BTCUSDT", 100))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Skipped)
	assert.Contains(t, results[0].Reason, "dry run")
	assert.Empty(t, ex.orders)
}

func TestRoute_SetsLeverageForOpeningOrdersOnly(t *testing.T) {
	ex := &fakeExchange{configured: true, positions: map[string]float64{"BTCUSDT": 2}}
	cfg := defaultCfg()
	cfg.Leverage = 5
	r := newTestRouter(ex, cfg)

	_, err := r.Route(context.Background(), signal(domain.ActionLong, "BTCUSDT", 100))
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ex.leverages)

	// Closing a long is reduce-only and must not touch leverage.
	_, err = r.Route(context.Background(), signal(domain.ActionSell, "BTCUSDT", 100))
	require.NoError(t, err)
	assert.Equal(t, []int{5}, ex.leverages)
}
