// Package executor contains the relay's decision core: the signal router,
// the position sizer, and the in-memory alert guard.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tvrelay/internal/domain"
)

// Exchange is the interface through which the router reads positions and
// places orders. It is implemented by the binance client.
type Exchange interface {
	Configured() bool
	PositionQuantity(ctx context.Context, symbol string) float64
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (json.RawMessage, error)
	RealizedPnLSince(ctx context.Context, symbol string, since time.Time) (float64, error)
}

// Notifier is the optional operator-notification sink.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the router's sizing and behavior parameters.
type Config struct {
	NotionalUSDT     float64
	Leverage         int
	MinQty           float64
	AllowShortOnSell bool // whether "sell" may open a short when no long exists
	DryRun           bool
	PnLWindow        time.Duration // trailing window for the post-close PnL log
}

// Router turns a normalized signal plus the freshly fetched net position
// into zero, one, or two market orders. Each invocation is a pure decision
// over current state; nothing is persisted between calls except what the
// alert guard tracks.
type Router struct {
	exchange Exchange
	guard    domain.AlertGuard
	cfg      Config
	store    domain.ExecutionStore // optional audit trail
	bus      domain.EventBus       // optional live event feed
	notifier Notifier              // optional
	logger   *slog.Logger
}

// NewRouter creates a Router. store, bus, and notifier may be nil.
func NewRouter(exchange Exchange, guard domain.AlertGuard, cfg Config, logger *slog.Logger) *Router {
	if cfg.PnLWindow <= 0 {
		cfg.PnLWindow = 10 * time.Minute
	}
	return &Router{
		exchange: exchange,
		guard:    guard,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "router")),
	}
}

// SetExecutionStore enables audit recording of every ExecutionResult.
func (r *Router) SetExecutionStore(store domain.ExecutionStore) { r.store = store }

// SetEventBus enables publishing execution events for live subscribers.
func (r *Router) SetEventBus(bus domain.EventBus) { r.bus = bus }

// SetNotifier enables operator notifications.
func (r *Router) SetNotifier(n Notifier) { r.notifier = n }

// Route processes one signal end to end: dedup, credential gate, sizing,
// position fetch, and order placement. The returned error is non-nil only
// for conditions the caller should surface as a client error
// (domain.ErrDuplicateAlert, domain.ErrInvalidSymbol,
// domain.ErrUnrecognizedAction); exchange failures are contained inside the
// returned results.
func (r *Router) Route(ctx context.Context, sig domain.SignalEvent) ([]domain.ExecutionResult, error) {
	log := r.logger.With(
		slog.String("alert_id", sig.AlertID),
		slog.String("action", string(sig.Action)),
		slog.String("symbol", sig.Symbol),
	)

	if sig.Symbol == "" {
		return nil, fmt.Errorf("router: %w", domain.ErrInvalidSymbol)
	}
	if sig.Action == domain.ActionUnknown {
		return nil, fmt.Errorf("router: %w: %q", domain.ErrUnrecognizedAction, sig.RawAction)
	}
	if sig.Action == domain.ActionIgnore {
		return r.finish(ctx, log, r.skip(sig, "ignored action")), nil
	}

	dup, err := r.guard.Check(ctx, sig.AlertID)
	if err != nil {
		// A broken guard must not block trading; log and continue.
		log.WarnContext(ctx, "alert guard failed, processing anyway",
			slog.String("error", err.Error()),
		)
	}
	if dup {
		log.InfoContext(ctx, "duplicate alert suppressed")
		return nil, fmt.Errorf("router: %w", domain.ErrDuplicateAlert)
	}

	if !r.exchange.Configured() {
		log.WarnContext(ctx, "api credentials missing, execution skipped")
		return r.finish(ctx, log, r.skip(sig, "missing api credentials")), nil
	}

	qty := CalcQuantity(sig.Price, r.cfg.NotionalUSDT, r.cfg.Leverage, r.cfg.MinQty)

	var results []domain.ExecutionResult
	closing := false

	switch sig.Action {
	case domain.ActionLong:
		// Always opens or adds to a long, regardless of current position.
		results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
			Symbol: sig.Symbol, Side: domain.OrderSideBuy, Quantity: qty,
		}))

	case domain.ActionSell:
		pos := r.position(ctx, sig.Symbol)
		switch {
		case pos.Long():
			closing = true
			results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
				Symbol: sig.Symbol, Side: domain.OrderSideSell,
				Quantity: minQty(qty, pos.Abs()), ReduceOnly: true,
			}))
		case r.cfg.AllowShortOnSell:
			results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
				Symbol: sig.Symbol, Side: domain.OrderSideSell, Quantity: qty,
			}))
		default:
			results = append(results, r.skip(sig, "no long to close; short disabled"))
		}

	case domain.ActionShort:
		// Distinct from the ambiguous "sell" verb: always opens or adds to
		// a short.
		results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
			Symbol: sig.Symbol, Side: domain.OrderSideSell, Quantity: qty,
		}))

	case domain.ActionCover:
		pos := r.position(ctx, sig.Symbol)
		if pos.Short() {
			closing = true
			results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
				Symbol: sig.Symbol, Side: domain.OrderSideBuy,
				Quantity: minQty(qty, pos.Abs()), ReduceOnly: true,
			}))
		} else {
			results = append(results, r.skip(sig, "no short to close"))
		}

	case domain.ActionClose:
		// Flatten both sides unconditionally. Reduce-only orders are no-ops
		// against a position of the wrong or zero sign, so this avoids a
		// read-after-write race between the position check and placement.
		// The second attempt proceeds even if the first fails.
		closing = true
		pos := r.position(ctx, sig.Symbol)
		sellQty, buyQty := qty, qty
		if pos.Long() {
			sellQty = minQty(qty, pos.Abs())
		}
		if pos.Short() {
			buyQty = minQty(qty, pos.Abs())
		}
		results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
			Symbol: sig.Symbol, Side: domain.OrderSideSell, Quantity: sellQty, ReduceOnly: true,
		}))
		results = append(results, r.place(ctx, log, sig, domain.OrderRequest{
			Symbol: sig.Symbol, Side: domain.OrderSideBuy, Quantity: buyQty, ReduceOnly: true,
		}))
	}

	if closing {
		r.logRealizedPnL(ctx, log, sig.Symbol)
	}

	return r.finish(ctx, log, results...), nil
}

// position fetches the current net position from the exchange. The exchange
// is the single source of truth; nothing is cached between decisions.
func (r *Router) position(ctx context.Context, symbol string) domain.Position {
	return domain.Position{
		Symbol:   symbol,
		Quantity: r.exchange.PositionQuantity(ctx, symbol),
	}
}

// place sets leverage when the order can open exposure, submits the order,
// and converts the outcome into an ExecutionResult. Exchange failures are
// contained here; they never unwind past the router.
func (r *Router) place(ctx context.Context, log *slog.Logger, sig domain.SignalEvent, req domain.OrderRequest) domain.ExecutionResult {
	res := r.newResult(sig)
	res.Side = req.Side
	res.Quantity = req.Quantity
	res.ReduceOnly = req.ReduceOnly

	if r.cfg.DryRun {
		res.Skipped = true
		res.Reason = "dry run: order not sent"
		log.InfoContext(ctx, "dry run, order suppressed",
			slog.String("side", string(req.Side)),
			slog.Float64("quantity", req.Quantity),
		)
		return res
	}

	if !req.ReduceOnly && r.cfg.Leverage > 0 {
		// Best-effort: a leverage failure never blocks order placement; the
		// account keeps whatever leverage is already configured.
		if err := r.exchange.SetLeverage(ctx, req.Symbol, r.cfg.Leverage); err != nil {
			log.WarnContext(ctx, "set leverage failed, placing order anyway",
				slog.Int("leverage", r.cfg.Leverage),
				slog.String("error", err.Error()),
			)
		}
	}

	raw, err := r.exchange.PlaceMarketOrder(ctx, req)
	if err != nil {
		res.Error = err.Error()
		log.ErrorContext(ctx, "order placement failed",
			slog.String("side", string(req.Side)),
			slog.Float64("quantity", req.Quantity),
			slog.Bool("reduce_only", req.ReduceOnly),
			slog.String("error", err.Error()),
		)
		return res
	}

	res.Response = raw
	log.InfoContext(ctx, "order placed",
		slog.String("side", string(req.Side)),
		slog.Float64("quantity", req.Quantity),
		slog.Bool("reduce_only", req.ReduceOnly),
	)
	return res
}

// skip builds a skipped ExecutionResult with the given reason.
func (r *Router) skip(sig domain.SignalEvent, reason string) domain.ExecutionResult {
	res := r.newResult(sig)
	res.Skipped = true
	res.Reason = reason
	return res
}

func (r *Router) newResult(sig domain.SignalEvent) domain.ExecutionResult {
	return domain.ExecutionResult{
		ID:      uuid.New().String(),
		AlertID: sig.AlertID,
		Symbol:  sig.Symbol,
		Action:  sig.Action,
		At:      time.Now().UTC(),
	}
}

// finish records, publishes, and notifies every result. All three sinks are
// best-effort; their failures are logged and do not alter the results.
func (r *Router) finish(ctx context.Context, log *slog.Logger, results ...domain.ExecutionResult) []domain.ExecutionResult {
	for _, res := range results {
		if r.store != nil {
			if err := r.store.Record(ctx, res); err != nil {
				log.WarnContext(ctx, "audit record failed",
					slog.String("error", err.Error()),
				)
			}
		}
		if r.bus != nil {
			if payload, err := json.Marshal(res); err == nil {
				if err := r.bus.Publish(ctx, "executions", payload); err != nil {
					log.WarnContext(ctx, "event publish failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
		if r.notifier != nil {
			r.notifyResult(ctx, res)
		}
	}
	return results
}

func (r *Router) notifyResult(ctx context.Context, res domain.ExecutionResult) {
	switch {
	case res.Error != "":
		_ = r.notifier.Notify(ctx, "order_failed", "Order failed",
			fmt.Sprintf("%s %s %s: %s", res.Action, res.Side, res.Symbol, res.Error))
	case res.Skipped:
		_ = r.notifier.Notify(ctx, "order_skipped", "Order skipped",
			fmt.Sprintf("%s %s: %s", res.Action, res.Symbol, res.Reason))
	default:
		_ = r.notifier.Notify(ctx, "order_executed", "Order executed",
			fmt.Sprintf("%s %s %s qty %g", res.Action, res.Side, res.Symbol, res.Quantity))
	}
}

// logRealizedPnL logs the realized PnL booked over the trailing window.
// Telemetry only: failures are swallowed.
func (r *Router) logRealizedPnL(ctx context.Context, log *slog.Logger, symbol string) {
	total, err := r.exchange.RealizedPnLSince(ctx, symbol, time.Now().Add(-r.cfg.PnLWindow))
	if err != nil {
		log.WarnContext(ctx, "realized pnl query failed",
			slog.String("error", err.Error()),
		)
		return
	}
	log.InfoContext(ctx, "recent realized pnl",
		slog.Float64("pnl_usdt", total),
		slog.Duration("window", r.cfg.PnLWindow),
	)
}

func minQty(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
