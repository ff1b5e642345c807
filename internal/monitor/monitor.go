// Package monitor tracks submitted orders through their lifecycle by polling
// the venue and classifying every order that leaves the open set. Fills are
// announced exactly once; cancellations and expirations are logged and
// dropped; orders in transient states stay tracked for the next cycle.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"alpaca-signal-bot/internal/broker"
	"alpaca-signal-bot/internal/scheduler"
)

// FilledOrder is the payload handed to the fill hook.
type FilledOrder struct {
	Order    broker.OrderSnapshot
	Notional decimal.Decimal // filled quantity times average fill price
}

// FillHandler reacts to an entry order reaching the filled state, e.g. by
// submitting protective stop-loss and take-profit orders. The monitor invokes
// it at most once per order id.
type FillHandler interface {
	HandleFill(ctx context.Context, fill FilledOrder)
}

// Params collects the dependencies of a Monitor.
type Params struct {
	Logger    *zap.Logger
	Orders    broker.OrderClient
	Positions broker.PositionClient
	Interval  time.Duration
	OnFill    FillHandler // optional; fills are still logged without it
}

// Monitor owns the set of orders being tracked across poll cycles. The set is
// keyed by venue order id and replaced wholesale at the end of every cycle.
type Monitor struct {
	logger    *zap.Logger
	orders    broker.OrderClient
	positions broker.PositionClient
	interval  time.Duration
	onFill    FillHandler

	mu     sync.Mutex
	active map[string]broker.OrderSnapshot

	now func() time.Time
}

// New creates a Monitor. It starts tracking only once Run is called.
func New(p Params) *Monitor {
	return &Monitor{
		logger:    p.Logger,
		orders:    p.Orders,
		positions: p.Positions,
		interval:  p.Interval,
		onFill:    p.OnFill,
		active:    make(map[string]broker.OrderSnapshot),
		now:       time.Now,
	}
}

// Run polls the venue until ctx is cancelled. The interval is measured from
// the end of one cycle to the start of the next. Errors inside a cycle are
// logged and void that cycle; they never terminate the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Order monitoring started", zap.Duration("interval", m.interval))
	err := scheduler.Periodic{Interval: m.interval}.Run(ctx, m.checkOrders)
	m.logger.Info("Order monitoring stopped")
	return err
}

// TrackedCount returns how many orders the monitor is currently tracking.
func (m *Monitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// checkOrders executes one poll cycle: fetch today's open orders, diff them
// against the tracked set, re-check every disappeared order by id and classify
// it. The tracked set is only replaced when the open-set query succeeded, so a
// failed query leaves the previous cycle's view intact.
func (m *Monitor) checkOrders(ctx context.Context) {
	open, err := m.orders.ListOrders(ctx, broker.OrderFilter{
		Status: broker.FilterOpen,
		After:  startOfDay(m.now()),
	})
	if err != nil {
		m.logger.Error("Failed to query open orders, skipping cycle", zap.Error(err))
		return
	}

	next := make(map[string]broker.OrderSnapshot, len(open))
	for _, o := range open {
		next[o.ID] = o
	}

	m.mu.Lock()
	prev := m.active
	m.mu.Unlock()

	for id, last := range prev {
		if _, ok := next[id]; ok {
			continue
		}
		m.reclassify(ctx, id, last, next)
	}

	m.mu.Lock()
	m.active = next
	m.mu.Unlock()

	m.logger.Debug("Active order set updated", zap.Int("tracked", len(next)))
}

// reclassify resolves one order that disappeared from the open set. Orders in
// transient states, and orders whose re-check failed, are written back into
// next so the following cycle evaluates them again.
func (m *Monitor) reclassify(ctx context.Context, id string, last broker.OrderSnapshot, next map[string]broker.OrderSnapshot) {
	order, err := m.orders.GetOrder(ctx, id)
	if errors.Is(err, broker.ErrOrderNotFound) {
		m.logger.Warn("Tracked order unknown to venue, dropping",
			zap.String("order_id", id),
			zap.String("symbol", last.Symbol))
		return
	}
	if err != nil {
		m.logger.Error("Failed to re-check order, keeping for next cycle",
			zap.String("order_id", id),
			zap.String("symbol", last.Symbol),
			zap.Error(err))
		next[id] = last
		return
	}

	switch {
	case order.Status == broker.StatusFilled:
		m.announceFill(ctx, order)
	case order.Status.Terminal():
		m.logger.Info("Order cancelled or expired",
			zap.String("order_id", order.ID),
			zap.String("symbol", order.Symbol),
			zap.String("type", order.Type),
			zap.String("status", string(order.Status)))
	default:
		// Not in the open set yet not terminal, e.g. pending_cancel or a
		// listing race. Track the fresh snapshot and re-evaluate next cycle.
		next[id] = order
	}
}

func (m *Monitor) announceFill(ctx context.Context, order broker.OrderSnapshot) {
	notional := order.FilledAvgPrice.Mul(order.FilledQty)
	m.logger.Info("Order filled",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("filled_qty", order.FilledQty.String()),
		zap.String("avg_price", order.FilledAvgPrice.String()),
		zap.String("notional", notional.StringFixed(2)))

	if m.onFill != nil {
		m.onFill.HandleFill(ctx, FilledOrder{Order: order, Notional: notional})
	}
}

// Snapshot is a read-only projection of current venue state.
type Snapshot struct {
	Orders    []broker.OrderSnapshot
	Positions []broker.PositionSnapshot
}

// Snapshot queries the venue for today's open orders and all held positions.
// It never touches the tracked order set, so it is safe to call concurrently
// with Run.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	orders, err := m.orders.ListOrders(ctx, broker.OrderFilter{
		Status: broker.FilterOpen,
		After:  startOfDay(m.now()),
	})
	if err != nil {
		return Snapshot{}, err
	}
	positions, err := m.positions.ListPositions(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Orders: orders, Positions: positions}, nil
}

// LogSnapshot fetches a venue snapshot and writes it to the log, one line per
// position and order. Query failures are logged and swallowed so a periodic
// reporting loop keeps running.
func (m *Monitor) LogSnapshot(ctx context.Context) {
	snap, err := m.Snapshot(ctx)
	if err != nil {
		m.logger.Error("Failed to fetch venue snapshot", zap.Error(err))
		return
	}

	m.logger.Info("Portfolio status",
		zap.Int("positions", len(snap.Positions)),
		zap.Int("open_orders", len(snap.Orders)))

	for _, p := range snap.Positions {
		m.logger.Info("Position",
			zap.String("symbol", p.Symbol),
			zap.String("qty", p.Qty.String()),
			zap.String("entry_price", p.AvgEntryPrice.StringFixed(2)),
			zap.String("current_price", p.CurrentPrice.StringFixed(2)),
			zap.String("unrealized_pl", p.UnrealizedPL.StringFixed(2)),
			zap.String("unrealized_plpc", p.UnrealizedPLPct.StringFixed(2)+"%"))
	}
	for _, o := range snap.Orders {
		m.logger.Info("Open order",
			zap.String("order_id", o.ID),
			zap.String("symbol", o.Symbol),
			zap.String("side", string(o.Side)),
			zap.String("type", o.Type),
			zap.String("qty", o.Qty.String()),
			zap.String("status", string(o.Status)))
	}
}

// startOfDay returns local midnight of the given time, the opened-after
// boundary for "orders placed today".
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
