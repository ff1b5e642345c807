// Package trader turns sized signals into stop-limit entry orders on the
// venue, one order per signal, in the order the feed listed them.
package trader

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"alpaca-signal-bot/internal/broker"
	"alpaca-signal-bot/internal/config"
	"alpaca-signal-bot/internal/signals"
)

// TradeDetails is everything a confirmer needs to present one proposed trade.
type TradeDetails struct {
	Signal       signals.TradingSignal
	Shares       int64
	TradeValue   decimal.Decimal
	AccountValue decimal.Decimal
}

// Confirmer approves or declines one proposed trade before submission.
type Confirmer interface {
	Confirm(trade TradeDetails) bool
}

// Summary counts the outcomes of one execution run.
type Summary struct {
	Placed    int // orders accepted by the venue (or simulated in dry-run)
	Failed    int // orders the venue or a pre-submission check rejected
	Skipped   int // zero-quantity signals and declined confirmations
	Malformed int // feed entries dropped during parsing
}

// Executor submits entry orders for a batch of sized signals. Failures are
// isolated per order; one rejection never aborts the remaining batch.
type Executor struct {
	logger  *zap.Logger
	cfg     *config.Trading
	orders  broker.OrderClient
	confirm Confirmer
}

// NewExecutor creates an Executor.
func NewExecutor(logger *zap.Logger, cfg *config.Trading, orders broker.OrderClient, confirm Confirmer) *Executor {
	return &Executor{
		logger:  logger,
		cfg:     cfg,
		orders:  orders,
		confirm: confirm,
	}
}

// Execute walks the batch in feed order and submits one stop-limit order per
// sized signal. The account snapshot provides the buying-power budget; each
// placed buy order reduces the remaining budget so a batch cannot overspend
// in aggregate.
func (e *Executor) Execute(ctx context.Context, batch *signals.Batch, account broker.AccountSnapshot) Summary {
	summary := Summary{Malformed: batch.Malformed()}
	remaining := account.BuyingPower

	e.logger.Info("Executing signal batch",
		zap.Int("signals", batch.Len()),
		zap.Strings("symbols", batch.Symbols()),
		zap.String("buying_power", remaining.StringFixed(2)))

	for _, symbol := range batch.Symbols() {
		for _, sized := range batch.ForSymbol(symbol) {
			if e.executeOne(ctx, sized, account, &remaining, &summary) {
				summary.Placed++
			}
		}
	}

	e.logger.Info("Execution complete",
		zap.Int("orders_placed", summary.Placed),
		zap.Int("orders_failed", summary.Failed),
		zap.Int("orders_skipped", summary.Skipped),
		zap.Int("malformed_entries", summary.Malformed))
	return summary
}

// executeOne runs the checks and the submission for a single signal. It
// reports true when an order was placed (or simulated) and updates the
// failed/skipped counters itself otherwise.
func (e *Executor) executeOne(ctx context.Context, sized signals.SizedSignal, account broker.AccountSnapshot, remaining *decimal.Decimal, summary *Summary) bool {
	sig := sized.Signal
	l := e.logger.With(
		zap.String("symbol", sig.Symbol),
		zap.Int("window_weeks", sig.WindowWeeks),
		zap.String("side", string(sig.Side)),
	)

	l.Info("Processing signal",
		zap.Float64("confidence", sig.Confidence),
		zap.Float64("risk_reward", sig.RiskReward),
		zap.String("entry_price", sig.EntryPrice.String()),
		zap.Int64("shares", sized.Quantity))

	if sized.Quantity == 0 {
		l.Warn("Position sized to zero shares, skipping trade",
			zap.String("position_size", sig.PositionSize.String()))
		summary.Skipped++
		return false
	}

	if !sig.Side.Valid() {
		l.Error("Signal side is not a valid order side")
		summary.Failed++
		return false
	}

	tradeValue := sig.EntryPrice.Mul(decimal.NewFromInt(sized.Quantity))

	if e.cfg.VerifyBuyingPower && sig.Side == broker.SideBuy && tradeValue.GreaterThan(*remaining) {
		err := fmt.Errorf("trade value %s exceeds remaining buying power %s: %w",
			tradeValue.StringFixed(2), remaining.StringFixed(2), broker.ErrInsufficientFunds)
		l.Error("Rejecting order before submission", zap.Error(err))
		summary.Failed++
		return false
	}

	if !e.confirm.Confirm(TradeDetails{
		Signal:       sig,
		Shares:       sized.Quantity,
		TradeValue:   tradeValue,
		AccountValue: account.PortfolioValue,
	}) {
		l.Info("Trade declined, skipping")
		summary.Skipped++
		return false
	}

	if e.cfg.DryRun {
		l.Warn("[Dry Run] Simulating stop-limit order",
			zap.Int64("qty", sized.Quantity),
			zap.String("stop_price", sig.EntryPrice.String()),
			zap.String("limit_price", sig.EntryLimitPrice.String()))
		e.spend(remaining, sig.Side, tradeValue)
		return true
	}

	order, err := e.orders.PlaceStopLimitOrder(ctx, broker.StopLimitOrderRequest{
		Symbol:      sig.Symbol,
		Qty:         sized.Quantity,
		Side:        sig.Side,
		TimeInForce: broker.TimeInForce(e.cfg.TimeInForce),
		LimitPrice:  sig.EntryLimitPrice,
		StopPrice:   sig.EntryPrice,
	})
	if err != nil {
		l.Error("Failed to place order", zap.Error(err))
		summary.Failed++
		return false
	}

	l.Info("Order placed successfully",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Int64("qty", sized.Quantity),
		zap.String("trade_value", tradeValue.StringFixed(2)))
	e.spend(remaining, sig.Side, tradeValue)
	return true
}

// spend reduces the remaining buying-power budget after a buy. Sells release
// buying power rather than consume it, so they leave the budget alone.
func (e *Executor) spend(remaining *decimal.Decimal, side broker.OrderSide, tradeValue decimal.Decimal) {
	if e.cfg.VerifyBuyingPower && side == broker.SideBuy {
		*remaining = remaining.Sub(tradeValue)
	}
}
