// Package signals decodes, filters and sizes machine-generated trading
// signals from the daily JSON feed.
package signals

import (
	"github.com/shopspring/decimal"

	"alpaca-signal-bot/internal/broker"
)

// TradingSignal is one validated feed entry, keyed by (symbol, window).
// A signal is constructed once by the parser and never mutated afterwards.
// Monetary fields carry exact decimal values because they feed order
// submission and P&L math.
type TradingSignal struct {
	Date            string
	Symbol          string
	Side            broker.OrderSide
	Confidence      float64
	CurrentPrice    decimal.Decimal
	EntryPrice      decimal.Decimal // stop trigger of the entry order
	EntryLimitPrice decimal.Decimal
	TakeProfit      decimal.Decimal
	StopLoss        decimal.Decimal
	PositionSize    decimal.Decimal // fraction of equity, 0-1
	TimeBarrierDays int
	ExpiryDate      string
	Volatility      float64
	RiskReward      float64
	WindowWeeks     int
}

// Equal reports field-wise value equality, comparing decimals by value.
func (s TradingSignal) Equal(o TradingSignal) bool {
	return s.Date == o.Date &&
		s.Symbol == o.Symbol &&
		s.Side == o.Side &&
		s.Confidence == o.Confidence &&
		s.CurrentPrice.Equal(o.CurrentPrice) &&
		s.EntryPrice.Equal(o.EntryPrice) &&
		s.EntryLimitPrice.Equal(o.EntryLimitPrice) &&
		s.TakeProfit.Equal(o.TakeProfit) &&
		s.StopLoss.Equal(o.StopLoss) &&
		s.PositionSize.Equal(o.PositionSize) &&
		s.TimeBarrierDays == o.TimeBarrierDays &&
		s.ExpiryDate == o.ExpiryDate &&
		s.Volatility == o.Volatility &&
		s.RiskReward == o.RiskReward &&
		s.WindowWeeks == o.WindowWeeks
}

// SizedSignal pairs a signal with the whole-share quantity computed for it.
// A quantity of zero means the trade should be skipped downstream; the pair
// is still reported so the skip can be surfaced rather than silently ordered.
type SizedSignal struct {
	Signal   TradingSignal
	Quantity int64
}

// SizeFor computes the share quantity for a signal against account equity:
// equity × position_size ÷ entry_price, truncated toward zero. The result is
// never negative. A non-positive entry price sizes to zero rather than
// dividing by it.
func SizeFor(s TradingSignal, equity decimal.Decimal) int64 {
	if s.EntryPrice.Sign() <= 0 {
		return 0
	}
	qty := equity.Mul(s.PositionSize).Div(s.EntryPrice).IntPart()
	if qty < 0 {
		return 0
	}
	return qty
}

// Batch holds sized signals grouped by symbol. Symbols and the signals within
// each symbol keep the order in which the feed document listed them.
type Batch struct {
	symbols   []string
	bySymbol  map[string][]SizedSignal
	malformed int
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{bySymbol: make(map[string][]SizedSignal)}
}

// Add appends a sized signal, registering its symbol on first appearance.
func (b *Batch) Add(s SizedSignal) {
	sym := s.Signal.Symbol
	if _, ok := b.bySymbol[sym]; !ok {
		b.symbols = append(b.symbols, sym)
	}
	b.bySymbol[sym] = append(b.bySymbol[sym], s)
}

// Symbols returns the symbols in feed order.
func (b *Batch) Symbols() []string {
	return b.symbols
}

// ForSymbol returns the sized signals for one symbol in feed order.
func (b *Batch) ForSymbol(symbol string) []SizedSignal {
	return b.bySymbol[symbol]
}

// Len returns the total number of sized signals in the batch.
func (b *Batch) Len() int {
	n := 0
	for _, signals := range b.bySymbol {
		n += len(signals)
	}
	return n
}

// Empty reports whether no signal survived filtering.
func (b *Batch) Empty() bool {
	return len(b.symbols) == 0
}

// Malformed returns how many feed entries were rejected during parsing.
func (b *Batch) Malformed() int {
	return b.malformed
}
