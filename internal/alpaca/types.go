package alpaca

import (
	"time"

	"github.com/shopspring/decimal"

	"alpaca-signal-bot/internal/broker"
)

// accountPayload mirrors the venue's account JSON. Monetary values arrive as
// decimal strings.
type accountPayload struct {
	Status           string `json:"status"`
	BuyingPower      string `json:"buying_power"`
	Cash             string `json:"cash"`
	PortfolioValue   string `json:"portfolio_value"`
	TradingBlocked   bool   `json:"trading_blocked"`
	AccountBlocked   bool   `json:"account_blocked"`
	DaytradeCount    int    `json:"daytrade_count"`
	PatternDayTrader bool   `json:"pattern_day_trader"`
	Multiplier       string `json:"multiplier"`
}

func (p *accountPayload) toSnapshot() broker.AccountSnapshot {
	return broker.AccountSnapshot{
		BuyingPower:      dec(p.BuyingPower),
		Cash:             dec(p.Cash),
		PortfolioValue:   dec(p.PortfolioValue),
		Status:           p.Status,
		TradingBlocked:   p.TradingBlocked,
		AccountBlocked:   p.AccountBlocked,
		DaytradeCount:    p.DaytradeCount,
		PatternDayTrader: p.PatternDayTrader,
		Multiplier:       p.Multiplier,
	}
}

// orderRequestPayload is the body for order submission. The venue expects all
// numeric fields as strings.
type orderRequestPayload struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price"`
	StopPrice     string `json:"stop_price"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// orderPayload mirrors the venue's order JSON. filled_avg_price, limit_price
// and stop_price are null until applicable, which decodes as the empty string.
type orderPayload struct {
	ID             string    `json:"id"`
	ClientOrderID  string    `json:"client_order_id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Type           string    `json:"type"`
	Qty            string    `json:"qty"`
	FilledQty      string    `json:"filled_qty"`
	FilledAvgPrice string    `json:"filled_avg_price"`
	LimitPrice     string    `json:"limit_price"`
	StopPrice      string    `json:"stop_price"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *orderPayload) toSnapshot() broker.OrderSnapshot {
	return broker.OrderSnapshot{
		ID:             p.ID,
		ClientOrderID:  p.ClientOrderID,
		Symbol:         p.Symbol,
		Side:           broker.OrderSide(p.Side),
		Type:           p.Type,
		Qty:            dec(p.Qty),
		FilledQty:      dec(p.FilledQty),
		FilledAvgPrice: dec(p.FilledAvgPrice),
		LimitPrice:     dec(p.LimitPrice),
		StopPrice:      dec(p.StopPrice),
		Status:         broker.OrderStatus(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// positionPayload mirrors the venue's position JSON.
type positionPayload struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
	MarketValue    string `json:"market_value"`
	CostBasis      string `json:"cost_basis"`
}

func (p *positionPayload) toSnapshot() broker.PositionSnapshot {
	return broker.PositionSnapshot{
		Symbol:        p.Symbol,
		Qty:           dec(p.Qty),
		AvgEntryPrice: dec(p.AvgEntryPrice),
		CurrentPrice:  dec(p.CurrentPrice),
		UnrealizedPL:  dec(p.UnrealizedPL),
		// The venue reports a fraction; the snapshot carries a percentage.
		UnrealizedPLPct: dec(p.UnrealizedPLPC).Mul(decimal.NewFromInt(100)),
		MarketValue:     dec(p.MarketValue),
		CostBasis:       dec(p.CostBasis),
	}
}

// dec converts one of the venue's decimal strings. Empty strings (JSON null)
// and malformed values become zero; payloads are venue-authoritative.
func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
