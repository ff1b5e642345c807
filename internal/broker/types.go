package broker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Valid reports whether the side is one the venue accepts.
func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TimeInForce controls how long an order stays working.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceDay TimeInForce = "day"
)

// OrderStatus is the venue-reported lifecycle state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusAccepted        OrderStatus = "accepted"
	StatusPendingNew      OrderStatus = "pending_new"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusExpired         OrderStatus = "expired"
	StatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether no further transitions are tracked for the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// StatusFilter selects which orders a listing query returns.
type StatusFilter string

const (
	FilterOpen   StatusFilter = "open"
	FilterClosed StatusFilter = "closed"
	FilterAll    StatusFilter = "all"
)

// AccountSnapshot is a point-in-time projection of the trading account.
type AccountSnapshot struct {
	BuyingPower      decimal.Decimal
	Cash             decimal.Decimal
	PortfolioValue   decimal.Decimal
	Status           string
	TradingBlocked   bool
	AccountBlocked   bool
	DaytradeCount    int
	PatternDayTrader bool
	Multiplier       string
}

// Tradable reports whether the account can submit orders right now. It
// returns a descriptive error naming the first blocking condition found.
func (a AccountSnapshot) Tradable() error {
	if !strings.EqualFold(a.Status, "active") {
		return fmt.Errorf("account status is %s, expected ACTIVE", a.Status)
	}
	if a.TradingBlocked {
		return errors.New("trading is blocked on this account")
	}
	if a.AccountBlocked {
		return errors.New("account is blocked")
	}
	return nil
}

// OrderSnapshot is a point-in-time projection of one order as reported by the
// venue. Snapshots are never merged in place; each poll replaces the prior set.
type OrderSnapshot struct {
	ID             string
	ClientOrderID  string
	Symbol         string
	Side           OrderSide
	Type           string
	Qty            decimal.Decimal
	FilledQty      decimal.Decimal
	FilledAvgPrice decimal.Decimal
	LimitPrice     decimal.Decimal
	StopPrice      decimal.Decimal
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PositionSnapshot is a point-in-time projection of one held position,
// recomputed on every query and never cached across cycles.
type PositionSnapshot struct {
	Symbol          string
	Qty             decimal.Decimal
	AvgEntryPrice   decimal.Decimal
	CurrentPrice    decimal.Decimal
	UnrealizedPL    decimal.Decimal
	UnrealizedPLPct decimal.Decimal
	MarketValue     decimal.Decimal
	CostBasis       decimal.Decimal
}
