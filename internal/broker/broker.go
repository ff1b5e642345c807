// Package broker defines the capability contracts the trading pipeline and the
// order monitor consume, together with the venue-neutral value objects they
// exchange. The alpaca package provides the implementation.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountClient exposes account-level queries.
type AccountClient interface {
	GetAccount(ctx context.Context) (AccountSnapshot, error)
}

// OrderClient exposes order submission and order queries.
type OrderClient interface {
	PlaceStopLimitOrder(ctx context.Context, req StopLimitOrderRequest) (OrderSnapshot, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]OrderSnapshot, error)
	GetOrder(ctx context.Context, id string) (OrderSnapshot, error)
}

// PositionClient exposes queries over currently held positions.
type PositionClient interface {
	ListPositions(ctx context.Context) ([]PositionSnapshot, error)
}

// Client bundles the three capabilities implemented by a venue adapter.
type Client interface {
	AccountClient
	OrderClient
	PositionClient
}

// StopLimitOrderRequest describes a stop-limit entry order.
type StopLimitOrderRequest struct {
	Symbol        string
	Qty           int64
	Side          OrderSide
	TimeInForce   TimeInForce
	LimitPrice    decimal.Decimal
	StopPrice     decimal.Decimal
	ClientOrderID string
}

// OrderFilter narrows an order listing query.
type OrderFilter struct {
	Status StatusFilter
	After  time.Time
	Limit  int
}
