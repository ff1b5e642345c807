package trader

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"alpaca-signal-bot/internal/broker"
	"alpaca-signal-bot/internal/config"
	"alpaca-signal-bot/internal/signals"
)

// mockOrderClient is a mock implementation of broker.OrderClient.
type mockOrderClient struct {
	mock.Mock
}

func (m *mockOrderClient) PlaceStopLimitOrder(ctx context.Context, req broker.StopLimitOrderRequest) (broker.OrderSnapshot, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(broker.OrderSnapshot)
	return order, args.Error(1)
}

func (m *mockOrderClient) ListOrders(ctx context.Context, filter broker.OrderFilter) ([]broker.OrderSnapshot, error) {
	args := m.Called(ctx, filter)
	orders, _ := args.Get(0).([]broker.OrderSnapshot)
	return orders, args.Error(1)
}

func (m *mockOrderClient) GetOrder(ctx context.Context, id string) (broker.OrderSnapshot, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(broker.OrderSnapshot)
	return order, args.Error(1)
}

// decliner rejects every trade.
type decliner struct{}

func (decliner) Confirm(TradeDetails) bool { return false }

func testTradingConfig() *config.Trading {
	return &config.Trading{
		TimeInForce:       "gtc",
		VerifyBuyingPower: true,
	}
}

func testAccount(buyingPower string) broker.AccountSnapshot {
	return broker.AccountSnapshot{
		BuyingPower:    decimal.RequireFromString(buyingPower),
		PortfolioValue: decimal.RequireFromString("10000"),
		Status:         "ACTIVE",
	}
}

func buySignal(symbol string, entry string, qty int64) signals.SizedSignal {
	return signals.SizedSignal{
		Signal: signals.TradingSignal{
			Symbol:          symbol,
			Side:            broker.SideBuy,
			Confidence:      0.8,
			RiskReward:      2.0,
			EntryPrice:      decimal.RequireFromString(entry),
			EntryLimitPrice: decimal.RequireFromString(entry).Add(decimal.RequireFromString("0.50")),
			TakeProfit:      decimal.RequireFromString(entry).Mul(decimal.RequireFromString("1.1")),
			StopLoss:        decimal.RequireFromString(entry).Mul(decimal.RequireFromString("0.95")),
			PositionSize:    decimal.RequireFromString("0.1"),
			WindowWeeks:     1,
		},
		Quantity: qty,
	}
}

func batchOf(sized ...signals.SizedSignal) *signals.Batch {
	b := signals.NewBatch()
	for _, s := range sized {
		b.Add(s)
	}
	return b
}

func TestExecutor_PlacesStopLimitOrder(t *testing.T) {
	// Arrange
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	sized := buySignal("AAPL", "100", 10)
	placed := broker.OrderSnapshot{ID: "ord-1", Status: broker.StatusNew}

	orders.On("PlaceStopLimitOrder", mock.Anything, mock.MatchedBy(func(req broker.StopLimitOrderRequest) bool {
		return req.Symbol == "AAPL" &&
			req.Side == broker.SideBuy &&
			req.Qty == 10 &&
			req.TimeInForce == broker.TimeInForceGTC &&
			req.StopPrice.Equal(decimal.RequireFromString("100")) &&
			req.LimitPrice.Equal(decimal.RequireFromString("100.50"))
	})).Return(placed, nil).Once()

	// Act
	summary := e.Execute(context.Background(), batchOf(sized), testAccount("10000"))

	// Assert
	orders.AssertExpectations(t)
	assert.Equal(t, Summary{Placed: 1}, summary)
}

func TestExecutor_SkipsZeroQuantity(t *testing.T) {
	// Arrange
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	// Act
	summary := e.Execute(context.Background(), batchOf(buySignal("AAPL", "100", 0)), testAccount("10000"))

	// Assert
	orders.AssertNotCalled(t, "PlaceStopLimitOrder", mock.Anything, mock.Anything)
	assert.Equal(t, Summary{Skipped: 1}, summary)
}

func TestExecutor_FailsInvalidSide(t *testing.T) {
	// Arrange
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	sized := buySignal("AAPL", "100", 10)
	sized.Signal.Side = "hold"

	// Act
	summary := e.Execute(context.Background(), batchOf(sized), testAccount("10000"))

	// Assert
	orders.AssertNotCalled(t, "PlaceStopLimitOrder", mock.Anything, mock.Anything)
	assert.Equal(t, Summary{Failed: 1}, summary)
}

func TestExecutor_DeclinedTradeSkipped(t *testing.T) {
	// Arrange
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, decliner{})

	// Act
	summary := e.Execute(context.Background(), batchOf(buySignal("AAPL", "100", 10)), testAccount("10000"))

	// Assert
	orders.AssertNotCalled(t, "PlaceStopLimitOrder", mock.Anything, mock.Anything)
	assert.Equal(t, Summary{Skipped: 1}, summary)
}

func TestExecutor_RejectsTradeOverBuyingPower(t *testing.T) {
	// Arrange: 10 shares at 100 against a 500 budget.
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	// Act
	summary := e.Execute(context.Background(), batchOf(buySignal("AAPL", "100", 10)), testAccount("500"))

	// Assert
	orders.AssertNotCalled(t, "PlaceStopLimitOrder", mock.Anything, mock.Anything)
	assert.Equal(t, Summary{Failed: 1}, summary)
}

func TestExecutor_BuyingPowerCheckCanBeDisabled(t *testing.T) {
	// Arrange
	orders := new(mockOrderClient)
	cfg := testTradingConfig()
	cfg.VerifyBuyingPower = false
	e := NewExecutor(zap.NewNop(), cfg, orders, AutoConfirmer{})

	orders.On("PlaceStopLimitOrder", mock.Anything, mock.Anything).
		Return(broker.OrderSnapshot{ID: "ord-1"}, nil).Once()

	// Act
	summary := e.Execute(context.Background(), batchOf(buySignal("AAPL", "100", 10)), testAccount("500"))

	// Assert
	orders.AssertExpectations(t)
	assert.Equal(t, Summary{Placed: 1}, summary)
}

func TestExecutor_BudgetSpansWholeBatch(t *testing.T) {
	// Arrange: two 1000-value buys against a 1500 budget. The first must
	// consume budget so the second is rejected before submission.
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	orders.On("PlaceStopLimitOrder", mock.Anything, mock.MatchedBy(func(req broker.StopLimitOrderRequest) bool {
		return req.Symbol == "AAPL"
	})).Return(broker.OrderSnapshot{ID: "ord-1"}, nil).Once()

	batch := batchOf(
		buySignal("AAPL", "100", 10),
		buySignal("MSFT", "200", 5),
	)

	// Act
	summary := e.Execute(context.Background(), batch, testAccount("1500"))

	// Assert
	orders.AssertExpectations(t)
	orders.AssertNumberOfCalls(t, "PlaceStopLimitOrder", 1)
	assert.Equal(t, Summary{Placed: 1, Failed: 1}, summary)
}

func TestExecutor_SellDoesNotConsumeBudget(t *testing.T) {
	// Arrange: a sell and a buy, each worth the whole budget. Only the buy
	// draws it down.
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	sell := buySignal("AAPL", "100", 10)
	sell.Signal.Side = broker.SideSell

	orders.On("PlaceStopLimitOrder", mock.Anything, mock.Anything).
		Return(broker.OrderSnapshot{ID: "ord-1"}, nil).Times(2)

	// Act
	summary := e.Execute(context.Background(), batchOf(sell, buySignal("MSFT", "100", 10)), testAccount("1000"))

	// Assert
	orders.AssertExpectations(t)
	assert.Equal(t, Summary{Placed: 2}, summary)
}

func TestExecutor_VenueRejectionIsolated(t *testing.T) {
	// Arrange: the venue rejects the first order; the second must still go out.
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	orders.On("PlaceStopLimitOrder", mock.Anything, mock.MatchedBy(func(req broker.StopLimitOrderRequest) bool {
		return req.Symbol == "AAPL"
	})).Return(broker.OrderSnapshot{}, broker.ErrInsufficientFunds).Once()
	orders.On("PlaceStopLimitOrder", mock.Anything, mock.MatchedBy(func(req broker.StopLimitOrderRequest) bool {
		return req.Symbol == "MSFT"
	})).Return(broker.OrderSnapshot{ID: "ord-2"}, nil).Once()

	batch := batchOf(
		buySignal("AAPL", "100", 1),
		buySignal("MSFT", "100", 1),
	)

	// Act
	summary := e.Execute(context.Background(), batch, testAccount("10000"))

	// Assert
	orders.AssertExpectations(t)
	assert.Equal(t, Summary{Placed: 1, Failed: 1}, summary)
}

func TestExecutor_DryRunPlacesNothing(t *testing.T) {
	// Arrange
	orders := new(mockOrderClient)
	cfg := testTradingConfig()
	cfg.DryRun = true
	e := NewExecutor(zap.NewNop(), cfg, orders, AutoConfirmer{})

	// Act
	summary := e.Execute(context.Background(), batchOf(buySignal("AAPL", "100", 10)), testAccount("10000"))

	// Assert
	orders.AssertNotCalled(t, "PlaceStopLimitOrder", mock.Anything, mock.Anything)
	assert.Equal(t, Summary{Placed: 1}, summary)
}

func TestExecutor_FeedOrderPreserved(t *testing.T) {
	// Arrange: three signals across two symbols; submissions must follow the
	// batch's feed order.
	orders := new(mockOrderClient)
	e := NewExecutor(zap.NewNop(), testTradingConfig(), orders, AutoConfirmer{})

	var submitted []string
	orders.On("PlaceStopLimitOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(broker.StopLimitOrderRequest)
			submitted = append(submitted, req.Symbol)
		}).
		Return(broker.OrderSnapshot{ID: "ord"}, nil).Times(3)

	msft := buySignal("MSFT", "200", 1)
	msft.Signal.WindowWeeks = 2

	batch := batchOf(
		buySignal("MSFT", "200", 1),
		buySignal("AAPL", "100", 1),
		msft,
	)

	// Act
	e.Execute(context.Background(), batch, testAccount("10000"))

	// Assert: MSFT windows stay grouped and ahead of AAPL.
	assert.Equal(t, []string{"MSFT", "MSFT", "AAPL"}, submitted)
}
