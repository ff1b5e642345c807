// Package alpaca implements the broker capability interfaces against the
// Alpaca Trading REST API.
package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"alpaca-signal-bot/internal/broker"
	"alpaca-signal-bot/internal/config"
)

const (
	liveBaseURL  = "https://api.alpaca.markets/v2"
	paperBaseURL = "https://paper-api.alpaca.markets/v2"

	orderTypeStopLimit = "stop_limit"

	// Venue error code for orders whose notional exceeds buying power.
	codeInsufficientBuyingPower = 40310000
)

// Client is a client for the Alpaca Trading REST API.
// It implements the broker capability interfaces.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the broker contracts
var _ broker.Client = (*Client)(nil)

// NewClient creates a new Alpaca REST API client.
func NewClient(cfg *config.Alpaca, logger *zap.Logger) (*Client, error) {
	if cfg.ApiKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("alpaca credentials are not set")
	}

	var url string
	switch {
	case cfg.BaseURL != "":
		url = cfg.BaseURL
	case cfg.Paper:
		url = paperBaseURL
		logger.Info("Using Alpaca paper trading API")
	default:
		url = liveBaseURL
		logger.Warn("Using Alpaca live trading API")
	}

	client := resty.New().
		SetBaseURL(url).
		SetHeader("APCA-API-KEY-ID", cfg.ApiKey).
		SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}, nil
}

// APIError is a non-retryable error response from the venue.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca: %s (http %d, code %d)", e.Message, e.StatusCode, e.Code)
}

// Unwrap maps venue rejections onto the shared broker error kinds so callers
// can match with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return broker.ErrOrderNotFound
	case e.Code == codeInsufficientBuyingPower:
		return broker.ErrInsufficientFunds
	case e.StatusCode == http.StatusForbidden && strings.Contains(e.Message, "buying power"):
		return broker.ErrInsufficientFunds
	case e.StatusCode == http.StatusUnprocessableEntity:
		return broker.ErrInvalidOrderParams
	}
	return nil
}

func newAPIError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	return apiErr
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze the failure and decide whether to retry.
		shouldRetry := false
		var retryAfter time.Duration

		if err != nil {
			// Network or other client-side errors.
			shouldRetry = true
		} else {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, aerr := strconv.Atoi(resp.Header().Get("Retry-After")); aerr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500: // Server errors
				shouldRetry = true
			}
		}

		if !shouldRetry {
			return nil, newAPIError(resp)
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, newAPIError(resp))
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetAccount fetches the current account state.
// This is also a good call to test connectivity and credentials.
func (c *Client) GetAccount(ctx context.Context) (broker.AccountSnapshot, error) {
	req := c.client.R().SetResult(&accountPayload{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/account", req)
	if err != nil {
		c.logger.Error("Failed to get account", zap.Error(err))
		return broker.AccountSnapshot{}, fmt.Errorf("failed to get account: %w", err)
	}

	return resp.Result().(*accountPayload).toSnapshot(), nil
}

// PlaceStopLimitOrder submits a stop-limit order to the venue. Prices are
// rounded to whole cents before submission. A client order id is generated
// when the request does not carry one.
func (c *Client) PlaceStopLimitOrder(ctx context.Context, order broker.StopLimitOrderRequest) (broker.OrderSnapshot, error) {
	if !order.Side.Valid() {
		return broker.OrderSnapshot{}, fmt.Errorf("side %q: %w", order.Side, broker.ErrInvalidOrderParams)
	}
	if order.Qty <= 0 {
		return broker.OrderSnapshot{}, fmt.Errorf("quantity %d: %w", order.Qty, broker.ErrInvalidOrderParams)
	}
	tif := order.TimeInForce
	if tif == "" {
		tif = broker.TimeInForceGTC
	}
	if tif != broker.TimeInForceGTC && tif != broker.TimeInForceDay {
		return broker.OrderSnapshot{}, fmt.Errorf("time in force %q: %w", tif, broker.ErrInvalidOrderParams)
	}
	clientOrderID := order.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	payload := orderRequestPayload{
		Symbol:        order.Symbol,
		Qty:           strconv.FormatInt(order.Qty, 10),
		Side:          string(order.Side),
		Type:          orderTypeStopLimit,
		TimeInForce:   string(tif),
		LimitPrice:    order.LimitPrice.Round(2).String(),
		StopPrice:     order.StopPrice.Round(2).String(),
		ClientOrderID: clientOrderID,
	}

	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&orderPayload{})

	resp, err := c.doRequest(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		c.logger.Error("Failed to place order",
			zap.Error(err),
			zap.String("symbol", order.Symbol),
		)
		return broker.OrderSnapshot{}, fmt.Errorf("failed to place order: %w", err)
	}

	snapshot := resp.Result().(*orderPayload).toSnapshot()
	c.logger.Info("Successfully placed stop-limit order",
		zap.String("id", snapshot.ID),
		zap.String("symbol", snapshot.Symbol),
		zap.String("side", string(snapshot.Side)),
		zap.Int64("qty", order.Qty),
	)
	return snapshot, nil
}

// ListOrders fetches orders matching the filter.
func (c *Client) ListOrders(ctx context.Context, filter broker.OrderFilter) ([]broker.OrderSnapshot, error) {
	var payloads []orderPayload

	req := c.client.R().
		SetResult(&payloads).
		SetHeader("Content-Type", "application/json")
	if filter.Status != "" {
		req.SetQueryParam("status", string(filter.Status))
	}
	if !filter.After.IsZero() {
		req.SetQueryParam("after", filter.After.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(filter.Limit))
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/orders", req)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := resp.Result().(*[]orderPayload)
	orders := make([]broker.OrderSnapshot, 0, len(*result))
	for _, p := range *result {
		orders = append(orders, p.toSnapshot())
	}

	return orders, nil
}

// GetOrder fetches the current snapshot for one order id.
func (c *Client) GetOrder(ctx context.Context, id string) (broker.OrderSnapshot, error) {
	req := c.client.R().SetResult(&orderPayload{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/orders/"+id, req)
	if err != nil {
		return broker.OrderSnapshot{}, fmt.Errorf("failed to get order %s: %w", id, err)
	}

	return resp.Result().(*orderPayload).toSnapshot(), nil
}

// ListPositions fetches all currently held positions.
func (c *Client) ListPositions(ctx context.Context) ([]broker.PositionSnapshot, error) {
	var payloads []positionPayload

	req := c.client.R().
		SetResult(&payloads).
		SetHeader("Content-Type", "application/json")

	resp, err := c.doRequest(ctx, http.MethodGet, "/positions", req)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	result := resp.Result().(*[]positionPayload)
	positions := make([]broker.PositionSnapshot, 0, len(*result))
	for _, p := range *result {
		positions = append(positions, p.toSnapshot())
	}

	return positions, nil
}
