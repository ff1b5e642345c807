package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// APIServer exposes the monitor's venue snapshot over HTTP.
type APIServer struct {
	server    *http.Server
	monitor   *Monitor
	logger    *zap.Logger
	startTime time.Time
}

// NewAPIServer creates an APIServer listening on the given port.
func NewAPIServer(monitor *Monitor, port int, logger *zap.Logger) *APIServer {
	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	s := &APIServer{
		server:    server,
		monitor:   monitor,
		logger:    logger.Named("api-server"),
		startTime: time.Now(),
	}
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type positionStatus struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	EntryPrice    string `json:"entry_price"`
	CurrentPrice  string `json:"current_price"`
	UnrealizedPL  string `json:"unrealized_pl"`
	UnrealizedPct string `json:"unrealized_plpc"`
	MarketValue   string `json:"market_value"`
	CostBasis     string `json:"cost_basis"`
}

type orderStatus struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Qty        string `json:"qty"`
	FilledQty  string `json:"filled_qty"`
	LimitPrice string `json:"limit_price"`
	StopPrice  string `json:"stop_price"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.monitor.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("Failed to build status response", zap.Error(err))
		http.Error(w, "Failed to query venue", http.StatusBadGateway)
		return
	}

	status := struct {
		Uptime        string           `json:"uptime"`
		TrackedOrders int              `json:"tracked_orders"`
		Positions     []positionStatus `json:"positions"`
		OpenOrders    []orderStatus    `json:"open_orders"`
	}{
		Uptime:        time.Since(s.startTime).String(),
		TrackedOrders: s.monitor.TrackedCount(),
		Positions:     make([]positionStatus, 0, len(snap.Positions)),
		OpenOrders:    make([]orderStatus, 0, len(snap.Orders)),
	}

	for _, p := range snap.Positions {
		status.Positions = append(status.Positions, positionStatus{
			Symbol:        p.Symbol,
			Qty:           p.Qty.String(),
			EntryPrice:    p.AvgEntryPrice.String(),
			CurrentPrice:  p.CurrentPrice.String(),
			UnrealizedPL:  p.UnrealizedPL.String(),
			UnrealizedPct: p.UnrealizedPLPct.String(),
			MarketValue:   p.MarketValue.String(),
			CostBasis:     p.CostBasis.String(),
		})
	}
	for _, o := range snap.Orders {
		status.OpenOrders = append(status.OpenOrders, orderStatus{
			ID:         o.ID,
			Symbol:     o.Symbol,
			Side:       string(o.Side),
			Type:       o.Type,
			Qty:        o.Qty.String(),
			FilledQty:  o.FilledQty.String(),
			LimitPrice: o.LimitPrice.String(),
			StopPrice:  o.StopPrice.String(),
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  o.UpdatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
