package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alpaca-signal-bot/internal/alpaca"
	"alpaca-signal-bot/internal/config"
	"alpaca-signal-bot/internal/logger"
	"alpaca-signal-bot/internal/monitor"
	"alpaca-signal-bot/internal/scheduler"
)

// riskHook is the extension point invoked when an entry order fills. Placing
// the protective stop-loss and take-profit orders is delegated to downstream
// tooling; the hook records what filled so that tooling has a trail to act on.
type riskHook struct {
	log *zap.Logger
}

func (h *riskHook) HandleFill(_ context.Context, fill monitor.FilledOrder) {
	h.log.Info("Fill ready for risk management",
		zap.String("order_id", fill.Order.ID),
		zap.String("symbol", fill.Order.Symbol),
		zap.String("side", string(fill.Order.Side)),
		zap.String("notional", fill.Notional.StringFixed(2)))
}

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "./configs", "path to the config directory")
		interval   = flag.Int("interval", 0, "seconds between order checks (overrides config)")
		port       = flag.Int("port", 0, "status API port (overrides config)")
	)
	flag.Parse()

	// Load application configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}
	if *interval > 0 {
		cfg.Monitor.CheckInterval = *interval
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize Alpaca REST client
	client, err := alpaca.NewClient(&cfg.Alpaca, log)
	if err != nil {
		log.Fatal("Failed to create Alpaca client", zap.Error(err))
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if _, err := client.GetAccount(ctx); err != nil {
		log.Fatal("Failed to connect to Alpaca API", zap.Error(err))
	}
	log.Info("Successfully connected to Alpaca API.")

	checkInterval := time.Duration(cfg.Monitor.CheckInterval) * time.Second
	mon := monitor.New(monitor.Params{
		Logger:    log,
		Orders:    client,
		Positions: client,
		Interval:  checkInterval,
		OnFill:    &riskHook{log: log},
	})

	apiServer := monitor.NewAPIServer(mon, cfg.Server.Port, log)
	apiServer.Start()

	// Run the lifecycle monitor and the periodic portfolio report until the
	// shutdown signal lands.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})
	g.Go(func() error {
		return scheduler.Periodic{Interval: checkInterval}.Run(gctx, mon.LogSnapshot)
	})

	if err := g.Wait(); err != nil {
		log.Error("Monitoring stopped with error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server cleanly", zap.Error(err))
	}

	log.Info("Monitor has been shut down.")
}
