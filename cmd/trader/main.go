package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"alpaca-signal-bot/internal/alpaca"
	"alpaca-signal-bot/internal/config"
	"alpaca-signal-bot/internal/feed"
	"alpaca-signal-bot/internal/logger"
	"alpaca-signal-bot/internal/signals"
	"alpaca-signal-bot/internal/trader"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath    = flag.String("config", "./configs", "path to the config directory")
		symbolsFlag   = flag.String("symbols", "", "comma-separated symbol allow-list, e.g. AAPL,MSFT (overrides config)")
		minConfidence = flag.Float64("min-confidence", -1, "minimum signal confidence (overrides config)")
		minRiskReward = flag.Float64("min-risk-reward", -1, "minimum risk/reward ratio (overrides config)")
		watch         = flag.Bool("watch", false, "keep running and trade each new signal file as it appears")
		yes           = flag.Bool("yes", false, "submit orders without interactive confirmation")
	)
	flag.Parse()

	// Load application configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	if *symbolsFlag != "" {
		cfg.Trading.Symbols = splitSymbols(*symbolsFlag)
	}
	if *minConfidence >= 0 {
		cfg.Trading.MinConfidence = *minConfidence
	}
	if *minRiskReward >= 0 {
		cfg.Trading.MinRiskReward = *minRiskReward
	}
	if *yes {
		cfg.Trading.AutoConfirm = true
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

	// Initialize Alpaca REST client and verify the account is usable.
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

	account, err := client.GetAccount(ctx)
	if err != nil {
		log.Fatal("Failed to connect to Alpaca API", zap.Error(err))
	}
	if err := account.Tradable(); err != nil {
		log.Fatal("Account is not ready for trading", zap.Error(err))
	}
	log.Info("Successfully connected to Alpaca API.",
		zap.String("status", account.Status),
		zap.String("portfolio_value", account.PortfolioValue.StringFixed(2)),
		zap.String("buying_power", account.BuyingPower.StringFixed(2)))

	processor := signals.NewProcessor(log, cfg.Trading.MinConfidence, cfg.Trading.MinRiskReward, cfg.Trading.Symbols)

	var confirm trader.Confirmer = trader.NewStdinConfirmer(os.Stdin, os.Stdout)
	if cfg.Trading.AutoConfirm || *watch {
		if *watch && !cfg.Trading.AutoConfirm {
			log.Info("Watch mode submits without interactive confirmation")
		}
		confirm = trader.AutoConfirmer{}
	}
	executor := trader.NewExecutor(log, &cfg.Trading, client, confirm)

	latest, err := feed.Latest(log, cfg.Feed.Dir, cfg.Feed.Pattern)
	if err != nil {
		log.Fatal("Could not locate the signal feed", zap.Error(err))
	}

	if !*watch {
		if latest == "" {
			log.Fatal("No signal files found",
				zap.String("dir", cfg.Feed.Dir),
				zap.String("pattern", cfg.Feed.Pattern))
		}
		if err := runOnce(ctx, log, client, processor, executor, latest); err != nil {
			log.Fatal("Signal run failed", zap.Error(err))
		}
		return
	}

	// Watch mode: trade the newest existing file, then every new one.
	watcher := feed.NewWatcher(log, cfg.Feed.Dir, cfg.Feed.Pattern)
	files, err := watcher.Watch(ctx)
	if err != nil {
		log.Fatal("Could not watch the signal feed", zap.Error(err))
	}

	if latest != "" {
		if err := runOnce(ctx, log, client, processor, executor, latest); err != nil {
			log.Error("Signal run failed", zap.Error(err))
		}
	}
	for path := range files {
		if err := runOnce(ctx, log, client, processor, executor, path); err != nil {
			log.Error("Signal run failed", zap.Error(err))
		}
	}

	log.Info("Bot has been shut down.")
}

// runOnce trades one signal file against a fresh account snapshot.
func runOnce(ctx context.Context, log *zap.Logger, client *alpaca.Client, processor *signals.Processor, executor *trader.Executor, path string) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read signal file: %w", err)
	}

	// Equity moves between runs, so each file is sized against current state.
	account, err := client.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("could not refresh account: %w", err)
	}
	if err := account.Tradable(); err != nil {
		return fmt.Errorf("account is not ready for trading: %w", err)
	}

	log.Info("Processing signal file",
		zap.String("file", filepath.Base(path)),
		zap.String("equity", account.PortfolioValue.StringFixed(2)))

	batch, err := processor.Process(doc, account.PortfolioValue)
	if err != nil {
		return fmt.Errorf("could not process %s: %w", filepath.Base(path), err)
	}
	if batch.Empty() {
		log.Info("No signals passed the filters",
			zap.Int("malformed_entries", batch.Malformed()))
		return nil
	}

	executor.Execute(ctx, batch, account)
	return nil
}

// splitSymbols parses a comma-separated symbol list, uppercasing each entry.
func splitSymbols(s string) []string {
	var symbols []string
	for _, part := range strings.Split(s, ",") {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}
