package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"alpaca-signal-bot/internal/alpaca"
	"alpaca-signal-bot/internal/config"
	"alpaca-signal-bot/internal/feed"
	"alpaca-signal-bot/internal/logger"
)

// fail prints the failure and exits non-zero so shell scripts can gate on it.
func fail(format string, args ...any) {
	fmt.Printf("✗ "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "./configs", "path to the config directory")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fail("Could not load config: %v", err)
	}

	// Client internals log at error level only; this tool owns stdout.
	log, err := logger.NewLogger("error", "console", "")
	if err != nil {
		fail("Could not initialize logger: %v", err)
	}
	defer log.Sync()

	fmt.Println("Verifying Alpaca trading setup...")
	fmt.Println()

	if cfg.Alpaca.ApiKey == "" || cfg.Alpaca.SecretKey == "" {
		fail("Alpaca credentials are not set (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}
	fmt.Println("✓ Credentials found")

	mode := "live"
	if cfg.Alpaca.Paper {
		mode = "paper"
	}
	fmt.Printf("✓ Trading mode: %s\n", mode)

	client, err := alpaca.NewClient(&cfg.Alpaca, log)
	if err != nil {
		fail("Could not create API client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	account, err := client.GetAccount(ctx)
	if err != nil {
		fail("Could not connect to Alpaca API: %v", err)
	}
	fmt.Println("✓ Connected to Alpaca API")

	fmt.Println()
	fmt.Println("Account:")
	fmt.Printf("  Status:             %s\n", account.Status)
	fmt.Printf("  Portfolio Value:    $%s\n", account.PortfolioValue.StringFixed(2))
	fmt.Printf("  Buying Power:       $%s\n", account.BuyingPower.StringFixed(2))
	fmt.Printf("  Cash:               $%s\n", account.Cash.StringFixed(2))
	fmt.Printf("  Multiplier:         %s\n", account.Multiplier)
	fmt.Printf("  Daytrade Count:     %d\n", account.DaytradeCount)
	fmt.Printf("  Pattern Day Trader: %t\n", account.PatternDayTrader)
	fmt.Println()

	switch path, err := feed.Latest(log, cfg.Feed.Dir, cfg.Feed.Pattern); {
	case err != nil:
		fmt.Printf("! Signal feed not reachable: %v\n", err)
	case path == "":
		fmt.Printf("! No signal files in %s yet\n", cfg.Feed.Dir)
	default:
		fmt.Printf("✓ Latest signal file: %s\n", filepath.Base(path))
	}

	if err := account.Tradable(); err != nil {
		fmt.Println()
		fail("Account is not ready for trading: %v", err)
	}
	fmt.Println()
	fmt.Println("✓ Account is ready for trading")
}
