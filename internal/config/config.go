package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Alpaca  Alpaca  `mapstructure:"alpaca"`
	Trading Trading `mapstructure:"trading"`
	Monitor Monitor `mapstructure:"monitor"`
	Feed    Feed    `mapstructure:"feed"`
	Logger  Logger  `mapstructure:"logger"`
	Server  Server  `mapstructure:"server"`
}

// Alpaca holds the configuration for the Alpaca trading API.
type Alpaca struct {
	ApiKey         string  `mapstructure:"api_key"`
	SecretKey      string  `mapstructure:"secret_key"`
	Paper          bool    `mapstructure:"paper"`
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Trading holds the configuration for signal filtering and order placement.
type Trading struct {
	Symbols           []string `mapstructure:"symbols"`
	MinConfidence     float64  `mapstructure:"min_confidence"`
	MinRiskReward     float64  `mapstructure:"min_risk_reward"`
	TimeInForce       string   `mapstructure:"time_in_force"`
	VerifyBuyingPower bool     `mapstructure:"verify_buying_power"`
	AutoConfirm       bool     `mapstructure:"auto_confirm"`
	DryRun            bool     `mapstructure:"dry_run"`
}

// Monitor holds the configuration for the order lifecycle monitor.
type Monitor struct {
	CheckInterval int `mapstructure:"check_interval"`
}

// Feed holds the configuration for signal feed discovery.
type Feed struct {
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"`
}

// Server holds the configuration for the monitor status server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment
// variables still apply.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Alpaca's conventional variable names for credentials.
	_ = viper.BindEnv("alpaca.api_key", "APCA_API_KEY_ID", "ALPACA_API_KEY")
	_ = viper.BindEnv("alpaca.secret_key", "APCA_API_SECRET_KEY", "ALPACA_SECRET_KEY")

	// Set default values
	viper.SetDefault("alpaca.paper", true)
	viper.SetDefault("alpaca.rate_limit", 3)      // requests per second
	viper.SetDefault("alpaca.rate_limit_burst", 5) // burst size
	viper.SetDefault("trading.min_confidence", 0.5)
	viper.SetDefault("trading.min_risk_reward", 1.5)
	viper.SetDefault("trading.time_in_force", "gtc")
	viper.SetDefault("trading.verify_buying_power", true)
	viper.SetDefault("monitor.check_interval", 60) // seconds between poll cycles
	viper.SetDefault("feed.dir", "./data/signals")
	viper.SetDefault("feed.pattern", "orders_*.json")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("server.port", 8080)

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}

// Validate checks the settings every command needs before talking to the venue.
func (c *Config) Validate() error {
	if c.Alpaca.ApiKey == "" || c.Alpaca.SecretKey == "" {
		return errors.New("alpaca credentials missing: set APCA_API_KEY_ID and APCA_API_SECRET_KEY")
	}
	if c.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("monitor.check_interval must be positive, got %d", c.Monitor.CheckInterval)
	}
	return nil
}
