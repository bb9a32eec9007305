package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scoring   ScoringConfig
	Monitor   MonitorConfig
	PriceFeed PriceFeedConfig
	Database  DatabaseConfig
}

// ScoringConfig holds the weights and constants of the scoring engine.
type ScoringConfig struct {
	Weights         WeightsConfig        `mapstructure:"weights"`
	HalfLifeDays    float64              `mapstructure:"half_life_days"`
	RRFloor         float64              `mapstructure:"rr_floor"`
	RRCeiling       float64              `mapstructure:"rr_ceiling"`
	MaxExpectedTips int                  `mapstructure:"max_expected_tips"`
	MinScoredTips   int                  `mapstructure:"min_scored_tips"`
	ConfidenceZ     float64              `mapstructure:"confidence_z"`
	Tiers           TierThresholdsConfig `mapstructure:"tiers"`
}

// WeightsConfig defines the composite score weights. They must sum to 1.
type WeightsConfig struct {
	Accuracy    float64 `mapstructure:"accuracy"`
	RiskReward  float64 `mapstructure:"risk_reward"`
	Consistency float64 `mapstructure:"consistency"`
	Volume      float64 `mapstructure:"volume"`
}

// TierThresholdsConfig defines the minimum composite score per tier.
type TierThresholdsConfig struct {
	Bronze   float64 `mapstructure:"bronze"`
	Silver   float64 `mapstructure:"silver"`
	Gold     float64 `mapstructure:"gold"`
	Platinum float64 `mapstructure:"platinum"`
	Diamond  float64 `mapstructure:"diamond"`
}

// MonitorConfig defines the batch monitor settings.
type MonitorConfig struct {
	IntervalSeconds     int    `mapstructure:"interval_seconds"`
	Concurrency         int    `mapstructure:"concurrency"`
	PriceTimeoutSeconds int    `mapstructure:"price_timeout_seconds"`
	CryptoVenue         string `mapstructure:"crypto_venue"`
	CommodityVenue      string `mapstructure:"commodity_venue"`
}

// Interval returns the monitor cycle interval as a duration.
func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// PriceTimeout returns the per-lookup timeout as a duration.
func (m MonitorConfig) PriceTimeout() time.Duration {
	return time.Duration(m.PriceTimeoutSeconds) * time.Second
}

// PriceFeedConfig defines the market data source settings.
type PriceFeedConfig struct {
	Source    string          `mapstructure:"source"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Alpaca    AlpacaConfig    `mapstructure:"alpaca"`
	Binance   BinanceConfig   `mapstructure:"binance"`
}

// RateLimitConfig bounds outbound price lookups over a sliding window.
type RateLimitConfig struct {
	Calls         int `mapstructure:"calls"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window returns the rate limit window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// AlpacaConfig defines credentials for the Alpaca market data API.
type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// BinanceConfig defines the websocket ticker stream settings.
type BinanceConfig struct {
	Symbols           []string `mapstructure:"symbols"`
	StaleAfterSeconds int      `mapstructure:"stale_after_seconds"`
}

// StaleAfter returns the cache staleness bound as a duration.
func (b BinanceConfig) StaleAfter() time.Duration {
	return time.Duration(b.StaleAfterSeconds) * time.Second
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.DBName)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

// Validate rejects configurations that would silently corrupt every score.
// It is meant to run at startup, before any batch or recompute work.
func (c *Config) Validate() error {
	w := c.Scoring.Weights
	sum := w.Accuracy + w.RiskReward + w.Consistency + w.Volume
	if sum == 0 {
		return fmt.Errorf("scoring weights are missing")
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	if c.Scoring.HalfLifeDays <= 0 {
		return fmt.Errorf("scoring half_life_days must be positive, got %v", c.Scoring.HalfLifeDays)
	}
	if c.Scoring.RRCeiling <= c.Scoring.RRFloor {
		return fmt.Errorf("scoring rr_ceiling (%v) must exceed rr_floor (%v)", c.Scoring.RRCeiling, c.Scoring.RRFloor)
	}
	if c.Scoring.MaxExpectedTips <= 0 {
		return fmt.Errorf("scoring max_expected_tips must be positive, got %d", c.Scoring.MaxExpectedTips)
	}
	if c.Monitor.Concurrency <= 0 {
		return fmt.Errorf("monitor concurrency must be positive, got %d", c.Monitor.Concurrency)
	}
	return nil
}
