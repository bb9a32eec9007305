package pricefeed

import (
	"fmt"
	"log/slog"

	"tipscore/internal/config"
	"tipscore/internal/ratelimit"
)

// NewSource creates a price source based on the configured name. Sources that
// also implement Streamer need Start running in the background.
func NewSource(logger *slog.Logger, cfg config.PriceFeedConfig) (Source, error) {
	switch cfg.Source {
	case "alpaca":
		limiter := ratelimit.NewWindow(cfg.RateLimit.Calls, cfg.RateLimit.Window())
		return NewAlpacaSource(logger, cfg.Alpaca, limiter), nil
	case "binance":
		return NewBinanceSource(logger, cfg.Binance), nil
	default:
		return nil, fmt.Errorf("unknown price source: %s", cfg.Source)
	}
}
