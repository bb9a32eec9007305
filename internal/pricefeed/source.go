package pricefeed

import (
	"context"
	"time"
)

// Quote is a current price observation for a symbol.
type Quote struct {
	Price float64
	At    time.Time
}

// Source defines the standard interface for market data sources. Current
// returns ok=false when no price is available for the symbol (unknown symbol,
// feed outage, stale data); that is an expected condition, not an error. The
// error return is reserved for caller-side cancellation.
type Source interface {
	Name() string
	Current(ctx context.Context, symbol, exchangeHint string) (Quote, bool, error)
}

// Streamer is implemented by sources that maintain a background connection.
// Start blocks until the context is cancelled.
type Streamer interface {
	Start(ctx context.Context) error
}
