package pricefeed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sony/gobreaker"
	"tipscore/internal/config"
	"tipscore/internal/ratelimit"
)

// AlpacaSource fetches latest trade prices from the Alpaca market data API.
// Calls pass through a sliding-window rate limiter and a circuit breaker: an
// open breaker reports the symbol as unavailable instead of hammering an API
// that is already failing.
type AlpacaSource struct {
	logger  *slog.Logger
	client  *marketdata.Client
	limiter *ratelimit.Window
	breaker *gobreaker.CircuitBreaker
}

// NewAlpacaSource creates an Alpaca-backed price source.
func NewAlpacaSource(logger *slog.Logger, cfg config.AlpacaConfig, limiter *ratelimit.Window) *AlpacaSource {
	settings := gobreaker.Settings{Name: "alpaca"}
	settings.Interval = 60 * time.Second
	settings.Timeout = 30 * time.Second
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}

	return &AlpacaSource{
		logger: logger,
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		}),
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (s *AlpacaSource) Name() string {
	return "alpaca"
}

// Current returns the latest trade price for symbol. The exchange hint is not
// needed; Alpaca routes by symbol.
func (s *AlpacaSource) Current(ctx context.Context, symbol, exchangeHint string) (Quote, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Quote{}, false, err
	}

	type result struct {
		trade *marketdata.Trade
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := s.breaker.Execute(func() (interface{}, error) {
			return s.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		})
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{trade: out.(*marketdata.Trade)}
	}()

	select {
	case <-ctx.Done():
		return Quote{}, false, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, gobreaker.ErrOpenState) || errors.Is(r.err, gobreaker.ErrTooManyRequests) {
				s.logger.Warn("AlpacaSource: circuit open, skipping lookup", "symbol", symbol)
			} else {
				s.logger.Warn("AlpacaSource: price lookup failed", "symbol", symbol, "error", r.err)
			}
			return Quote{}, false, nil
		}
		if r.trade == nil || r.trade.Price <= 0 {
			return Quote{}, false, nil
		}
		return Quote{Price: r.trade.Price, At: r.trade.Timestamp}, true, nil
	}
}
