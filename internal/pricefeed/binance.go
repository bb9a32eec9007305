package pricefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"tipscore/internal/config"
)

// BinanceSource streams live tickers from the Binance WebSocket API into an
// in-memory cache and serves Current lookups from it. Quotes older than the
// configured staleness bound count as unavailable.
type BinanceSource struct {
	logger     *slog.Logger
	symbols    []string
	staleAfter time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewBinanceSource creates a Binance-backed price source. Start must be
// running for Current to see fresh data.
func NewBinanceSource(logger *slog.Logger, cfg config.BinanceConfig) *BinanceSource {
	return &BinanceSource{
		logger:     logger,
		symbols:    cfg.Symbols,
		staleAfter: cfg.StaleAfter(),
		now:        time.Now,
		quotes:     make(map[string]Quote),
	}
}

func (b *BinanceSource) Name() string {
	return "binance"
}

// Current reads the last streamed price for symbol from the cache.
func (b *BinanceSource) Current(ctx context.Context, symbol, exchangeHint string) (Quote, bool, error) {
	b.mu.RLock()
	quote, ok := b.quotes[strings.ToUpper(symbol)]
	b.mu.RUnlock()

	if !ok {
		return Quote{}, false, nil
	}
	if b.staleAfter > 0 && b.now().Sub(quote.At) > b.staleAfter {
		return Quote{}, false, nil
	}
	return quote, true, nil
}

// Start connects to the combined ticker stream and keeps the cache fresh,
// reconnecting with backoff until the context is cancelled.
func (b *BinanceSource) Start(ctx context.Context) error {
	wsURL := b.streamURL()
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("BinanceSource: context cancelled, shutting down")
			return nil
		default:
			b.logger.Info("BinanceSource: connecting to WebSocket", "url", wsURL, "backoff", backoff)
			c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				b.logger.Error("BinanceSource: WebSocket connection failed", "error", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
					backoff *= 2
					if backoff > 16*time.Second {
						backoff = 16 * time.Second
					}
				}
				continue
			}

			// Reset backoff on successful connection
			backoff = time.Second
			b.logger.Info("BinanceSource: connected successfully")

			b.readLoop(ctx, c)
			c.Close()
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

func (b *BinanceSource) readLoop(ctx context.Context, c *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.ReadMessage()
			if err != nil {
				b.logger.Error("BinanceSource: failed to read message", "error", err)
				return
			}

			var msg struct {
				Stream string `json:"stream"`
				Data   struct {
					Symbol    string `json:"s"`
					LastPrice string `json:"c"`
					EventTime int64  `json:"E"`
				} `json:"data"`
			}
			if err := json.Unmarshal(message, &msg); err != nil {
				b.logger.Warn("BinanceSource: failed to parse message", "error", err)
				continue
			}
			if msg.Data.Symbol == "" || msg.Data.LastPrice == "" {
				continue
			}

			price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
			if err != nil {
				b.logger.Warn("BinanceSource: failed to parse price", "symbol", msg.Data.Symbol, "error", err)
				continue
			}

			b.mu.Lock()
			b.quotes[msg.Data.Symbol] = Quote{
				Price: price,
				At:    time.UnixMilli(msg.Data.EventTime),
			}
			b.mu.Unlock()
		}
	}
}

func (b *BinanceSource) streamURL() string {
	streams := make([]string, len(b.symbols))
	for i, s := range b.symbols {
		streams[i] = strings.ToLower(s) + "@ticker"
	}
	return "wss://stream.binance.com:9443/stream?streams=" + strings.Join(streams, "/")
}
