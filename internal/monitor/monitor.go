package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"tipscore/internal/config"
	"tipscore/internal/database"
	"tipscore/internal/model"
	"tipscore/internal/pricefeed"
	"tipscore/internal/resolution"
)

// AppliedTransition records one committed status change for observability.
type AppliedTransition struct {
	TipID     int64
	CreatorID int64
	From      model.TipStatus
	To        model.TipStatus
	Price     float64
	At        time.Time
}

// Monitor drives the resolution state machine over all outstanding tips. It
// is the only place transitions are committed. One price is fetched per
// (symbol, effective exchange) group; all tips in a group are evaluated on a
// single goroutine, so no tip is ever evaluated concurrently with itself.
type Monitor struct {
	logger *slog.Logger
	repo   database.Repository
	source pricefeed.Source
	cfg    *config.Config
	now    func() time.Time
}

// NewMonitor creates a batch monitor.
func NewMonitor(logger *slog.Logger, repo database.Repository, source pricefeed.Source, cfg *config.Config) *Monitor {
	return &Monitor{
		logger: logger,
		repo:   repo,
		source: source,
		cfg:    cfg,
		now:    time.Now,
	}
}

type symbolGroup struct {
	symbol   string
	exchange string
}

// Run executes one batch cycle and returns every transition it committed.
// A symbol without a price is logged and skipped for the cycle; a failed
// write is logged and the batch moves on. Only listing the outstanding set
// can fail the cycle as a whole.
func (m *Monitor) Run(ctx context.Context) ([]AppliedTransition, error) {
	tips, err := m.repo.ListOutstandingTips(ctx)
	if err != nil {
		return nil, err
	}

	groups := m.groupTips(ctx, tips)

	var (
		mu      sync.Mutex
		applied []AppliedTransition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Monitor.Concurrency)
	for group, groupTips := range groups {
		g.Go(func() error {
			result := m.processGroup(gctx, group, groupTips)
			if len(result) > 0 {
				mu.Lock()
				applied = append(applied, result...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return applied, err
	}
	return applied, ctx.Err()
}

// Loop runs batch cycles at the configured interval until the context is
// cancelled. Cancellation mid-cycle is safe: committed transitions stand,
// uncommitted ones are redone next cycle.
func (m *Monitor) Loop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Monitor.Interval())
	defer ticker.Stop()

	for {
		applied, err := m.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Batch cycle failed", "error", err)
		} else {
			m.logger.Info("Batch cycle complete", "transitions", len(applied))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// groupTips validates and buckets the outstanding set by price lookup key.
// Malformed tips are flagged for review and dropped from the cycle.
func (m *Monitor) groupTips(ctx context.Context, tips []model.Tip) map[symbolGroup][]model.Tip {
	groups := make(map[symbolGroup][]model.Tip)
	for _, tip := range tips {
		if err := resolution.Validate(&tip); err != nil {
			m.logger.Warn("Skipping malformed tip", "tipID", tip.ID, "error", err)
			if flagErr := m.repo.FlagTip(ctx, tip.ID, err.Error()); flagErr != nil {
				m.logger.Error("Failed to flag tip", "tipID", tip.ID, "error", flagErr)
			}
			continue
		}
		key := symbolGroup{symbol: tip.Symbol, exchange: m.effectiveExchange(tip)}
		groups[key] = append(groups[key], tip)
	}
	return groups
}

// effectiveExchange collapses duplicate lookups: crypto and commodities trade
// on the configured venue regardless of the instrument's native exchange.
func (m *Monitor) effectiveExchange(tip model.Tip) string {
	switch tip.AssetClass {
	case model.AssetCrypto:
		return m.cfg.Monitor.CryptoVenue
	case model.AssetCommodity:
		return m.cfg.Monitor.CommodityVenue
	}
	return tip.Exchange
}

func (m *Monitor) processGroup(ctx context.Context, group symbolGroup, tips []model.Tip) []AppliedTransition {
	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.Monitor.PriceTimeout())
	defer cancel()

	quote, ok, err := m.source.Current(fetchCtx, group.symbol, group.exchange)
	if err != nil {
		m.logger.Warn("Price lookup aborted", "symbol", group.symbol, "error", err)
		return nil
	}
	if !ok {
		m.logger.Warn("No price available, skipping symbol for this cycle",
			"symbol", group.symbol, "exchange", group.exchange)
		return nil
	}

	now := m.now()
	var applied []AppliedTransition
	for i := range tips {
		tip := &tips[i]
		tr := resolution.Evaluate(tip, quote.Price, now)
		if tr == nil {
			continue
		}

		if err := m.repo.ApplyTransition(ctx, *tr); err != nil {
			if errors.Is(err, database.ErrTipResolved) {
				m.logger.Warn("Tip already resolved, dropping transition", "tipID", tip.ID)
			} else {
				m.logger.Error("Failed to persist transition", "tipID", tip.ID, "error", err)
			}
			continue
		}
		if err := resolution.Apply(tip, tr); err != nil {
			m.logger.Error("Failed to apply transition in memory", "tipID", tip.ID, "error", err)
			continue
		}

		applied = append(applied, AppliedTransition{
			TipID:     tr.TipID,
			CreatorID: tr.CreatorID,
			From:      tr.From,
			To:        tr.To,
			Price:     tr.Price,
			At:        tr.At,
		})
	}

	// The freshness timestamp is recorded whether or not any tip moved.
	if err := m.repo.UpdateLastPrice(ctx, group.symbol, quote.Price, quote.At); err != nil {
		m.logger.Error("Failed to record last price", "symbol", group.symbol, "error", err)
	}

	return applied
}
