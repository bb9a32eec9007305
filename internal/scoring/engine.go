package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"tipscore/internal/config"
	"tipscore/internal/database"
	"tipscore/internal/model"
)

// Engine recomputes creator reputation scores from resolved tips. Each
// creator's recompute is independent; within one recompute the four component
// scorers run concurrently and the composite step waits for all of them.
type Engine struct {
	logger *slog.Logger
	repo   database.Repository
	cfg    *config.Config
	now    func() time.Time
}

// NewEngine creates a scoring engine.
func NewEngine(logger *slog.Logger, repo database.Repository, cfg *config.Config) *Engine {
	return &Engine{
		logger: logger,
		repo:   repo,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Score computes a creator's full score snapshot from their resolved tips.
// It is a pure function of its input plus the configured constants; callers
// below a sensible sample size (Scoring.MinScoredTips) should treat the
// result as provisional, which TotalScoredTips lets them gate on.
func (e *Engine) Score(creatorID int64, tips []model.ResolvedTip) model.CreatorScore {
	now := e.now()
	tips = scorable(tips)
	sc := e.cfg.Scoring

	var (
		acc  AccuracyResult
		rr   RiskRewardResult
		cons ConsistencyResult
		vol  VolumeResult
	)

	var g errgroup.Group
	g.Go(func() error { acc = Accuracy(tips, now, sc.HalfLifeDays); return nil })
	g.Go(func() error { rr = RiskReward(tips, sc.RRFloor, sc.RRCeiling); return nil })
	g.Go(func() error { cons = Consistency(tips); return nil })
	g.Go(func() error { vol = Volume(len(tips), sc.MaxExpectedTips); return nil })
	_ = g.Wait() // the component scorers cannot fail

	composite := Composite(acc.Score, rr.Score, cons.Score, vol.Score, sc.Weights)

	return model.CreatorScore{
		CreatorID:         creatorID,
		AccuracyScore:     acc.Score,
		RiskRewardScore:   rr.Score,
		ConsistencyScore:  cons.Score,
		VolumeScore:       vol.Score,
		CompositeScore:    composite,
		AccuracyRate:      acc.Rate,
		WeightedAccuracy:  acc.WeightedRate,
		AvgReturnPct:      rr.AvgReturnPct,
		AvgRiskReward:     rr.AvgRiskReward,
		ConfidenceWidth:   ConfidenceWidth(acc.Rate, acc.Total, sc.ConfidenceZ),
		TotalScoredTips:   len(tips),
		CurrentStreak:     cons.CurrentStreak,
		BestWinStreak:     cons.BestWinStreak,
		TimeframeAccuracy: e.timeframeBreakdown(tips, now),
		Tier:              TierFor(composite, sc.Tiers),
		ComputedAt:        now,
	}
}

// Recompute loads a creator's resolved tips, scores them and persists the
// snapshot.
func (e *Engine) Recompute(ctx context.Context, creatorID int64) (model.CreatorScore, error) {
	tips, err := e.repo.ListResolvedTips(ctx, creatorID)
	if err != nil {
		return model.CreatorScore{}, fmt.Errorf("load resolved tips for creator %d: %w", creatorID, err)
	}

	score := e.Score(creatorID, tips)
	if err := e.repo.WriteCreatorScore(ctx, score); err != nil {
		return model.CreatorScore{}, fmt.Errorf("write score for creator %d: %w", creatorID, err)
	}

	e.logger.Info("creator score recomputed",
		"creatorID", creatorID,
		"composite", score.CompositeScore,
		"tier", score.Tier,
		"totalTips", score.TotalScoredTips,
	)
	return score, nil
}

// RecomputeAll rescores every creator with resolved tips, in parallel. One
// creator's failure is logged and does not stop the others.
func (e *Engine) RecomputeAll(ctx context.Context) error {
	ids, err := e.repo.ListCreatorIDs(ctx)
	if err != nil {
		return fmt.Errorf("list creators: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Monitor.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := e.Recompute(ctx, id); err != nil {
				e.logger.Error("Failed to recompute creator score", "creatorID", id, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) timeframeBreakdown(tips []model.ResolvedTip, now time.Time) map[model.Timeframe]float64 {
	breakdown := make(map[model.Timeframe]float64)
	for _, tf := range []model.Timeframe{model.TimeframeScalp, model.TimeframeIntraday, model.TimeframeSwing, model.TimeframePosition} {
		res := AccuracyWhere(tips, now, e.cfg.Scoring.HalfLifeDays, func(t model.ResolvedTip) bool {
			return t.Timeframe == tf
		})
		if res != nil {
			breakdown[tf] = res.Rate
		}
	}
	return breakdown
}

// scorable drops tips that are not safely scoreable: non-terminal rows and
// rows with a non-positive entry price (these are flagged upstream).
func scorable(tips []model.ResolvedTip) []model.ResolvedTip {
	kept := tips[:0:0]
	for _, tip := range tips {
		if !tip.Status.Terminal() || tip.EntryPrice <= 0 {
			continue
		}
		kept = append(kept, tip)
	}
	return kept
}
