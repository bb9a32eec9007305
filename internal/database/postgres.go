package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"tipscore/internal/model"
)

// PostgresRepository implements Repository backed by a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository on an existing pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

// Migrate creates the schema if it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tips (
		id BIGSERIAL PRIMARY KEY,
		creator_id BIGINT NOT NULL,
		symbol VARCHAR(32) NOT NULL,
		exchange VARCHAR(50) NOT NULL DEFAULT '',
		asset_class VARCHAR(20) NOT NULL,
		direction VARCHAR(4) NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		stop_loss DOUBLE PRECISION NOT NULL,
		target1 DOUBLE PRECISION NOT NULL,
		target2 DOUBLE PRECISION,
		target3 DOUBLE PRECISION,
		timeframe VARCHAR(10) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
		target1_hit_at TIMESTAMPTZ,
		target2_hit_at TIMESTAMPTZ,
		target3_hit_at TIMESTAMPTZ,
		closed_price DOUBLE PRECISION,
		closed_at TIMESTAMPTZ,
		return_pct DOUBLE PRECISION,
		risk_reward_ratio DOUBLE PRECISION,
		flagged_reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tips_status ON tips (status);
	CREATE INDEX IF NOT EXISTS idx_tips_creator ON tips (creator_id, status);

	CREATE TABLE IF NOT EXISTS last_prices (
		symbol VARCHAR(32) PRIMARY KEY,
		price DOUBLE PRECISION NOT NULL,
		seen_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS creator_scores (
		creator_id BIGINT PRIMARY KEY,
		accuracy_score DOUBLE PRECISION NOT NULL,
		risk_reward_score DOUBLE PRECISION NOT NULL,
		consistency_score DOUBLE PRECISION NOT NULL,
		volume_score DOUBLE PRECISION NOT NULL,
		composite_score DOUBLE PRECISION NOT NULL,
		accuracy_rate DOUBLE PRECISION NOT NULL,
		weighted_accuracy DOUBLE PRECISION NOT NULL,
		avg_return_pct DOUBLE PRECISION NOT NULL,
		avg_risk_reward DOUBLE PRECISION NOT NULL,
		confidence_width DOUBLE PRECISION NOT NULL,
		total_scored_tips INT NOT NULL,
		current_streak INT NOT NULL,
		best_win_streak INT NOT NULL,
		timeframe_accuracy JSONB,
		tier VARCHAR(10) NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS creator_score_snapshots (
		id BIGSERIAL PRIMARY KEY,
		creator_id BIGINT NOT NULL,
		accuracy_score DOUBLE PRECISION NOT NULL,
		risk_reward_score DOUBLE PRECISION NOT NULL,
		consistency_score DOUBLE PRECISION NOT NULL,
		volume_score DOUBLE PRECISION NOT NULL,
		composite_score DOUBLE PRECISION NOT NULL,
		accuracy_rate DOUBLE PRECISION NOT NULL,
		weighted_accuracy DOUBLE PRECISION NOT NULL,
		avg_return_pct DOUBLE PRECISION NOT NULL,
		avg_risk_reward DOUBLE PRECISION NOT NULL,
		confidence_width DOUBLE PRECISION NOT NULL,
		total_scored_tips INT NOT NULL,
		current_streak INT NOT NULL,
		best_win_streak INT NOT NULL,
		timeframe_accuracy JSONB,
		tier VARCHAR(10) NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_creator ON creator_score_snapshots (creator_id, computed_at);`

	_, err := r.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const tipColumns = `id, creator_id, symbol, exchange, asset_class, direction,
	entry_price, stop_loss, target1, target2, target3, timeframe,
	created_at, expires_at, status,
	target1_hit_at, target2_hit_at, target3_hit_at,
	closed_price, closed_at, return_pct, risk_reward_ratio`

// ListOutstandingTips returns every non-terminal, unflagged tip.
func (r *PostgresRepository) ListOutstandingTips(ctx context.Context) ([]model.Tip, error) {
	query := `SELECT ` + tipColumns + ` FROM tips
		WHERE status NOT IN ('ALL_TARGETS_HIT', 'STOPLOSS_HIT', 'EXPIRED')
		AND flagged_reason IS NULL
		ORDER BY id`

	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list outstanding tips: %w", err)
	}
	defer rows.Close()

	var tips []model.Tip
	for rows.Next() {
		var t model.Tip
		err := rows.Scan(
			&t.ID, &t.CreatorID, &t.Symbol, &t.Exchange, &t.AssetClass, &t.Direction,
			&t.EntryPrice, &t.StopLoss, &t.Target1, &t.Target2, &t.Target3, &t.Timeframe,
			&t.CreatedAt, &t.ExpiresAt, &t.Status,
			&t.Target1HitAt, &t.Target2HitAt, &t.Target3HitAt,
			&t.ClosedPrice, &t.ClosedAt, &t.ReturnPct, &t.RiskRewardRatio,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tip: %w", err)
		}
		tips = append(tips, t)
	}
	return tips, rows.Err()
}

// ListResolvedTips returns the terminal tips of one creator.
func (r *PostgresRepository) ListResolvedTips(ctx context.Context, creatorID int64) ([]model.ResolvedTip, error) {
	query := `SELECT id, direction, entry_price, stop_loss, target1, target2, target3,
			timeframe, status, target1_hit_at, target2_hit_at, target3_hit_at,
			closed_price, closed_at
		FROM tips
		WHERE creator_id = $1
		AND status IN ('ALL_TARGETS_HIT', 'STOPLOSS_HIT', 'EXPIRED')
		AND flagged_reason IS NULL
		ORDER BY closed_at`

	rows, err := r.Pool.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list resolved tips: %w", err)
	}
	defer rows.Close()

	var tips []model.ResolvedTip
	for rows.Next() {
		var t model.ResolvedTip
		err := rows.Scan(
			&t.ID, &t.Direction, &t.EntryPrice, &t.StopLoss, &t.Target1, &t.Target2, &t.Target3,
			&t.Timeframe, &t.Status, &t.Target1HitAt, &t.Target2HitAt, &t.Target3HitAt,
			&t.ClosedPrice, &t.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan resolved tip: %w", err)
		}
		tips = append(tips, t)
	}
	return tips, rows.Err()
}

// ListCreatorIDs returns every creator with at least one resolved tip.
func (r *PostgresRepository) ListCreatorIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT creator_id FROM tips
		WHERE status IN ('ALL_TARGETS_HIT', 'STOPLOSS_HIT', 'EXPIRED')`

	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list creator ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan creator id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyTransition commits one status transition. The WHERE clause guards the
// write-once rule: a row already in a terminal status is never touched.
func (r *PostgresRepository) ApplyTransition(ctx context.Context, tr model.Transition) error {
	query := `UPDATE tips SET
			status = $2,
			target1_hit_at = CASE WHEN $3 = 1 THEN $4 ELSE target1_hit_at END,
			target2_hit_at = CASE WHEN $3 = 2 THEN $4 ELSE target2_hit_at END,
			target3_hit_at = CASE WHEN $3 = 3 THEN $4 ELSE target3_hit_at END,
			closed_price = COALESCE($5, closed_price),
			closed_at = CASE WHEN $5 IS NOT NULL THEN $4 ELSE closed_at END,
			return_pct = COALESCE($6, return_pct),
			risk_reward_ratio = COALESCE($7, risk_reward_ratio)
		WHERE id = $1
		AND status NOT IN ('ALL_TARGETS_HIT', 'STOPLOSS_HIT', 'EXPIRED')`

	tag, err := r.Pool.Exec(ctx, query,
		tr.TipID, tr.To, tr.TargetRank, tr.At,
		tr.ClosedPrice, tr.ReturnPct, tr.RiskRewardRatio)
	if err != nil {
		return fmt.Errorf("apply transition for tip %d: %w", tr.TipID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tip %d: %w", tr.TipID, ErrTipResolved)
	}
	return nil
}

// UpdateLastPrice upserts the freshest observed price for a symbol.
func (r *PostgresRepository) UpdateLastPrice(ctx context.Context, symbol string, price float64, seenAt time.Time) error {
	query := `INSERT INTO last_prices (symbol, price, seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET price = EXCLUDED.price, seen_at = EXCLUDED.seen_at`

	_, err := r.Pool.Exec(ctx, query, symbol, price, seenAt)
	if err != nil {
		return fmt.Errorf("update last price for %s: %w", symbol, err)
	}
	return nil
}

// WriteCreatorScore overwrites the live score row and appends a history
// snapshot in one transaction.
func (r *PostgresRepository) WriteCreatorScore(ctx context.Context, score model.CreatorScore) error {
	tfJSON, err := json.Marshal(score.TimeframeAccuracy)
	if err != nil {
		return fmt.Errorf("marshal timeframe accuracy: %w", err)
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin score tx: %w", err)
	}
	defer tx.Rollback(ctx)

	args := []any{
		score.CreatorID,
		score.AccuracyScore, score.RiskRewardScore, score.ConsistencyScore, score.VolumeScore,
		score.CompositeScore, score.AccuracyRate, score.WeightedAccuracy,
		score.AvgReturnPct, score.AvgRiskReward, score.ConfidenceWidth,
		score.TotalScoredTips, score.CurrentStreak, score.BestWinStreak,
		tfJSON, score.Tier, score.ComputedAt,
	}

	upsert := `INSERT INTO creator_scores (
			creator_id, accuracy_score, risk_reward_score, consistency_score, volume_score,
			composite_score, accuracy_rate, weighted_accuracy, avg_return_pct, avg_risk_reward,
			confidence_width, total_scored_tips, current_streak, best_win_streak,
			timeframe_accuracy, tier, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (creator_id) DO UPDATE SET
			accuracy_score = EXCLUDED.accuracy_score,
			risk_reward_score = EXCLUDED.risk_reward_score,
			consistency_score = EXCLUDED.consistency_score,
			volume_score = EXCLUDED.volume_score,
			composite_score = EXCLUDED.composite_score,
			accuracy_rate = EXCLUDED.accuracy_rate,
			weighted_accuracy = EXCLUDED.weighted_accuracy,
			avg_return_pct = EXCLUDED.avg_return_pct,
			avg_risk_reward = EXCLUDED.avg_risk_reward,
			confidence_width = EXCLUDED.confidence_width,
			total_scored_tips = EXCLUDED.total_scored_tips,
			current_streak = EXCLUDED.current_streak,
			best_win_streak = EXCLUDED.best_win_streak,
			timeframe_accuracy = EXCLUDED.timeframe_accuracy,
			tier = EXCLUDED.tier,
			computed_at = EXCLUDED.computed_at`

	if _, err := tx.Exec(ctx, upsert, args...); err != nil {
		return fmt.Errorf("upsert creator score: %w", err)
	}

	snapshot := `INSERT INTO creator_score_snapshots (
			creator_id, accuracy_score, risk_reward_score, consistency_score, volume_score,
			composite_score, accuracy_rate, weighted_accuracy, avg_return_pct, avg_risk_reward,
			confidence_width, total_scored_tips, current_streak, best_win_streak,
			timeframe_accuracy, tier, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	if _, err := tx.Exec(ctx, snapshot, args...); err != nil {
		return fmt.Errorf("append score snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

// FlagTip marks a malformed tip for operator review; flagged tips drop out of
// monitoring and scoring until cleared.
func (r *PostgresRepository) FlagTip(ctx context.Context, tipID int64, reason string) error {
	_, err := r.Pool.Exec(ctx, `UPDATE tips SET flagged_reason = $2 WHERE id = $1`, tipID, reason)
	if err != nil {
		return fmt.Errorf("flag tip %d: %w", tipID, err)
	}
	return nil
}
