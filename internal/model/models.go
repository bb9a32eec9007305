package model

import "time"

// Direction is the side of a trading call.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Timeframe classifies how long a tip is expected to play out.
type Timeframe string

const (
	TimeframeScalp    Timeframe = "SCALP"
	TimeframeIntraday Timeframe = "INTRADAY"
	TimeframeSwing    Timeframe = "SWING"
	TimeframePosition Timeframe = "POSITION"
)

// AssetClass identifies the kind of instrument a tip refers to.
type AssetClass string

const (
	AssetStock     AssetClass = "STOCK"
	AssetCrypto    AssetClass = "CRYPTO"
	AssetForex     AssetClass = "FOREX"
	AssetCommodity AssetClass = "COMMODITY"
	AssetIndex     AssetClass = "INDEX"
)

// Tip represents a single trading call made by a creator. Once the status is
// terminal the resolution fields (ClosedPrice, ClosedAt, ReturnPct,
// RiskRewardRatio) are set exactly once and the row is never mutated again.
type Tip struct {
	ID              int64      `db:"id"`
	CreatorID       int64      `db:"creator_id"`
	Symbol          string     `db:"symbol"`
	Exchange        string     `db:"exchange"`
	AssetClass      AssetClass `db:"asset_class"`
	Direction       Direction  `db:"direction"`
	EntryPrice      float64    `db:"entry_price"`
	StopLoss        float64    `db:"stop_loss"`
	Target1         float64    `db:"target1"`
	Target2         *float64   `db:"target2"`
	Target3         *float64   `db:"target3"`
	Timeframe       Timeframe  `db:"timeframe"`
	CreatedAt       time.Time  `db:"created_at"`
	ExpiresAt       time.Time  `db:"expires_at"`
	Status          TipStatus  `db:"status"`
	Target1HitAt    *time.Time `db:"target1_hit_at"`
	Target2HitAt    *time.Time `db:"target2_hit_at"`
	Target3HitAt    *time.Time `db:"target3_hit_at"`
	ClosedPrice     *float64   `db:"closed_price"`
	ClosedAt        *time.Time `db:"closed_at"`
	ReturnPct       *float64   `db:"return_pct"`
	RiskRewardRatio *float64   `db:"risk_reward_ratio"`
}

// Targets returns the defined target prices in rank order.
func (t *Tip) Targets() []float64 {
	targets := []float64{t.Target1}
	if t.Target2 != nil {
		targets = append(targets, *t.Target2)
	}
	if t.Target3 != nil {
		targets = append(targets, *t.Target3)
	}
	return targets
}

// TargetHitAt returns the hit timestamp for target rank (1-based), or nil.
func (t *Tip) TargetHitAt(rank int) *time.Time {
	switch rank {
	case 1:
		return t.Target1HitAt
	case 2:
		return t.Target2HitAt
	case 3:
		return t.Target3HitAt
	}
	return nil
}

// Transition is the outcome of evaluating a tip against a price: the status
// move plus, for terminal moves, the resolution fields. TargetRank is set
// (1-based) when the move hit a target so the matching timestamp can be
// recorded.
type Transition struct {
	TipID           int64
	CreatorID       int64
	From            TipStatus
	To              TipStatus
	Price           float64
	At              time.Time
	TargetRank      int
	ClosedPrice     *float64
	ReturnPct       *float64
	RiskRewardRatio *float64
}

// Terminal reports whether the transition resolves the tip.
func (tr Transition) Terminal() bool {
	return tr.To.Terminal()
}

// ResolvedTip is the read-only view of a terminal tip consumed by scoring.
type ResolvedTip struct {
	ID           int64      `db:"id"`
	Direction    Direction  `db:"direction"`
	EntryPrice   float64    `db:"entry_price"`
	StopLoss     float64    `db:"stop_loss"`
	Target1      float64    `db:"target1"`
	Target2      *float64   `db:"target2"`
	Target3      *float64   `db:"target3"`
	Timeframe    Timeframe  `db:"timeframe"`
	Status       TipStatus  `db:"status"`
	Target1HitAt *time.Time `db:"target1_hit_at"`
	Target2HitAt *time.Time `db:"target2_hit_at"`
	Target3HitAt *time.Time `db:"target3_hit_at"`
	ClosedPrice  float64    `db:"closed_price"`
	ClosedAt     time.Time  `db:"closed_at"`
}

// Hit reports whether the tip resolved in the target-hit family.
func (r ResolvedTip) Hit() bool {
	return r.Status.Hit()
}

// ReachedTargets returns the target prices whose hit timestamp is set, in
// rank order. For an ALL_TARGETS_HIT tip this is every defined target.
func (r ResolvedTip) ReachedTargets() []float64 {
	var reached []float64
	if r.Target1HitAt != nil {
		reached = append(reached, r.Target1)
	}
	if r.Target2HitAt != nil && r.Target2 != nil {
		reached = append(reached, *r.Target2)
	}
	if r.Target3HitAt != nil && r.Target3 != nil {
		reached = append(reached, *r.Target3)
	}
	return reached
}

// Tier is the discrete reputation label derived from the composite score.
type Tier string

const (
	TierUnrated  Tier = "UNRATED"
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
	TierDiamond  Tier = "DIAMOND"
)

// CreatorScore is the latest composite reputation snapshot for a creator.
// One live row per creator, overwritten on every recompute; history is kept
// as append-only snapshots.
type CreatorScore struct {
	CreatorID         int64                 `db:"creator_id"`
	AccuracyScore     float64               `db:"accuracy_score"`
	RiskRewardScore   float64               `db:"risk_reward_score"`
	ConsistencyScore  float64               `db:"consistency_score"`
	VolumeScore       float64               `db:"volume_score"`
	CompositeScore    float64               `db:"composite_score"`
	AccuracyRate      float64               `db:"accuracy_rate"`
	WeightedAccuracy  float64               `db:"weighted_accuracy"`
	AvgReturnPct      float64               `db:"avg_return_pct"`
	AvgRiskReward     float64               `db:"avg_risk_reward"`
	ConfidenceWidth   float64               `db:"confidence_width"`
	TotalScoredTips   int                   `db:"total_scored_tips"`
	CurrentStreak     int                   `db:"current_streak"`
	BestWinStreak     int                   `db:"best_win_streak"`
	TimeframeAccuracy map[Timeframe]float64 `db:"-"`
	Tier              Tier                  `db:"tier"`
	ComputedAt        time.Time             `db:"computed_at"`
}
