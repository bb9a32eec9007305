package resolution

import (
	"fmt"
	"math"
	"time"

	"tipscore/internal/model"
)

// Validate rejects tips whose prices make evaluation meaningless. A rejected
// tip must be excluded from monitoring and flagged for operator review, never
// allowed to abort a batch.
func Validate(tip *model.Tip) error {
	if tip.EntryPrice <= 0 {
		return fmt.Errorf("tip %d: entry price must be positive, got %v", tip.ID, tip.EntryPrice)
	}
	if tip.StopLoss <= 0 {
		return fmt.Errorf("tip %d: stop loss must be positive, got %v", tip.ID, tip.StopLoss)
	}
	if tip.Target1 <= 0 {
		return fmt.Errorf("tip %d: target1 must be positive, got %v", tip.ID, tip.Target1)
	}
	if tip.Direction != model.DirectionBuy && tip.Direction != model.DirectionSell {
		return fmt.Errorf("tip %d: unknown direction %q", tip.ID, tip.Direction)
	}
	return nil
}

// Evaluate runs one tip through the resolution state machine against a
// current price. It returns nil when nothing changes, which includes tips
// already in a terminal status. Evaluation is pure; Apply commits the result.
//
// Precedence: expiry first, then stop-loss breach, then targets. Targets are
// checked highest rank first, but rank k only counts once rank k-1 has a hit
// timestamp, so a tip advances one target per evaluation.
func Evaluate(tip *model.Tip, price float64, now time.Time) *model.Transition {
	if tip.Status.Terminal() {
		return nil
	}

	if !now.Before(tip.ExpiresAt) {
		return resolve(tip, model.StatusExpired, price, now, 0)
	}

	if stopLossBreached(tip, price) {
		return resolve(tip, model.StatusStopLossHit, price, now, 0)
	}

	targets := tip.Targets()
	for rank := len(targets); rank >= 1; rank-- {
		if tip.TargetHitAt(rank) != nil {
			continue // already recorded
		}
		if rank > 1 && tip.TargetHitAt(rank-1) == nil {
			continue
		}
		if !targetHit(tip.Direction, price, targets[rank-1]) {
			continue
		}
		if rank == len(targets) {
			return resolve(tip, model.StatusAllTargetsHit, price, now, rank)
		}
		return &model.Transition{
			TipID:      tip.ID,
			CreatorID:  tip.CreatorID,
			From:       tip.Status,
			To:         intermediateStatus(rank),
			Price:      price,
			At:         now,
			TargetRank: rank,
		}
	}

	return nil
}

// Apply commits a transition to a tip in memory. The persistence layer
// enforces the same write-once rule on the stored row.
func Apply(tip *model.Tip, tr *model.Transition) error {
	if !tip.Status.CanTransition(tr.To) {
		return fmt.Errorf("tip %d: illegal transition %s -> %s", tip.ID, tip.Status, tr.To)
	}
	tip.Status = tr.To
	if tr.TargetRank > 0 {
		at := tr.At
		switch tr.TargetRank {
		case 1:
			tip.Target1HitAt = &at
		case 2:
			tip.Target2HitAt = &at
		case 3:
			tip.Target3HitAt = &at
		}
	}
	if tr.Terminal() {
		tip.ClosedPrice = tr.ClosedPrice
		at := tr.At
		tip.ClosedAt = &at
		tip.ReturnPct = tr.ReturnPct
		tip.RiskRewardRatio = tr.RiskRewardRatio
	}
	return nil
}

// ReturnPct computes the realized return percentage for a close at price.
// SELL tips profit when the price falls.
func ReturnPct(direction model.Direction, entry, price float64) float64 {
	if direction == model.DirectionBuy {
		return (price - entry) / entry * 100
	}
	return (entry - price) / entry * 100
}

// RiskRewardRatio computes the realized return relative to the risk the tip
// took on (entry-to-stop distance). A zero-risk tip maps to 0 rather than
// dividing by zero.
func RiskRewardRatio(returnPct, entry, stopLoss float64) float64 {
	riskPct := math.Abs(entry-stopLoss) / entry
	if riskPct == 0 {
		return 0
	}
	return (returnPct / 100) / riskPct
}

func resolve(tip *model.Tip, to model.TipStatus, price float64, now time.Time, targetRank int) *model.Transition {
	closed := price
	ret := ReturnPct(tip.Direction, tip.EntryPrice, closed)

	var ratio float64
	if to == model.StatusStopLossHit {
		ratio = -1
	} else {
		ratio = RiskRewardRatio(ret, tip.EntryPrice, tip.StopLoss)
	}

	return &model.Transition{
		TipID:           tip.ID,
		CreatorID:       tip.CreatorID,
		From:            tip.Status,
		To:              to,
		Price:           price,
		At:              now,
		TargetRank:      targetRank,
		ClosedPrice:     &closed,
		ReturnPct:       &ret,
		RiskRewardRatio: &ratio,
	}
}

func stopLossBreached(tip *model.Tip, price float64) bool {
	if tip.Direction == model.DirectionBuy {
		return price <= tip.StopLoss
	}
	return price >= tip.StopLoss
}

func targetHit(direction model.Direction, price, target float64) bool {
	if direction == model.DirectionBuy {
		return price >= target
	}
	return price <= target
}

func intermediateStatus(rank int) model.TipStatus {
	switch rank {
	case 1:
		return model.StatusTarget1Hit
	case 2:
		return model.StatusTarget2Hit
	}
	return model.StatusTarget3Hit
}
