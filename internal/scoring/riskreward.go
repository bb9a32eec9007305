package scoring

import (
	"math"

	"tipscore/internal/model"
	"tipscore/internal/resolution"
)

// TipRiskDetail is the per-tip audit line behind the risk-adjusted score.
type TipRiskDetail struct {
	TipID      int64
	ReturnPct  float64
	RiskPct    float64
	RiskReward float64
}

// RiskRewardResult holds the risk-adjusted return sub-score and statistics.
type RiskRewardResult struct {
	Score          float64
	AvgReturnPct   float64
	AvgRiskReward  float64
	BestReturnPct  float64
	WorstReturnPct float64
	Details        []TipRiskDetail
}

// RiskReward computes the risk-adjusted return sub-score. A multi-target tip
// that reached several targets realizes an equal-weighted blend of the return
// at each reached target; a tip that reached none realizes the return at its
// closing price. Stop-loss exits carry a fixed risk-reward of -1. The average
// ratio is normalized linearly between floor and ceiling and clamped.
func RiskReward(tips []model.ResolvedTip, floor, ceiling float64) RiskRewardResult {
	res := RiskRewardResult{}
	if len(tips) == 0 {
		return res
	}

	var sumReturn, sumRatio float64
	for i, tip := range tips {
		ret := realizedReturn(tip)

		var ratio float64
		if tip.Status == model.StatusStopLossHit {
			ratio = -1
		} else {
			ratio = resolution.RiskRewardRatio(ret, tip.EntryPrice, tip.StopLoss)
		}

		riskPct := math.Abs(tip.EntryPrice-tip.StopLoss) / tip.EntryPrice * 100
		res.Details = append(res.Details, TipRiskDetail{
			TipID:      tip.ID,
			ReturnPct:  ret,
			RiskPct:    riskPct,
			RiskReward: ratio,
		})

		sumReturn += ret
		sumRatio += ratio
		if i == 0 || ret > res.BestReturnPct {
			res.BestReturnPct = ret
		}
		if i == 0 || ret < res.WorstReturnPct {
			res.WorstReturnPct = ret
		}
	}

	n := float64(len(tips))
	res.AvgReturnPct = sumReturn / n
	res.AvgRiskReward = sumRatio / n
	res.Score = clamp((res.AvgRiskReward-floor)/(ceiling-floor), 0, 1) * 100
	return res
}

// realizedReturn blends the return at each reached target with equal weights;
// the last weight absorbs the rounding remainder (three targets blend
// 33/33/34). Tips that reached no target close at the recorded price.
func realizedReturn(tip model.ResolvedTip) float64 {
	reached := tip.ReachedTargets()
	if len(reached) == 0 {
		return resolution.ReturnPct(tip.Direction, tip.EntryPrice, tip.ClosedPrice)
	}

	weights := equalWeights(len(reached))
	var blended float64
	for i, target := range reached {
		blended += weights[i] * resolution.ReturnPct(tip.Direction, tip.EntryPrice, target)
	}
	return blended
}

func equalWeights(n int) []float64 {
	weights := make([]float64, n)
	base := math.Floor(100/float64(n)) / 100
	total := 0.0
	for i := 0; i < n-1; i++ {
		weights[i] = base
		total += base
	}
	weights[n-1] = 1 - total
	return weights
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
