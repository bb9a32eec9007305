package scoring

import (
	"math"
	"time"

	"tipscore/internal/model"
)

// AccuracyResult holds the accuracy sub-score and its supporting statistics.
type AccuracyResult struct {
	Score        float64 // weighted accuracy scaled to 0-100
	Rate         float64 // raw hits / total
	WeightedRate float64 // recency-weighted accuracy
	Hits         int
	Total        int
}

// Accuracy computes hit-rate accuracy over a creator's resolved tips. Recent
// outcomes count more: each tip carries an exponential decay weight with the
// configured half-life, so a tip closed exactly one half-life ago weighs half
// as much as one closed today. An empty input yields the zero result.
func Accuracy(tips []model.ResolvedTip, now time.Time, halfLifeDays float64) AccuracyResult {
	res := AccuracyResult{}
	if len(tips) == 0 {
		return res
	}

	var weightSum, weightedHits float64
	for _, tip := range tips {
		res.Total++
		w := decayWeight(now, tip.ClosedAt, halfLifeDays)
		weightSum += w
		if tip.Hit() {
			res.Hits++
			weightedHits += w
		}
	}

	res.Rate = float64(res.Hits) / float64(res.Total)
	if weightSum > 0 {
		res.WeightedRate = weightedHits / weightSum
	}
	res.Score = res.WeightedRate * 100
	return res
}

// AccuracyWhere computes accuracy over the subset of tips matching the
// predicate. It returns nil when the filtered set is empty, so callers can
// distinguish "no data" from "all misses".
func AccuracyWhere(tips []model.ResolvedTip, now time.Time, halfLifeDays float64, match func(model.ResolvedTip) bool) *AccuracyResult {
	var filtered []model.ResolvedTip
	for _, tip := range tips {
		if match(tip) {
			filtered = append(filtered, tip)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	res := Accuracy(filtered, now, halfLifeDays)
	return &res
}

func decayWeight(now, closedAt time.Time, halfLifeDays float64) float64 {
	days := now.Sub(closedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-math.Ln2 / halfLifeDays * days)
}
