package scoring

import (
	"math"

	"tipscore/internal/config"
	"tipscore/internal/model"
)

// Composite combines the four sub-scores with the configured weights. Every
// sub-score is already 0-100; the result is clamped to the same range.
func Composite(accuracy, riskReward, consistency, volume float64, w config.WeightsConfig) float64 {
	score := accuracy*w.Accuracy +
		riskReward*w.RiskReward +
		consistency*w.Consistency +
		volume*w.Volume
	return clamp(score, 0, 100)
}

// ConfidenceWidth returns the width of the proportion confidence interval
// around the accuracy rate: z * sqrt(p(1-p)/n). Zero when there is no sample.
func ConfidenceWidth(rate float64, n int, z float64) float64 {
	if n <= 0 {
		return 0
	}
	return z * math.Sqrt(rate*(1-rate)/float64(n))
}

// TierFor maps a composite score to its tier. Thresholds are minimums; a
// score below the bronze threshold stays unrated.
func TierFor(score float64, t config.TierThresholdsConfig) model.Tier {
	switch {
	case score >= t.Diamond:
		return model.TierDiamond
	case score >= t.Platinum:
		return model.TierPlatinum
	case score >= t.Gold:
		return model.TierGold
	case score >= t.Silver:
		return model.TierSilver
	case score >= t.Bronze:
		return model.TierBronze
	}
	return model.TierUnrated
}
