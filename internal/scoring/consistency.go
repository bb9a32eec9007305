package scoring

import (
	"sort"

	"tipscore/internal/model"
)

// ConsistencyResult holds the consistency sub-score and streak statistics.
type ConsistencyResult struct {
	Score           float64
	SwingRate       float64 // fraction of adjacent outcome pairs that flip
	RollingVariance float64 // variance of rolling 5-tip accuracy
	CurrentStreak   int     // >0 consecutive hits, <0 consecutive misses
	BestWinStreak   int
}

const (
	consistencyWindow  = 5
	stabilityWeight    = 70.0
	streakBonusWeight  = 30.0
	streakBonusCeiling = 6
)

// Consistency measures how streaky a creator's outcomes are, ordered by close
// time. The score rises as adjacent outcomes flip less often (fewer swings
// between hit and miss) and as the current win streak grows. Fewer than two
// resolved tips score 0: there is nothing to be consistent about yet.
func Consistency(tips []model.ResolvedTip) ConsistencyResult {
	res := ConsistencyResult{}
	if len(tips) < 2 {
		return res
	}

	ordered := make([]model.ResolvedTip, len(tips))
	copy(ordered, tips)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ClosedAt.Before(ordered[j].ClosedAt)
	})

	outcomes := make([]float64, len(ordered))
	for i, tip := range ordered {
		if tip.Hit() {
			outcomes[i] = 1
		}
	}

	flips := 0
	for i := 1; i < len(outcomes); i++ {
		if outcomes[i] != outcomes[i-1] {
			flips++
		}
	}
	res.SwingRate = float64(flips) / float64(len(outcomes)-1)
	res.RollingVariance = rollingAccuracyVariance(outcomes, consistencyWindow)
	res.CurrentStreak, res.BestWinStreak = streaks(outcomes)

	stability := (1 - res.SwingRate) * stabilityWeight

	winStreak := res.CurrentStreak
	if winStreak < 0 {
		winStreak = 0
	}
	if winStreak > streakBonusCeiling {
		winStreak = streakBonusCeiling
	}
	bonus := float64(winStreak) / streakBonusCeiling * streakBonusWeight

	res.Score = clamp(stability+bonus, 0, 100)
	return res
}

// rollingAccuracyVariance computes the variance of hit rates over every
// contiguous window of the given size (the whole series when shorter).
func rollingAccuracyVariance(outcomes []float64, window int) float64 {
	if window > len(outcomes) {
		window = len(outcomes)
	}

	var rates []float64
	for i := 0; i+window <= len(outcomes); i++ {
		sum := 0.0
		for _, v := range outcomes[i : i+window] {
			sum += v
		}
		rates = append(rates, sum/float64(window))
	}

	mean := 0.0
	for _, r := range rates {
		mean += r
	}
	mean /= float64(len(rates))

	variance := 0.0
	for _, r := range rates {
		variance += (r - mean) * (r - mean)
	}
	return variance / float64(len(rates))
}

func streaks(outcomes []float64) (current, bestWin int) {
	run := 0
	for i := 0; i < len(outcomes); i++ {
		if i == 0 || outcomes[i] == outcomes[i-1] {
			run++
		} else {
			run = 1
		}
		if outcomes[i] == 1 && run > bestWin {
			bestWin = run
		}
	}
	if len(outcomes) > 0 {
		if outcomes[len(outcomes)-1] == 1 {
			current = run
		} else {
			current = -run
		}
	}
	return current, bestWin
}
