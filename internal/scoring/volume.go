package scoring

// VolumeResult holds the volume factor sub-score.
type VolumeResult struct {
	Score     float64
	TotalTips int
}

// Volume rewards lifetime tip count with diminishing returns: the score grows
// linearly up to maxExpected tips and saturates at 100 beyond it.
func Volume(totalTips, maxExpected int) VolumeResult {
	res := VolumeResult{TotalTips: totalTips}
	if maxExpected <= 0 || totalTips <= 0 {
		return res
	}
	ratio := float64(totalTips) / float64(maxExpected)
	if ratio > 1 {
		ratio = 1
	}
	res.Score = ratio * 100
	return res
}
