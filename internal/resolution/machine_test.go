package resolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tipscore/internal/model"
)

func ptr(v float64) *float64 { return &v }

func buyTip() *model.Tip {
	return &model.Tip{
		ID:         1,
		CreatorID:  10,
		Symbol:     "AAPL",
		Direction:  model.DirectionBuy,
		EntryPrice: 1000,
		StopLoss:   950,
		Target1:    1100,
		Status:     model.StatusActive,
		CreatedAt:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEvaluate_BuyTargetHit(t *testing.T) {
	tip := buyTip()
	now := tip.CreatedAt.Add(24 * time.Hour)

	tr := Evaluate(tip, 1100, now)
	require.NotNil(t, tr)

	assert.Equal(t, model.StatusActive, tr.From)
	assert.Equal(t, model.StatusAllTargetsHit, tr.To)
	require.NotNil(t, tr.ReturnPct)
	require.NotNil(t, tr.RiskRewardRatio)
	assert.InDelta(t, 10.0, *tr.ReturnPct, 1e-9)
	assert.InDelta(t, 2.0, *tr.RiskRewardRatio, 1e-9)
	assert.Equal(t, 1100.0, *tr.ClosedPrice)
}

func TestEvaluate_NoChange(t *testing.T) {
	tip := buyTip()
	now := tip.CreatedAt.Add(24 * time.Hour)

	assert.Nil(t, Evaluate(tip, 1050, now))
}

func TestEvaluate_StopLoss(t *testing.T) {
	t.Run("buy breaches at or below stop", func(t *testing.T) {
		tip := buyTip()
		tr := Evaluate(tip, 950, tip.CreatedAt.Add(time.Hour))
		require.NotNil(t, tr)
		assert.Equal(t, model.StatusStopLossHit, tr.To)
		assert.Equal(t, -1.0, *tr.RiskRewardRatio)
		assert.InDelta(t, -5.0, *tr.ReturnPct, 1e-9)
	})

	t.Run("sell breaches at or above stop", func(t *testing.T) {
		tip := buyTip()
		tip.Direction = model.DirectionSell
		tip.StopLoss = 1050
		tip.Target1 = 900
		tr := Evaluate(tip, 1060, tip.CreatedAt.Add(time.Hour))
		require.NotNil(t, tr)
		assert.Equal(t, model.StatusStopLossHit, tr.To)
		assert.Equal(t, -1.0, *tr.RiskRewardRatio)
		assert.InDelta(t, -6.0, *tr.ReturnPct, 1e-9)
	})
}

func TestEvaluate_SellTargetHit(t *testing.T) {
	tip := buyTip()
	tip.Direction = model.DirectionSell
	tip.StopLoss = 1050
	tip.Target1 = 900

	tr := Evaluate(tip, 900, tip.CreatedAt.Add(time.Hour))
	require.NotNil(t, tr)
	assert.Equal(t, model.StatusAllTargetsHit, tr.To)
	assert.InDelta(t, 10.0, *tr.ReturnPct, 1e-9)
	assert.InDelta(t, 2.0, *tr.RiskRewardRatio, 1e-9)
}

func TestEvaluate_ExpiryPrecedesEverything(t *testing.T) {
	tip := buyTip()
	now := tip.ExpiresAt // boundary case: now >= expiresAt expires

	tr := Evaluate(tip, 1100, now)
	require.NotNil(t, tr)
	assert.Equal(t, model.StatusExpired, tr.To)
	assert.Equal(t, 1100.0, *tr.ClosedPrice)
	// return is still computed from the closing price
	assert.InDelta(t, 10.0, *tr.ReturnPct, 1e-9)
}

func TestEvaluate_MultiTargetAdvancesOneRankPerCycle(t *testing.T) {
	tip := buyTip()
	tip.Target2 = ptr(1200.0)
	tip.Target3 = ptr(1300.0)
	now := tip.CreatedAt.Add(time.Hour)

	// Price already beyond target3, but ranks gate on the previous hit.
	tr := Evaluate(tip, 1350, now)
	require.NotNil(t, tr)
	assert.Equal(t, model.StatusTarget1Hit, tr.To)
	assert.Equal(t, 1, tr.TargetRank)
	assert.Nil(t, tr.ClosedPrice, "intermediate transitions must not resolve")
	assert.Nil(t, tr.ReturnPct)

	require.NoError(t, Apply(tip, tr))
	require.NotNil(t, tip.Target1HitAt)
	assert.Nil(t, tip.ClosedAt)

	tr = Evaluate(tip, 1350, now.Add(time.Minute))
	require.NotNil(t, tr)
	assert.Equal(t, model.StatusTarget2Hit, tr.To)
	require.NoError(t, Apply(tip, tr))

	tr = Evaluate(tip, 1350, now.Add(2*time.Minute))
	require.NotNil(t, tr)
	assert.Equal(t, model.StatusAllTargetsHit, tr.To)
	assert.Equal(t, 3, tr.TargetRank)
	require.NoError(t, Apply(tip, tr))

	require.NotNil(t, tip.ClosedPrice)
	require.NotNil(t, tip.Target3HitAt)
	assert.Equal(t, model.StatusAllTargetsHit, tip.Status)
}

func TestEvaluate_TerminalIsNoOp(t *testing.T) {
	tip := buyTip()
	tr := Evaluate(tip, 1100, tip.CreatedAt.Add(time.Hour))
	require.NotNil(t, tr)
	require.NoError(t, Apply(tip, tr))

	for _, price := range []float64{0, 500, 1100, 2000} {
		assert.Nil(t, Evaluate(tip, price, tip.CreatedAt.Add(2*time.Hour)))
	}
}

func TestEvaluate_ResolutionFieldsOnlyWhenTerminal(t *testing.T) {
	tip := buyTip()
	tip.Target2 = ptr(1200.0)

	tr := Evaluate(tip, 1100, tip.CreatedAt.Add(time.Hour))
	require.NotNil(t, tr)
	assert.False(t, tr.Terminal())
	assert.Nil(t, tr.ClosedPrice)
	assert.Nil(t, tr.ReturnPct)
	assert.Nil(t, tr.RiskRewardRatio)
	require.NoError(t, Apply(tip, tr))
	assert.Nil(t, tip.ReturnPct)

	tr = Evaluate(tip, 1200, tip.CreatedAt.Add(2*time.Hour))
	require.NotNil(t, tr)
	assert.True(t, tr.Terminal())
	require.NoError(t, Apply(tip, tr))
	require.NotNil(t, tip.ReturnPct)
	require.NotNil(t, tip.RiskRewardRatio)
}

func TestEvaluate_ZeroRiskMapsToZeroRatio(t *testing.T) {
	tip := buyTip()
	tip.StopLoss = 1000 // same as entry

	tr := Evaluate(tip, 1100, tip.CreatedAt.Add(time.Hour))
	require.NotNil(t, tr)
	// price 1100 > stop 1000, so no breach; target resolves
	assert.Equal(t, model.StatusAllTargetsHit, tr.To)
	assert.Equal(t, 0.0, *tr.RiskRewardRatio)
}

func TestValidate(t *testing.T) {
	tip := buyTip()
	assert.NoError(t, Validate(tip))

	bad := buyTip()
	bad.EntryPrice = 0
	assert.Error(t, Validate(bad))

	bad = buyTip()
	bad.Direction = "HOLD"
	assert.Error(t, Validate(bad))

	bad = buyTip()
	bad.StopLoss = -1
	assert.Error(t, Validate(bad))
}

func TestApply_RejectsIllegalTransition(t *testing.T) {
	tip := buyTip()
	err := Apply(tip, &model.Transition{From: model.StatusActive, To: model.StatusTarget3Hit})
	assert.Error(t, err)
}
