package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/solbot/internal/domain"
)

func makePosition(costBasis float64) domain.Position {
	return domain.Position{
		ContractAddress: "So1TESTtoken1111111111111111111111111111111",
		AmountBase:      0.5,
		CostBasisPrice:  costBasis,
		OpenedAt:        time.Now().Add(-2 * time.Hour),
	}
}

func TestEvaluateHoldBetweenThresholds(t *testing.T) {
	pos := makePosition(0.0001)
	params := domain.DefaultRiskParameters()

	// 3x gain: well above stop-loss, well below the 15x target
	d, err := domain.Evaluate(pos, 0.0003, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionHold, d.Kind)
	assert.InDelta(t, 3.0, d.PriceMultiple, 1e-9)
	assert.InDelta(t, 200.0, d.PercentChange, 1e-9)
}

func TestEvaluateTakeProfitAtExactThreshold(t *testing.T) {
	pos := makePosition(0.0001)
	params := domain.DefaultRiskParameters()

	d, err := domain.Evaluate(pos, 0.0001*15.0, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionTakeProfit, d.Kind)
	assert.InDelta(t, 0.85, d.SellFraction, 1e-9, "take-profit keeps the moonbag")
}

func TestEvaluateJustBelowTakeProfitHolds(t *testing.T) {
	pos := makePosition(0.0001)
	params := domain.DefaultRiskParameters()

	d, err := domain.Evaluate(pos, 0.0001*14.999, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionHold, d.Kind)
}

func TestEvaluateStopLossAtExactThreshold(t *testing.T) {
	pos := makePosition(0.0001)
	params := domain.DefaultRiskParameters()

	// -25% exactly
	d, err := domain.Evaluate(pos, 0.000075, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionStopLoss, d.Kind)
	assert.Equal(t, 1.0, d.SellFraction, "stop-loss never leaves a moonbag")
}

func TestEvaluateJustAboveStopLossHolds(t *testing.T) {
	pos := makePosition(0.0001)
	params := domain.DefaultRiskParameters()

	d, err := domain.Evaluate(pos, 0.0000751, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionHold, d.Kind)
}

func TestEvaluateTakeProfitWinsWhenBothTrigger(t *testing.T) {
	pos := makePosition(0.0001)

	// Degenerate configuration where any price trips both triggers.
	params := domain.DefaultRiskParameters()
	params.TakeProfitMultiple = 0.5
	params.StopLossFraction = 0.25

	d, err := domain.Evaluate(pos, 0.00006, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionTakeProfit, d.Kind)
}

func TestEvaluateZeroMoonbagSellsEverything(t *testing.T) {
	pos := makePosition(0.0001)
	params := domain.DefaultRiskParameters()
	params.MoonbagFraction = 0

	d, err := domain.Evaluate(pos, 0.002, params)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionTakeProfit, d.Kind)
	assert.Equal(t, 1.0, d.SellFraction)
}

func TestEvaluateInvalidCostBasis(t *testing.T) {
	params := domain.DefaultRiskParameters()

	for _, costBasis := range []float64{0, -0.0001} {
		pos := makePosition(costBasis)
		_, err := domain.Evaluate(pos, 0.0001, params)

		var invalid *domain.InvalidPositionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, pos.ContractAddress, invalid.ContractAddress)
	}
}

func TestEvaluateZeroPriceIsStopLoss(t *testing.T) {
	// A rugged token quoting zero is a -100% stop-loss, not an error.
	pos := makePosition(0.0001)
	d, err := domain.Evaluate(pos, 0, domain.DefaultRiskParameters())
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionStopLoss, d.Kind)
	assert.InDelta(t, -100.0, d.PercentChange, 1e-9)
}
