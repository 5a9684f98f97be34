package venue

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/solbot/internal/domain"
)

type stubOracle struct {
	snap     *domain.Snapshot
	solPrice float64
}

func (s *stubOracle) GetSnapshot(_ context.Context, _ string) *domain.Snapshot { return s.snap }
func (s *stubOracle) SolPriceUSD(_ context.Context) float64                    { return s.solPrice }
func (s *stubOracle) SetFilterEnabled(_ bool)                                  {}

const testToken = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func sellRequest() domain.SwapRequest {
	return domain.SwapRequest{
		ContractAddress: testToken,
		Action:          domain.ActionSell,
		AmountBase:      0.425,
		SellFraction:    0.85,
		SlippageBps:     3000,
		ReferencePrice:  0.0016,
	}
}

func TestSimulatedSuccessUsesOraclePrice(t *testing.T) {
	v := NewSimulated(&stubOracle{
		snap:     &domain.Snapshot{ContractAddress: testToken, PriceUSD: 0.272},
		solPrice: 170.0,
	})
	v.randFloat = func() float64 { return 0.5 } // always below the success rate

	swap, err := v.SubmitSwap(context.Background(), sellRequest())
	require.NoError(t, err)

	assert.InDelta(t, 0.272/170.0, swap.ExecutionPrice, 1e-12)
	assert.True(t, strings.HasPrefix(swap.TxID, "SIM_"))
	assert.Len(t, swap.TxID, len("SIM_")+60)
}

func TestSimulatedFallsBackToRandomWalk(t *testing.T) {
	v := NewSimulated(&stubOracle{}) // oracle has nothing
	v.randFloat = func() float64 { return 0.5 }

	// rand=0.5 centers the walk: skew factor is exactly 1.
	swap, err := v.SubmitSwap(context.Background(), sellRequest())
	require.NoError(t, err)
	assert.InDelta(t, 0.0016, swap.ExecutionPrice, 1e-12)

	// The walk stays inside ±20% at the extremes.
	for _, roll := range []float64{0.0, 0.94} {
		v.randFloat = func() float64 { return roll }
		swap, err := v.SubmitSwap(context.Background(), sellRequest())
		require.NoError(t, err)
		assert.InDelta(t, 0.0016, swap.ExecutionPrice, 0.0016*0.20+1e-12)
	}
}

func TestSimulatedFailureRoll(t *testing.T) {
	v := NewSimulated(&stubOracle{})
	v.randFloat = func() float64 { return 0.99 } // above the 0.95 success rate

	_, err := v.SubmitSwap(context.Background(), sellRequest())

	var simFail *domain.SimulatedFailure
	require.ErrorAs(t, err, &simFail)
	assert.Equal(t, testToken, simFail.ContractAddress)
	assert.Equal(t, domain.ActionSell, simFail.Action)
}

func TestSimTxIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := simTxID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
