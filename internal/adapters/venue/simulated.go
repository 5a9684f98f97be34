package venue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	mathrand "math/rand/v2"

	"github.com/alejandrodnm/solbot/internal/domain"
	"github.com/alejandrodnm/solbot/internal/ports"
)

const (
	// Simulated swaps fail 5% of the time so the engine's retry path gets
	// exercised without a live venue.
	simSuccessRate = 0.95

	simTxPrefix  = "SIM_"
	simTxHexLen  = 60
	maxPriceSkew = 0.20
)

// Simulated is a dry-run venue. It never signs or submits anything: execution
// prices come from the oracle, or a bounded random walk around the caller's
// reference price when no live price is available.
type Simulated struct {
	oracle ports.PriceOracle
	// randFloat is swappable in tests to pin the success roll and price skew.
	randFloat func() float64
}

var _ ports.ExecutionVenue = (*Simulated)(nil)

func NewSimulated(oracle ports.PriceOracle) *Simulated {
	return &Simulated{
		oracle:    oracle,
		randFloat: mathrand.Float64,
	}
}

// SubmitSwap fabricates a fill. On the unlucky roll it returns a
// *domain.SimulatedFailure and the position stays untouched.
func (v *Simulated) SubmitSwap(ctx context.Context, req domain.SwapRequest) (domain.Swap, error) {
	if v.randFloat() > simSuccessRate {
		return domain.Swap{}, &domain.SimulatedFailure{
			ContractAddress: req.ContractAddress,
			Action:          req.Action,
		}
	}

	price := v.executionPrice(ctx, req)
	tx := simTxID()
	slog.Info("sim: swap executed",
		"action", req.Action,
		"address", req.ContractAddress,
		"amount_sol", req.AmountBase,
		"price", price,
		"tx", tx)

	return domain.Swap{TxID: tx, ExecutionPrice: price}, nil
}

// executionPrice prefers a live oracle price converted to SOL per token.
// Without one it walks the reference price by up to ±20%, so long-running
// dry runs still see both winning and losing exits.
func (v *Simulated) executionPrice(ctx context.Context, req domain.SwapRequest) float64 {
	if snap := v.oracle.GetSnapshot(ctx, req.ContractAddress); snap != nil {
		if sol := v.oracle.SolPriceUSD(ctx); sol > 0 {
			return snap.PriceUSD / sol
		}
	}
	skew := 1 + maxPriceSkew*(2*v.randFloat()-1)
	return req.ReferencePrice * skew
}

// simTxID returns "SIM_" plus 60 hex characters, distinguishable at a glance
// from a real signature in the trade history.
func simTxID() string {
	buf := make([]byte, simTxHexLen/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is unrecoverable on any supported platform.
		panic(err)
	}
	return simTxPrefix + hex.EncodeToString(buf)
}
