package engine

import (
	"context"
	"time"

	"github.com/alejandrodnm/solbot/internal/domain"
	"github.com/alejandrodnm/solbot/internal/ports"
)

// Recorder turns venue executions into ledger mutations. It owns the P&L
// arithmetic and the moonbag split; the store only applies what it is given.
type Recorder struct {
	store ports.PositionStore
}

func NewRecorder(store ports.PositionStore) *Recorder {
	return &Recorder{store: store}
}

// RecordOpen books a BUY at the venue's realized price. The store re-averages
// the cost basis when the token is already held.
func (r *Recorder) RecordOpen(ctx context.Context, address string, amountBase float64, swap domain.Swap) (domain.Position, error) {
	return r.store.SaveOpen(ctx, domain.OpenMutation{
		ContractAddress: address,
		AmountBase:      amountBase,
		Price:           swap.ExecutionPrice,
		TxID:            swap.TxID,
		Timestamp:       time.Now().UTC(),
	})
}

// RecordClose books a SELL. P&L is attributed against the position's cost
// basis at the venue's realized price, not the price that triggered the
// decision. Take-profit leaves the moonbag remainder in place; stop-loss
// always clears the position.
func (r *Recorder) RecordClose(ctx context.Context, pos domain.Position, decision domain.Decision, swap domain.Swap) (domain.ClosePnL, error) {
	amountSold := pos.AmountBase * decision.SellFraction
	remaining := pos.AmountBase - amountSold
	if decision.SellFraction >= 1 || remaining < 0 {
		amountSold = pos.AmountBase
		remaining = 0
	}

	pnl := domain.ComputeClosePnL(pos.CostBasisPrice, swap.ExecutionPrice, amountSold)

	moonbag := 1 - decision.SellFraction
	if remaining == 0 {
		moonbag = 0
	}

	// The computed pnl is returned alongside a duplicate-tx error so the
	// caller can still report the close it attempted to book.
	err := r.store.SaveClose(ctx, domain.CloseMutation{
		ContractAddress: pos.ContractAddress,
		AmountSold:      amountSold,
		ExecutionPrice:  swap.ExecutionPrice,
		TxID:            swap.TxID,
		Timestamp:       time.Now().UTC(),
		PnL:             pnl,
		RemainingAmount: remaining,
		MoonbagFraction: moonbag,
	})
	return pnl, err
}
