package ports

import (
	"context"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// PositionStore is the durable trade ledger and the derived active positions.
// Each mutation is one logical transaction: the ledger row and the position
// update land together or not at all.
type PositionStore interface {
	// GetActivePositions returns every position with amount_base > 0.
	GetActivePositions(ctx context.Context) ([]domain.Position, error)

	// GetTradeHistory returns the most recent ledger rows, newest first.
	GetTradeHistory(ctx context.Context, limit int) ([]domain.Trade, error)

	// SaveOpen books a BUY and re-averages the position's cost basis.
	// Returns the position state after the mutation.
	SaveOpen(ctx context.Context, m domain.OpenMutation) (domain.Position, error)

	// SaveClose books a SELL and updates or removes the position. A repeat
	// call with an already-booked tx id returns domain.ErrDuplicateTrade and
	// changes nothing.
	SaveClose(ctx context.Context, m domain.CloseMutation) error

	// GetStats aggregates realized results across the ledger.
	GetStats(ctx context.Context) (domain.LedgerStats, error)

	// Close releases the underlying database handle.
	Close() error
}
