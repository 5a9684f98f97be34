package ports

import (
	"context"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// ExecutionVenue performs a buy or sell. Implementations never touch the
// PositionStore — booking the result is the recorder's job, keeping "did the
// trade happen" separate from "how is it booked".
type ExecutionVenue interface {
	// SubmitSwap executes the request and returns the transaction id and the
	// realized execution price. Failures are typed: *domain.SimulatedFailure
	// from the simulated venue, *domain.ExecutionFailure from the real one.
	SubmitSwap(ctx context.Context, req domain.SwapRequest) (domain.Swap, error)
}
