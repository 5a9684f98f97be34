package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateTrade is returned when a close is booked twice with the same
// transaction id. The second booking is a no-op — P&L is never double counted.
var ErrDuplicateTrade = errors.New("trade already recorded for tx")

// SimulatedFailure is the expected, non-fatal failure mode of the simulated
// venue. The engine treats it like any transient execution failure: the
// position stays untouched and is re-evaluated next cycle.
type SimulatedFailure struct {
	ContractAddress string
	Action          TradeAction
}

func (e *SimulatedFailure) Error() string {
	return fmt.Sprintf("simulated %s failed for %s", e.Action, e.ContractAddress)
}

// ExecutionFailure is a persistent failure from the real venue after its
// internal retry budget is spent. It is never converted into simulated
// behavior — the engine logs it and retries on a later cycle.
type ExecutionFailure struct {
	ContractAddress string
	Action          TradeAction
	AmountBase      float64
	Stage           string // quote | swap | sign | submit | confirm
	Err             error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("execution %s failed for %s (%.4f SOL) at %s: %v",
		e.Action, e.ContractAddress, e.AmountBase, e.Stage, e.Err)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }
