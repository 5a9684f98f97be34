package domain

import "time"

// PositionStatus is a position annotated with its last evaluation.
type PositionStatus struct {
	Position
	CurrentPrice  float64 // SOL per token
	PriceMultiple float64
	PercentChange float64
}

// CloseEvent records a sell the engine executed during a cycle.
type CloseEvent struct {
	ContractAddress string
	Kind            DecisionKind
	SellFraction    float64
	TxID            string
	ExecutionPrice  float64
	PnL             ClosePnL
}

// CycleReport contains everything produced by one engine cycle.
type CycleReport struct {
	ID        string // correlates log lines belonging to the same cycle
	StartedAt time.Time
	Duration  time.Duration
	Paused    bool
	Evaluated int
	Held      int
	Skipped   int // no snapshot, corrupt position, or failed execution
	Closes    []CloseEvent
	Positions []PositionStatus
}
