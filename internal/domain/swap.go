package domain

// SwapRequest describes one buy or sell against the execution venue.
// AmountBase is denominated in SOL. SellFraction tells the real venue which
// share of the held token balance a SELL disposes of (the simulated venue
// works from AmountBase alone). ReferencePrice is the caller's last known
// price in SOL per token — the simulated venue falls back to a bounded random
// walk around it when no live price is available.
type SwapRequest struct {
	ContractAddress string
	Action          TradeAction
	AmountBase      float64
	SellFraction    float64
	SlippageBps     int
	ReferencePrice  float64
}

// Swap is a completed venue execution. ExecutionPrice is the realized SOL
// per token, which may differ from the price that triggered the decision.
type Swap struct {
	TxID           string
	ExecutionPrice float64
}
