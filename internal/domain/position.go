package domain

import "time"

// TradeAction is the direction of a ledger entry.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// Position is the open exposure in one token, derived from the trade ledger.
// AmountBase is the SOL committed net of partial sells; CostBasisPrice is the
// quantity-weighted average buy price in SOL per token. A position with
// AmountBase == 0 is closed and leaves the active set.
type Position struct {
	ContractAddress string
	AmountBase      float64
	CostBasisPrice  float64
	OpenedAt        time.Time
	MoonbagFraction float64 // fraction of the original position retained after a partial close
}

// TokenQuantity derives the token amount held from the SOL committed.
func (p Position) TokenQuantity() float64 {
	if p.CostBasisPrice <= 0 {
		return 0
	}
	return p.AmountBase / p.CostBasisPrice
}

// IsClosed reports whether the position has been fully exited.
func (p Position) IsClosed() bool {
	return p.AmountBase <= 0
}

// WeightedCostBasis returns the cost basis after adding a buy of addAmount SOL
// at addPrice to an existing position of prevAmount SOL at prevPrice.
// Sells never move the cost basis — only buys are averaged.
//
// Reduces to (a1+a2)/(a1/p1+a2/p2): total SOL spent over total tokens bought.
func WeightedCostBasis(prevAmount, prevPrice, addAmount, addPrice float64) float64 {
	var prevQty, addQty float64
	if prevPrice > 0 {
		prevQty = prevAmount / prevPrice
	}
	if addPrice > 0 {
		addQty = addAmount / addPrice
	}
	totalQty := prevQty + addQty
	if totalQty <= 0 {
		return addPrice
	}
	return (prevAmount + addAmount) / totalQty
}

// Trade is one row of the append-only ledger. P&L attribution fields are set
// on SELL rows only.
type Trade struct {
	ID              int64
	ContractAddress string
	Action          TradeAction
	AmountBase      float64
	Price           float64
	Timestamp       time.Time
	TxID            string
	GainLossBase    *float64
	PercentChange   *float64
	PriceMultiple   *float64
}

// ClosePnL is the realized outcome of a sell measured against cost basis.
type ClosePnL struct {
	GainLossBase  float64
	PercentChange float64
	PriceMultiple float64
	QuantitySold  float64
}

// ComputeClosePnL attributes a sell of amountSold SOL (at cost basis terms)
// executed at execPrice against a position's cost basis.
// gain_loss = (execPrice - costBasis) * quantitySold, where quantitySold is
// the token amount the SOL commitment represented at cost basis.
func ComputeClosePnL(costBasis, execPrice, amountSold float64) ClosePnL {
	if costBasis <= 0 {
		return ClosePnL{}
	}
	qty := amountSold / costBasis
	multiple := execPrice / costBasis
	return ClosePnL{
		GainLossBase:  (execPrice - costBasis) * qty,
		PercentChange: (multiple - 1) * 100,
		PriceMultiple: multiple,
		QuantitySold:  qty,
	}
}

// OpenMutation books a BUY: one ledger row plus a position upsert with
// cost-basis re-averaging, applied in a single transaction.
type OpenMutation struct {
	ContractAddress string
	AmountBase      float64
	Price           float64
	TxID            string
	Timestamp       time.Time
}

// CloseMutation books a SELL: one ledger row plus a position update (moonbag
// remainder) or delete (full close), applied in a single transaction.
type CloseMutation struct {
	ContractAddress string
	AmountSold      float64
	ExecutionPrice  float64
	TxID            string
	Timestamp       time.Time
	PnL             ClosePnL
	RemainingAmount float64 // 0 removes the position
	MoonbagFraction float64 // recorded on the surviving position
}

// LedgerStats aggregates realized results across the whole ledger.
type LedgerStats struct {
	TotalTrades     int
	Buys            int
	Sells           int
	Wins            int
	Losses          int
	RealizedPnL     float64
	BestMultiple    float64
	ActivePositions int
}
