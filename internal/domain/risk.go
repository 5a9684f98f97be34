package domain

import "fmt"

// DecisionKind is the outcome of a risk evaluation.
type DecisionKind string

const (
	DecisionHold       DecisionKind = "HOLD"
	DecisionTakeProfit DecisionKind = "TAKE_PROFIT"
	DecisionStopLoss   DecisionKind = "STOP_LOSS"
)

// RiskParameters is the per-cycle configuration snapshot. The engine reads a
// consistent copy at the start of every cycle and never sees a half-updated
// set mid-decision.
type RiskParameters struct {
	Running               bool
	SimulationMode        bool
	FilterFakeTokens      bool
	TakeProfitMultiple    float64 // sell trigger at N× cost basis
	StopLossFraction      float64 // sell trigger at -N*100% from cost basis
	MoonbagFraction       float64 // fraction retained on take-profit
	MaxInvestmentPerToken float64 // SOL
	MinInvestmentPerToken float64 // SOL
	SlippageTolerance     float64 // fraction, e.g. 0.30
}

// DefaultRiskParameters mirrors the built-in trading defaults used when the
// control file is missing or unreadable.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		Running:               true,
		SimulationMode:        true,
		FilterFakeTokens:      true,
		TakeProfitMultiple:    15.0,
		StopLossFraction:      0.25,
		MoonbagFraction:       0.15,
		MaxInvestmentPerToken: 1.0,
		MinInvestmentPerToken: 0.1,
		SlippageTolerance:     0.30,
	}
}

// Decision is the transient output of Evaluate.
type Decision struct {
	Kind          DecisionKind
	SellFraction  float64 // 1.0 for full close, 1-moonbag for take-profit
	PriceMultiple float64
	PercentChange float64
}

// InvalidPositionError signals a corrupt cost basis. The caller must skip the
// position and log it; retrying cannot fix the ledger.
type InvalidPositionError struct {
	ContractAddress string
	CostBasisPrice  float64
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position %s: cost basis %g", e.ContractAddress, e.CostBasisPrice)
}

// Evaluate decides whether a position should be closed at currentPrice.
// Pure function: no I/O, no side effects.
//
// Take-profit is checked before stop-loss. The two triggers are mutually
// exclusive for any take_profit_multiple > 1, but the ordering is fixed so a
// misconfigured parameter set still resolves deterministically.
// Stop-loss always closes the full position — it never leaves a moonbag.
func Evaluate(pos Position, currentPrice float64, params RiskParameters) (Decision, error) {
	if pos.CostBasisPrice <= 0 {
		return Decision{}, &InvalidPositionError{
			ContractAddress: pos.ContractAddress,
			CostBasisPrice:  pos.CostBasisPrice,
		}
	}

	multiple := currentPrice / pos.CostBasisPrice
	pctChange := (multiple - 1) * 100

	if multiple >= params.TakeProfitMultiple {
		return Decision{
			Kind:          DecisionTakeProfit,
			SellFraction:  1 - params.MoonbagFraction,
			PriceMultiple: multiple,
			PercentChange: pctChange,
		}, nil
	}

	if pctChange <= -(params.StopLossFraction * 100) {
		return Decision{
			Kind:          DecisionStopLoss,
			SellFraction:  1.0,
			PriceMultiple: multiple,
			PercentChange: pctChange,
		}, nil
	}

	return Decision{
		Kind:          DecisionHold,
		PriceMultiple: multiple,
		PercentChange: pctChange,
	}, nil
}
