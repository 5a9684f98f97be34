package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/solbot/internal/domain"
	"github.com/alejandrodnm/solbot/internal/ports"
)

const (
	defaultPollInterval = 60 * time.Second
	defaultCallTimeout  = 30 * time.Second
)

// Config holds the engine's timing knobs. Risk parameters live in the
// control file, not here — they are re-read every cycle.
type Config struct {
	PollInterval time.Duration
	CallTimeout  time.Duration
}

// Engine drives the position lifecycle: every cycle it reloads the risk
// parameters, prices each active position, evaluates take-profit and
// stop-loss, executes the resulting sells, and books them atomically.
type Engine struct {
	oracle   ports.PriceOracle
	store    ports.PositionStore
	venue    ports.ExecutionVenue
	control  ports.ControlProvider
	notifier ports.Notifier
	recorder *Recorder
	cfg      Config
}

func New(
	oracle ports.PriceOracle,
	store ports.PositionStore,
	venue ports.ExecutionVenue,
	control ports.ControlProvider,
	notifier ports.Notifier,
	cfg Config,
) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	return &Engine{
		oracle:   oracle,
		store:    store,
		venue:    venue,
		control:  control,
		notifier: notifier,
		recorder: NewRecorder(store),
		cfg:      cfg,
	}
}

// Run evaluates immediately, then on every tick until ctx is cancelled.
// A failed cycle never stops the loop.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine: started", "poll_interval", e.cfg.PollInterval)

	e.cycle(ctx)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine: stopped")
			return ctx.Err()
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

// RunOnce executes a single evaluation cycle and returns its report.
func (e *Engine) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	return e.runCycle(ctx)
}

func (e *Engine) cycle(ctx context.Context) {
	report, err := e.runCycle(ctx)
	if err != nil {
		slog.Error("engine: cycle failed", "err", err)
		return
	}
	if err := e.notifier.NotifyCycle(ctx, report); err != nil {
		slog.Warn("engine: notify failed", "err", err)
	}
}

func (e *Engine) runCycle(ctx context.Context) (domain.CycleReport, error) {
	start := time.Now()
	report := domain.CycleReport{ID: uuid.NewString(), StartedAt: start}

	params := e.control.Load(ctx)
	if !params.Running {
		report.Paused = true
		report.Duration = time.Since(start)
		return report, nil
	}
	e.oracle.SetFilterEnabled(params.FilterFakeTokens)

	positions, err := e.store.GetActivePositions(ctx)
	if err != nil {
		return report, fmt.Errorf("engine.runCycle: load positions: %w", err)
	}
	report.Evaluated = len(positions)

	// Positions are processed one at a time. An error on one position is
	// logged and skipped; the rest of the cycle continues.
	for _, pos := range positions {
		status, closed, ok := e.processPosition(ctx, pos, params)
		if !ok {
			report.Skipped++
			continue
		}
		if status != nil {
			report.Positions = append(report.Positions, *status)
		}
		if closed != nil {
			report.Closes = append(report.Closes, *closed)
		} else {
			report.Held++
		}
	}

	report.Duration = time.Since(start)
	slog.Info("engine: cycle done",
		"cycle", report.ID,
		"evaluated", report.Evaluated,
		"held", report.Held,
		"closed", len(report.Closes),
		"skipped", report.Skipped,
		"duration", report.Duration)
	return report, nil
}

// processPosition prices, evaluates, and (when triggered) closes one
// position. ok=false means the position was skipped this cycle.
func (e *Engine) processPosition(ctx context.Context, pos domain.Position, params domain.RiskParameters) (status *domain.PositionStatus, closed *domain.CloseEvent, ok bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	snap := e.oracle.GetSnapshot(callCtx, pos.ContractAddress)
	if snap == nil {
		slog.Warn("engine: no price this cycle", "address", pos.ContractAddress)
		return nil, nil, false
	}
	solUSD := e.oracle.SolPriceUSD(callCtx)
	if solUSD <= 0 {
		slog.Warn("engine: no sol reference price", "address", pos.ContractAddress)
		return nil, nil, false
	}
	price := snap.PriceUSD / solUSD

	decision, err := domain.Evaluate(pos, price, params)
	if err != nil {
		var invalid *domain.InvalidPositionError
		if errors.As(err, &invalid) {
			slog.Error("engine: corrupt position, skipping", "address", pos.ContractAddress, "err", err)
			return nil, nil, false
		}
		slog.Error("engine: evaluate failed", "address", pos.ContractAddress, "err", err)
		return nil, nil, false
	}

	status = &domain.PositionStatus{
		Position:      pos,
		CurrentPrice:  price,
		PriceMultiple: decision.PriceMultiple,
		PercentChange: decision.PercentChange,
	}

	if decision.Kind == domain.DecisionHold {
		return status, nil, true
	}

	slog.Info("engine: close triggered",
		"kind", decision.Kind,
		"address", pos.ContractAddress,
		"multiple", decision.PriceMultiple,
		"change_pct", decision.PercentChange)

	swap, err := e.venue.SubmitSwap(callCtx, domain.SwapRequest{
		ContractAddress: pos.ContractAddress,
		Action:          domain.ActionSell,
		AmountBase:      pos.AmountBase * decision.SellFraction,
		SellFraction:    decision.SellFraction,
		SlippageBps:     slippageBps(params.SlippageTolerance),
		ReferencePrice:  price,
	})
	if err != nil {
		slog.Error("engine: close execution failed, will retry next cycle",
			"address", pos.ContractAddress, "err", err)
		return nil, nil, false
	}

	pnl, err := e.recorder.RecordClose(callCtx, pos, decision, swap)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateTrade) {
			slog.Warn("engine: close already booked", "address", pos.ContractAddress, "tx", swap.TxID)
		} else {
			// The swap executed but the ledger write failed. Surface loudly:
			// books and chain state have diverged until the next attempt.
			slog.Error("engine: swap executed but not booked",
				"address", pos.ContractAddress, "tx", swap.TxID, "err", err)
			return nil, nil, false
		}
	}

	return status, &domain.CloseEvent{
		ContractAddress: pos.ContractAddress,
		Kind:            decision.Kind,
		SellFraction:    decision.SellFraction,
		TxID:            swap.TxID,
		ExecutionPrice:  swap.ExecutionPrice,
		PnL:             pnl,
	}, true
}

// OpenPosition buys a token outside the cycle loop (manual entries and other
// upstream signal sources). The amount is clamped to the configured
// per-token range before execution.
func (e *Engine) OpenPosition(ctx context.Context, address string, amountBase float64) (domain.Position, error) {
	params := e.control.Load(ctx)

	amount := amountBase
	if amount <= 0 {
		amount = params.MinInvestmentPerToken
	}
	if amount < params.MinInvestmentPerToken {
		amount = params.MinInvestmentPerToken
	}
	if amount > params.MaxInvestmentPerToken {
		amount = params.MaxInvestmentPerToken
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	e.oracle.SetFilterEnabled(params.FilterFakeTokens)
	snap := e.oracle.GetSnapshot(callCtx, address)
	if snap == nil {
		return domain.Position{}, fmt.Errorf("engine.OpenPosition: no price for %s", address)
	}
	solUSD := e.oracle.SolPriceUSD(callCtx)
	if solUSD <= 0 {
		return domain.Position{}, fmt.Errorf("engine.OpenPosition: no sol reference price")
	}

	swap, err := e.venue.SubmitSwap(callCtx, domain.SwapRequest{
		ContractAddress: address,
		Action:          domain.ActionBuy,
		AmountBase:      amount,
		SlippageBps:     slippageBps(params.SlippageTolerance),
		ReferencePrice:  snap.PriceUSD / solUSD,
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine.OpenPosition: %w", err)
	}

	pos, err := e.recorder.RecordOpen(callCtx, address, amount, swap)
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine.OpenPosition: book buy: %w", err)
	}

	slog.Info("engine: position opened",
		"address", address,
		"amount_sol", pos.AmountBase,
		"cost_basis", pos.CostBasisPrice,
		"tx", swap.TxID)
	return pos, nil
}

// slippageBps converts the control file's fractional tolerance to basis
// points for the venue.
func slippageBps(tolerance float64) int {
	return int(tolerance * 10000)
}
