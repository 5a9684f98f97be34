package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/solbot/internal/application/engine"
	"github.com/alejandrodnm/solbot/internal/domain"
)

// --- mocks ---

type mockOracle struct {
	snapshots map[string]*domain.Snapshot
	solPrice  float64
	filter    bool
}

func (m *mockOracle) GetSnapshot(_ context.Context, address string) *domain.Snapshot {
	return m.snapshots[address]
}

func (m *mockOracle) SolPriceUSD(_ context.Context) float64 { return m.solPrice }

func (m *mockOracle) SetFilterEnabled(enabled bool) { m.filter = enabled }

type mockStore struct {
	positions []domain.Position
	opens     []domain.OpenMutation
	closes    []domain.CloseMutation
	closeErr  error
}

func (m *mockStore) GetActivePositions(_ context.Context) ([]domain.Position, error) {
	return m.positions, nil
}

func (m *mockStore) GetTradeHistory(_ context.Context, _ int) ([]domain.Trade, error) {
	return nil, nil
}

func (m *mockStore) SaveOpen(_ context.Context, mut domain.OpenMutation) (domain.Position, error) {
	m.opens = append(m.opens, mut)
	return domain.Position{
		ContractAddress: mut.ContractAddress,
		AmountBase:      mut.AmountBase,
		CostBasisPrice:  mut.Price,
		OpenedAt:        mut.Timestamp,
	}, nil
}

func (m *mockStore) SaveClose(_ context.Context, mut domain.CloseMutation) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	m.closes = append(m.closes, mut)
	return nil
}

func (m *mockStore) GetStats(_ context.Context) (domain.LedgerStats, error) {
	return domain.LedgerStats{}, nil
}

func (m *mockStore) Close() error { return nil }

type mockVenue struct {
	swaps []domain.SwapRequest
	swap  domain.Swap
	err   error
}

func (m *mockVenue) SubmitSwap(_ context.Context, req domain.SwapRequest) (domain.Swap, error) {
	if m.err != nil {
		return domain.Swap{}, m.err
	}
	m.swaps = append(m.swaps, req)
	return m.swap, nil
}

type mockControl struct {
	params domain.RiskParameters
}

func (m *mockControl) Load(_ context.Context) domain.RiskParameters { return m.params }

type mockNotifier struct {
	reports []domain.CycleReport
}

func (m *mockNotifier) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	m.reports = append(m.reports, r)
	return nil
}

// --- helpers ---

const testToken = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

// fixture: 0.5 SOL at 0.0001 SOL/token. With solPrice=1 USD the snapshot
// PriceUSD maps 1:1 to SOL per token, keeping the arithmetic readable.
func fixture(priceUSD float64) (*mockOracle, *mockStore, *mockVenue, *mockControl, *mockNotifier) {
	oracle := &mockOracle{
		snapshots: map[string]*domain.Snapshot{
			testToken: {ContractAddress: testToken, PriceUSD: priceUSD, LiquidityUSD: 50000},
		},
		solPrice: 1.0,
	}
	store := &mockStore{
		positions: []domain.Position{{
			ContractAddress: testToken,
			AmountBase:      0.5,
			CostBasisPrice:  0.0001,
			OpenedAt:        time.Now().Add(-time.Hour),
		}},
	}
	venue := &mockVenue{swap: domain.Swap{TxID: "tx-1", ExecutionPrice: priceUSD}}
	control := &mockControl{params: domain.DefaultRiskParameters()}
	return oracle, store, venue, control, &mockNotifier{}
}

func newEngine(o *mockOracle, s *mockStore, v *mockVenue, c *mockControl, n *mockNotifier) *engine.Engine {
	return engine.New(o, s, v, c, n, engine.Config{
		PollInterval: time.Hour, // never ticks in tests, RunOnce drives cycles
		CallTimeout:  5 * time.Second,
	})
}

// --- cycle tests ---

func TestCycleHoldsBetweenThresholds(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0003) // 3x
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Held)
	assert.Empty(t, report.Closes)
	assert.Empty(t, venue.swaps, "hold must not trade")
	assert.Empty(t, store.closes)
}

func TestCycleTakeProfitLeavesMoonbag(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0016) // 16x
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Closes, 1)
	closed := report.Closes[0]
	assert.Equal(t, domain.DecisionTakeProfit, closed.Kind)
	assert.InDelta(t, 0.85, closed.SellFraction, 1e-9)

	require.Len(t, venue.swaps, 1)
	assert.Equal(t, domain.ActionSell, venue.swaps[0].Action)
	assert.InDelta(t, 0.425, venue.swaps[0].AmountBase, 1e-9)
	assert.Equal(t, 3000, venue.swaps[0].SlippageBps)

	require.Len(t, store.closes, 1)
	booked := store.closes[0]
	assert.InDelta(t, 0.075, booked.RemainingAmount, 1e-9, "15% moonbag stays open")
	assert.InDelta(t, 0.15, booked.MoonbagFraction, 1e-9)
	// (0.0016 - 0.0001) * (0.425/0.0001) = 6.375 SOL realized
	assert.InDelta(t, 6.375, booked.PnL.GainLossBase, 1e-9)
}

func TestCycleStopLossClosesFully(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.00007) // -30%
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Closes, 1)
	assert.Equal(t, domain.DecisionStopLoss, report.Closes[0].Kind)
	assert.Equal(t, 1.0, report.Closes[0].SellFraction)

	require.Len(t, store.closes, 1)
	assert.Zero(t, store.closes[0].RemainingAmount)
	assert.Zero(t, store.closes[0].MoonbagFraction)
}

func TestCyclePausedSkipsEverything(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0016)
	control.params.Running = false
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Paused)
	assert.Zero(t, report.Evaluated)
	assert.Empty(t, venue.swaps)
}

func TestCycleAppliesFilterToggle(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0003)
	control.params.FilterFakeTokens = false
	eng := newEngine(oracle, store, venue, control, notifier)

	_, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, oracle.filter)
}

func TestCycleSkipsPositionWithoutPrice(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0016)
	oracle.snapshots = nil // every fetch fails
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, venue.swaps, "no price means no trade, never price zero")
}

func TestCycleSkipsCorruptPosition(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0016)
	store.positions[0].CostBasisPrice = 0
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, venue.swaps)
}

func TestCycleIsolatesFailedExecution(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0016)
	venue.err = &domain.SimulatedFailure{ContractAddress: testToken, Action: domain.ActionSell}

	// A second healthy position must still be evaluated after the failure.
	other := "9yLXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsV"
	store.positions = append(store.positions, domain.Position{
		ContractAddress: other,
		AmountBase:      0.2,
		CostBasisPrice:  0.0001,
		OpenedAt:        time.Now(),
	})
	oracle.snapshots[other] = &domain.Snapshot{ContractAddress: other, PriceUSD: 0.0002}

	eng := newEngine(oracle, store, venue, control, notifier)
	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Skipped, "failed close is skipped and retried next cycle")
	assert.Equal(t, 1, report.Held)
	assert.Empty(t, store.closes, "nothing booked when the swap failed")
}

func TestCycleDuplicateCloseIsNotDoubleBooked(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0016)
	store.closeErr = domain.ErrDuplicateTrade
	eng := newEngine(oracle, store, venue, control, notifier)

	report, err := eng.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Closes, 1, "duplicate booking still reports the close")
	assert.Empty(t, store.closes)
}

// --- open tests ---

func TestOpenPositionClampsAmount(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0001)
	eng := newEngine(oracle, store, venue, control, notifier)
	ctx := context.Background()

	// Above max: clamped down to 1.0.
	pos, err := eng.OpenPosition(ctx, testToken, 5.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pos.AmountBase, 1e-9)

	// Below min: clamped up to 0.1.
	pos, err = eng.OpenPosition(ctx, testToken, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, pos.AmountBase, 1e-9)

	// Zero: defaults to min.
	pos, err = eng.OpenPosition(ctx, testToken, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, pos.AmountBase, 1e-9)

	require.Len(t, venue.swaps, 3)
	for _, swap := range venue.swaps {
		assert.Equal(t, domain.ActionBuy, swap.Action)
	}
}

func TestOpenPositionBooksAtExecutionPrice(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0001)
	venue.swap = domain.Swap{TxID: "tx-buy", ExecutionPrice: 0.00012} // slippage
	eng := newEngine(oracle, store, venue, control, notifier)

	pos, err := eng.OpenPosition(context.Background(), testToken, 0.5)
	require.NoError(t, err)

	assert.InDelta(t, 0.00012, pos.CostBasisPrice, 1e-12,
		"cost basis reflects the fill, not the quote")
	require.Len(t, store.opens, 1)
	assert.Equal(t, "tx-buy", store.opens[0].TxID)
}

func TestOpenPositionRejectsUnpricedToken(t *testing.T) {
	oracle, store, venue, control, notifier := fixture(0.0001)
	oracle.snapshots = nil
	eng := newEngine(oracle, store, venue, control, notifier)

	_, err := eng.OpenPosition(context.Background(), testToken, 0.5)
	require.Error(t, err)
	assert.Empty(t, venue.swaps)
	assert.Empty(t, store.opens)
}
