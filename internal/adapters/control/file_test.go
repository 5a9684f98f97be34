package control_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/solbot/internal/adapters/control"
	"github.com/alejandrodnm/solbot/internal/domain"
)

func newProvider(t *testing.T) (*control.FileProvider, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot_control.json")
	p, err := control.NewFileProvider(path)
	require.NoError(t, err)
	return p, path
}

func TestNewFileProviderSeedsDefaults(t *testing.T) {
	p, path := newProvider(t)

	_, err := os.Stat(path)
	require.NoError(t, err, "missing control file is created on first run")

	params := p.Load(context.Background())
	assert.Equal(t, domain.DefaultRiskParameters(), params)
}

func TestLoadPicksUpHandEdits(t *testing.T) {
	p, path := newProvider(t)
	ctx := context.Background()

	p.Load(ctx) // establish a last-good snapshot

	edited := `{
		"running": true,
		"simulation_mode": false,
		"filter_fake_tokens": false,
		"take_profit_target": 10.0,
		"stop_loss_percentage": 0.4,
		"moonbag_percentage": 0.2,
		"max_investment_per_token": 2.0,
		"min_investment_per_token": 0.5,
		"slippage_tolerance": 0.1
	}`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	params := p.Load(ctx)
	assert.Equal(t, 10.0, params.TakeProfitMultiple)
	assert.Equal(t, 0.4, params.StopLossFraction)
	assert.Equal(t, 0.2, params.MoonbagFraction)
	assert.False(t, params.FilterFakeTokens)
	assert.Equal(t, 0.1, params.SlippageTolerance)
}

func TestLoadFallsBackToLastGoodOnGarbage(t *testing.T) {
	p, path := newProvider(t)
	ctx := context.Background()

	edited := `{"running": true, "simulation_mode": true, "filter_fake_tokens": true,
		"take_profit_target": 8.0, "stop_loss_percentage": 0.3, "moonbag_percentage": 0.1,
		"max_investment_per_token": 1.0, "min_investment_per_token": 0.1, "slippage_tolerance": 0.3}`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))
	good := p.Load(ctx)
	require.Equal(t, 8.0, good.TakeProfitMultiple)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	params := p.Load(ctx)
	assert.Equal(t, good, params, "garbage file keeps the last good snapshot")
}

func TestLoadFallsBackToDefaultsWhenFileVanishes(t *testing.T) {
	p, path := newProvider(t)

	require.NoError(t, os.Remove(path))
	params := p.Load(context.Background())
	assert.Equal(t, domain.DefaultRiskParameters(), params)
}

func TestLoadSanitizesBadValues(t *testing.T) {
	p, path := newProvider(t)

	edited := `{"running": true, "simulation_mode": true, "filter_fake_tokens": true,
		"take_profit_target": 0.5, "stop_loss_percentage": 2.0, "moonbag_percentage": -0.1,
		"max_investment_per_token": -1, "min_investment_per_token": 99, "slippage_tolerance": 5}`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	params := p.Load(context.Background())
	def := domain.DefaultRiskParameters()
	assert.Equal(t, def.TakeProfitMultiple, params.TakeProfitMultiple)
	assert.Equal(t, def.StopLossFraction, params.StopLossFraction)
	assert.Equal(t, def.MoonbagFraction, params.MoonbagFraction)
	assert.Equal(t, def.MaxInvestmentPerToken, params.MaxInvestmentPerToken)
	assert.Equal(t, def.MinInvestmentPerToken, params.MinInvestmentPerToken)
	assert.Equal(t, def.SlippageTolerance, params.SlippageTolerance)
}
