package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/alejandrodnm/solbot/internal/domain"
	"github.com/alejandrodnm/solbot/internal/ports"
)

// controlFile is the on-disk JSON layout. Field names match the file an
// operator edits by hand, so every key is snake_case.
type controlFile struct {
	Running               bool    `json:"running"`
	SimulationMode        bool    `json:"simulation_mode"`
	FilterFakeTokens      bool    `json:"filter_fake_tokens"`
	TakeProfitTarget      float64 `json:"take_profit_target"`
	StopLossPercentage    float64 `json:"stop_loss_percentage"`
	MoonbagPercentage     float64 `json:"moonbag_percentage"`
	MaxInvestmentPerToken float64 `json:"max_investment_per_token"`
	MinInvestmentPerToken float64 `json:"min_investment_per_token"`
	SlippageTolerance     float64 `json:"slippage_tolerance"`
}

// FileProvider reads risk parameters from a JSON control file on every Load,
// so an operator can retune a running bot with a text editor. A missing or
// malformed file never stops a cycle: Load falls back to the last good
// snapshot, then to built-in defaults.
type FileProvider struct {
	path string

	mu        sync.Mutex
	lastGood  domain.RiskParameters
	haveGood  bool
	warnedBad bool
}

var _ ports.ControlProvider = (*FileProvider)(nil)

// NewFileProvider wires the provider to path. If the file does not exist it
// is created with the defaults so the operator has something to edit.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := p.writeDefaults(); err != nil {
			return nil, fmt.Errorf("control.NewFileProvider: seed %q: %w", path, err)
		}
		slog.Info("control: created default control file", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("control.NewFileProvider: stat %q: %w", path, err)
	}
	return p, nil
}

// Load returns a consistent parameter snapshot for one cycle.
func (p *FileProvider) Load(ctx context.Context) domain.RiskParameters {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		return p.fallback(err)
	}

	var cf controlFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return p.fallback(err)
	}

	params := domain.RiskParameters{
		Running:               cf.Running,
		SimulationMode:        cf.SimulationMode,
		FilterFakeTokens:      cf.FilterFakeTokens,
		TakeProfitMultiple:    cf.TakeProfitTarget,
		StopLossFraction:      cf.StopLossPercentage,
		MoonbagFraction:       cf.MoonbagPercentage,
		MaxInvestmentPerToken: cf.MaxInvestmentPerToken,
		MinInvestmentPerToken: cf.MinInvestmentPerToken,
		SlippageTolerance:     cf.SlippageTolerance,
	}
	sanitize(&params)

	p.lastGood = params
	p.haveGood = true
	p.warnedBad = false
	return params
}

// fallback returns the last good snapshot or the defaults, logging the
// underlying problem once per bad streak instead of every 60 seconds.
func (p *FileProvider) fallback(cause error) domain.RiskParameters {
	if !p.warnedBad {
		slog.Warn("control: cannot read control file, using fallback parameters",
			"path", p.path, "err", cause)
		p.warnedBad = true
	}
	if p.haveGood {
		return p.lastGood
	}
	return domain.DefaultRiskParameters()
}

// sanitize clamps hand-edited values to sane ranges rather than rejecting the
// whole file over one bad field.
func sanitize(params *domain.RiskParameters) {
	def := domain.DefaultRiskParameters()
	if params.TakeProfitMultiple <= 1 {
		params.TakeProfitMultiple = def.TakeProfitMultiple
	}
	if params.StopLossFraction <= 0 || params.StopLossFraction >= 1 {
		params.StopLossFraction = def.StopLossFraction
	}
	if params.MoonbagFraction < 0 || params.MoonbagFraction >= 1 {
		params.MoonbagFraction = def.MoonbagFraction
	}
	if params.MaxInvestmentPerToken <= 0 {
		params.MaxInvestmentPerToken = def.MaxInvestmentPerToken
	}
	if params.MinInvestmentPerToken <= 0 || params.MinInvestmentPerToken > params.MaxInvestmentPerToken {
		params.MinInvestmentPerToken = def.MinInvestmentPerToken
	}
	if params.SlippageTolerance <= 0 || params.SlippageTolerance >= 1 {
		params.SlippageTolerance = def.SlippageTolerance
	}
}

func (p *FileProvider) writeDefaults() error {
	def := domain.DefaultRiskParameters()
	cf := controlFile{
		Running:               def.Running,
		SimulationMode:        def.SimulationMode,
		FilterFakeTokens:      def.FilterFakeTokens,
		TakeProfitTarget:      def.TakeProfitMultiple,
		StopLossPercentage:    def.StopLossFraction,
		MoonbagPercentage:     def.MoonbagFraction,
		MaxInvestmentPerToken: def.MaxInvestmentPerToken,
		MinInvestmentPerToken: def.MinInvestmentPerToken,
		SlippageTolerance:     def.SlippageTolerance,
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, append(data, '\n'), 0o644)
}
