package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/solbot/internal/domain"
)

const (
	defaultDexScreenerBase  = "https://api.dexscreener.com/latest/dex"
	defaultJupiterPriceBase = "https://lite-api.jup.ag/price/v2"
	defaultCoinGeckoURL     = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
	defaultCoinbaseURL      = "https://api.coinbase.com/v2/prices/SOL-USD/spot"

	defaultSnapshotTTL = 5 * time.Minute
	defaultSolPriceTTL = 10 * time.Minute

	// Last resort when every SOL price source is down and nothing is cached.
	defaultSolPriceUSD = 171.41

	// Wrapped SOL mint, used to query Jupiter for the SOL reference price.
	solMint = "So11111111111111111111111111111111111111112"
)

// Config controls backend endpoints, cache TTLs, and retry behavior.
type Config struct {
	DexScreenerBase  string
	JupiterPriceBase string
	CoinGeckoURL     string
	CoinbaseURL      string

	SnapshotTTL  time.Duration
	SolPriceTTL  time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	MinLiquidity float64 // snapshots below this USD liquidity are discarded when filtering
}

// DefaultConfig returns production endpoints and TTLs.
func DefaultConfig() Config {
	return Config{
		DexScreenerBase:  defaultDexScreenerBase,
		JupiterPriceBase: defaultJupiterPriceBase,
		CoinGeckoURL:     defaultCoinGeckoURL,
		CoinbaseURL:      defaultCoinbaseURL,
		SnapshotTTL:      defaultSnapshotTTL,
		SolPriceTTL:      defaultSolPriceTTL,
		MaxRetries:       defaultMaxRetries,
		RetryBase:        defaultBaseWait,
		MinLiquidity:     1000,
	}
}

// snapshotBackend is one market-data source in the fallback chain.
type snapshotBackend interface {
	Name() string
	Snapshot(ctx context.Context, address string) (*domain.Snapshot, error)
}

type cacheEntry struct {
	snap    domain.Snapshot
	fetched time.Time
}

// Oracle implements ports.PriceOracle: fixed-order backend failover with an
// in-memory TTL cache and a separately cached SOL/USD reference price.
// Safe for concurrent use — the limiter and backoff state inside each backend
// client are shared across callers.
type Oracle struct {
	cfg      Config
	backends []snapshotBackend
	ref      *httpClient
	filter   atomic.Bool

	mu         sync.Mutex
	cache      map[string]cacheEntry
	solPrice   float64
	solPriceAt time.Time
}

// New builds an Oracle with the DexScreener→Jupiter fallback order.
func New(cfg Config) *Oracle {
	def := DefaultConfig()
	if cfg.DexScreenerBase == "" {
		cfg.DexScreenerBase = def.DexScreenerBase
	}
	if cfg.JupiterPriceBase == "" {
		cfg.JupiterPriceBase = def.JupiterPriceBase
	}
	if cfg.CoinGeckoURL == "" {
		cfg.CoinGeckoURL = def.CoinGeckoURL
	}
	if cfg.CoinbaseURL == "" {
		cfg.CoinbaseURL = def.CoinbaseURL
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = def.SnapshotTTL
	}
	if cfg.SolPriceTTL <= 0 {
		cfg.SolPriceTTL = def.SolPriceTTL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.MinLiquidity == 0 {
		cfg.MinLiquidity = def.MinLiquidity // negative disables the floor
	}

	o := &Oracle{
		cfg: cfg,
		backends: []snapshotBackend{
			newDexScreener(cfg.DexScreenerBase, cfg.MaxRetries, cfg.RetryBase),
			newJupiterPrice(cfg.JupiterPriceBase, cfg.MaxRetries, cfg.RetryBase),
		},
		ref:   newHTTPClient("sol-price", time.Second, 30, cfg.MaxRetries, cfg.RetryBase),
		cache: make(map[string]cacheEntry),
	}
	o.filter.Store(true)
	return o
}

// SetFilterEnabled toggles the fake-token denylist.
func (o *Oracle) SetFilterEnabled(enabled bool) {
	o.filter.Store(enabled)
}

// GetSnapshot returns the freshest snapshot for a token, or nil when every
// backend failed or the address is filtered. Never returns an error — callers
// must skip nil for this cycle, not treat it as a zero price.
func (o *Oracle) GetSnapshot(ctx context.Context, address string) *domain.Snapshot {
	if o.filter.Load() && isLikelyFake(address) {
		slog.Debug("oracle: address filtered as likely fake", "address", address)
		return nil
	}

	if snap := o.cached(address); snap != nil {
		return snap
	}

	for _, b := range o.backends {
		snap, err := b.Snapshot(ctx, address)
		if err != nil {
			slog.Debug("oracle: backend failed", "backend", b.Name(), "address", address, "err", err)
			continue
		}
		if snap.PriceUSD <= 0 {
			slog.Debug("oracle: backend returned zero price", "backend", b.Name(), "address", address)
			continue
		}
		if o.filter.Load() && snap.LiquidityUSD > 0 && snap.LiquidityUSD < o.cfg.MinLiquidity {
			slog.Warn("oracle: liquidity below floor, treating as low-quality token",
				"address", address, "liquidity", snap.LiquidityUSD)
			return nil
		}

		snap.FetchedAt = time.Now().UTC()
		o.mu.Lock()
		o.cache[address] = cacheEntry{snap: *snap, fetched: snap.FetchedAt}
		o.mu.Unlock()
		return snap
	}

	slog.Warn("oracle: all backends failed", "address", address)
	return nil
}

func (o *Oracle) cached(address string) *domain.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.cache[address]
	if !ok || time.Since(entry.fetched) > o.cfg.SnapshotTTL {
		return nil
	}
	snap := entry.snap
	return &snap
}

// SolPriceUSD returns the SOL/USD reference price. Sources are tried in a
// fixed order (CoinGecko, Jupiter, Coinbase) on a longer TTL than token
// snapshots to avoid hammering public price APIs; when everything fails it
// returns the last known price, then a built-in default.
func (o *Oracle) SolPriceUSD(ctx context.Context) float64 {
	o.mu.Lock()
	if o.solPrice > 0 && time.Since(o.solPriceAt) < o.cfg.SolPriceTTL {
		price := o.solPrice
		o.mu.Unlock()
		return price
	}
	lastKnown := o.solPrice
	o.mu.Unlock()

	sources := []func(context.Context) (float64, error){
		o.solPriceCoinGecko,
		o.solPriceJupiter,
		o.solPriceCoinbase,
	}
	for _, source := range sources {
		price, err := source(ctx)
		if err != nil || price <= 0 {
			if err != nil {
				slog.Debug("oracle: sol price source failed", "err", err)
			}
			continue
		}
		o.mu.Lock()
		o.solPrice = price
		o.solPriceAt = time.Now()
		o.mu.Unlock()
		return price
	}

	if lastKnown > 0 {
		slog.Warn("oracle: all sol price sources failed, using last known", "price", lastKnown)
		return lastKnown
	}
	slog.Warn("oracle: all sol price sources failed, using default", "price", defaultSolPriceUSD)
	return defaultSolPriceUSD
}

func (o *Oracle) solPriceCoinGecko(ctx context.Context) (float64, error) {
	var res struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := o.ref.getJSON(ctx, o.cfg.CoinGeckoURL, &res); err != nil {
		return 0, err
	}
	return res.Solana.USD, nil
}

func (o *Oracle) solPriceJupiter(ctx context.Context) (float64, error) {
	var res jupiterPriceResponse
	url := o.cfg.JupiterPriceBase + "?ids=" + solMint
	if err := o.ref.getJSON(ctx, url, &res); err != nil {
		return 0, err
	}
	entry := res.Data[solMint]
	if entry == nil {
		return 0, fmt.Errorf("jupiter: no price data for %s", solMint)
	}
	return strconv.ParseFloat(entry.Price, 64)
}

func (o *Oracle) solPriceCoinbase(ctx context.Context) (float64, error) {
	var res struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := o.ref.getJSON(ctx, o.cfg.CoinbaseURL, &res); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(res.Data.Amount, 64)
}
