package oracle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// DexScreener rate limits: docs allow 300/min on the token endpoints; we run
// at 10% of that with a 500ms floor between requests.
const (
	dexScreenerMinInterval = 500 * time.Millisecond
	dexScreenerPerMinute   = 30
)

// dexScreenerBackend normalizes DexScreener's pair-shaped payload into a
// Snapshot at the boundary. Primary backend: richest data (volume, liquidity,
// price changes) of the free APIs.
type dexScreenerBackend struct {
	base   string // e.g. https://api.dexscreener.com/latest/dex
	client *httpClient
}

func newDexScreener(base string, retries int, baseWait time.Duration) *dexScreenerBackend {
	return &dexScreenerBackend{
		base:   base,
		client: newHTTPClient("dexscreener", dexScreenerMinInterval, dexScreenerPerMinute, retries, baseWait),
	}
}

func (b *dexScreenerBackend) Name() string { return "dexscreener" }

func (b *dexScreenerBackend) Snapshot(ctx context.Context, address string) (*domain.Snapshot, error) {
	var res dexTokenResponse
	url := fmt.Sprintf("%s/tokens/%s", b.base, address)
	if err := b.client.getJSON(ctx, url, &res); err != nil {
		return nil, err
	}
	if len(res.Pairs) == 0 {
		return nil, fmt.Errorf("dexscreener: no pairs for %s", address)
	}

	// First pair is typically the most liquid one.
	pair := res.Pairs[0]
	priceUSD, err := strconv.ParseFloat(pair.PriceUSD, 64)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: parse priceUsd %q: %w", pair.PriceUSD, err)
	}

	marketCap := pair.MarketCap
	if marketCap == 0 {
		marketCap = pair.FDV
	}

	return &domain.Snapshot{
		ContractAddress: address,
		Symbol:          pair.BaseToken.Symbol,
		PriceUSD:        priceUSD,
		Volume24h:       pair.Volume.H24,
		LiquidityUSD:    pair.Liquidity.USD,
		Holders:         pair.Holders,
		MarketCap:       marketCap,
		PriceChange1h:   pair.PriceChange.H1,
		PriceChange6h:   pair.PriceChange.H6,
		PriceChange24h:  pair.PriceChange.H24,
	}, nil
}

type dexTokenResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type dexPair struct {
	BaseToken struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"baseToken"`
	PriceUSD string `json:"priceUsd"`
	Volume   struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	FDV       float64 `json:"fdv"`
	MarketCap float64 `json:"marketCap"`
	Holders   int     `json:"holders"`
}
