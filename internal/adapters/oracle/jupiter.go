package oracle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/solbot/internal/domain"
)

const (
	jupiterMinInterval = 200 * time.Millisecond
	jupiterPerMinute   = 60
)

// jupiterPriceBackend is the fallback price source. Jupiter's price API only
// carries a USD price — volume/liquidity stay zero, which is still enough for
// the risk evaluator to run.
type jupiterPriceBackend struct {
	base   string // e.g. https://lite-api.jup.ag/price/v2
	client *httpClient
}

func newJupiterPrice(base string, retries int, baseWait time.Duration) *jupiterPriceBackend {
	return &jupiterPriceBackend{
		base:   base,
		client: newHTTPClient("jupiter-price", jupiterMinInterval, jupiterPerMinute, retries, baseWait),
	}
}

func (b *jupiterPriceBackend) Name() string { return "jupiter" }

func (b *jupiterPriceBackend) Snapshot(ctx context.Context, address string) (*domain.Snapshot, error) {
	var res jupiterPriceResponse
	url := fmt.Sprintf("%s?ids=%s", b.base, address)
	if err := b.client.getJSON(ctx, url, &res); err != nil {
		return nil, err
	}

	entry, ok := res.Data[address]
	if !ok || entry == nil {
		return nil, fmt.Errorf("jupiter: no price data for %s", address)
	}
	priceUSD, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("jupiter: parse price %q: %w", entry.Price, err)
	}

	return &domain.Snapshot{
		ContractAddress: address,
		PriceUSD:        priceUSD,
	}, nil
}

type jupiterPriceResponse struct {
	Data map[string]*jupiterPriceEntry `json:"data"`
}

type jupiterPriceEntry struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}
