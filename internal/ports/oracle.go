package ports

import (
	"context"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// PriceOracle returns best-effort market snapshots for token addresses,
// hiding backend failover, caching, and rate limiting.
type PriceOracle interface {
	// GetSnapshot returns the current snapshot for a token, or nil when every
	// backend failed or the address is filtered as a likely fake. Transient
	// backend trouble never surfaces as an error — callers skip nil and move on.
	GetSnapshot(ctx context.Context, address string) *domain.Snapshot

	// SolPriceUSD returns the SOL/USD reference price, cached on its own TTL.
	// Returns the last known or built-in default when all sources fail.
	SolPriceUSD(ctx context.Context) float64

	// SetFilterEnabled toggles the fake-token denylist. The engine applies the
	// control file's filter_fake_tokens once per cycle. Safe for concurrent use.
	SetFilterEnabled(enabled bool)
}
