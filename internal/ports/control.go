package ports

import (
	"context"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// ControlProvider loads the hot-reloadable risk parameters. Load is called
// once per engine cycle and always succeeds: a missing or malformed source
// falls back to the last known good snapshot, then to built-in defaults.
type ControlProvider interface {
	Load(ctx context.Context) domain.RiskParameters
}
