package ports

import (
	"context"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// Notifier presents cycle results to the user.
type Notifier interface {
	// NotifyCycle reports one engine cycle: open positions, executed closes,
	// and skip counts. The console implementation prints a formatted table.
	NotifyCycle(ctx context.Context, report domain.CycleReport) error
}
