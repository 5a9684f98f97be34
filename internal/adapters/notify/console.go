package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/solbot/internal/domain"
)

// Console implements ports.Notifier on stdout.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier that writes to stdout. With table=false it
// prints one compact line per cycle; with table=true a full position table.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle prints the result of one engine cycle.
func (c *Console) NotifyCycle(_ context.Context, report domain.CycleReport) error {
	now := report.StartedAt.Format("15:04:05")

	if report.Paused {
		fmt.Fprintf(c.out, "[%s] paused — skipping evaluation\n", now)
		return nil
	}
	if report.Evaluated == 0 {
		fmt.Fprintf(c.out, "[%s] no active positions\n", now)
		return nil
	}

	if c.table {
		c.printFull(report)
	} else {
		c.printCompact(report)
	}
	return nil
}

// printCompact fits a whole cycle in one line.
func (c *Console) printCompact(report domain.CycleReport) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d positions → held:%d closed:%d skipped:%d (%.1fs)",
		report.StartedAt.Format("15:04:05"),
		report.Evaluated, report.Held, len(report.Closes), report.Skipped,
		report.Duration.Seconds())

	for _, ev := range report.Closes {
		fmt.Fprintf(&sb, " | %s %s %+.1f%% (%.4f SOL)",
			closeIcon(ev.Kind), shortAddress(ev.ContractAddress),
			ev.PnL.PercentChange, ev.PnL.GainLossBase)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull prints the position table plus one line per executed close.
func (c *Console) printFull(report domain.CycleReport) {
	fmt.Fprintf(c.out, "\n[%s] %d positions — held:%d closed:%d skipped:%d\n",
		report.StartedAt.Format("15:04:05"),
		report.Evaluated, report.Held, len(report.Closes), report.Skipped)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Token", "SOL", "Cost basis", "Price", "Multiple", "Change", "Age")

	for i, pos := range report.Positions {
		table.Append(
			fmt.Sprintf("%d", i+1),
			shortAddress(pos.ContractAddress),
			fmt.Sprintf("%.4f", pos.AmountBase),
			fmt.Sprintf("%.9f", pos.CostBasisPrice),
			fmt.Sprintf("%.9f", pos.CurrentPrice),
			fmt.Sprintf("%.2fx", pos.PriceMultiple),
			fmt.Sprintf("%+.1f%%", pos.PercentChange),
			formatAge(time.Since(pos.OpenedAt)),
		)
	}
	table.Render()

	for _, ev := range report.Closes {
		fmt.Fprintf(c.out, "  %s %s %s → sold %.0f%% at %.9f, P/L %.4f SOL (%+.1f%%) tx %s\n",
			closeIcon(ev.Kind), ev.Kind, shortAddress(ev.ContractAddress),
			ev.SellFraction*100, ev.ExecutionPrice,
			ev.PnL.GainLossBase, ev.PnL.PercentChange, shortTx(ev.TxID))
	}
	fmt.Fprintln(c.out)
}

// PrintStats renders the realized ledger results, used by the -stats command.
func (c *Console) PrintStats(stats domain.LedgerStats) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Trades", "Buys", "Sells", "Wins", "Losses", "Realized P/L", "Best", "Open")
	table.Append(
		fmt.Sprintf("%d", stats.TotalTrades),
		fmt.Sprintf("%d", stats.Buys),
		fmt.Sprintf("%d", stats.Sells),
		fmt.Sprintf("%d", stats.Wins),
		fmt.Sprintf("%d", stats.Losses),
		fmt.Sprintf("%.4f SOL", stats.RealizedPnL),
		fmt.Sprintf("%.2fx", stats.BestMultiple),
		fmt.Sprintf("%d", stats.ActivePositions),
	)
	table.Render()
}

// PrintHistory renders recent ledger rows, newest first.
func (c *Console) PrintHistory(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "no trades recorded")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("When", "Action", "Token", "SOL", "Price", "P/L", "Tx")

	for _, t := range trades {
		pnl := ""
		if t.GainLossBase != nil {
			pnl = fmt.Sprintf("%.4f (%+.1f%%)", *t.GainLossBase, *t.PercentChange)
		}
		table.Append(
			t.Timestamp.Format("01-02 15:04"),
			string(t.Action),
			shortAddress(t.ContractAddress),
			fmt.Sprintf("%.4f", t.AmountBase),
			fmt.Sprintf("%.9f", t.Price),
			pnl,
			shortTx(t.TxID),
		)
	}
	table.Render()
}

func closeIcon(kind domain.DecisionKind) string {
	if kind == domain.DecisionTakeProfit {
		return "🟢"
	}
	return "🔴"
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + "…"
}

func shortTx(tx string) string {
	if len(tx) <= 16 {
		return tx
	}
	return tx[:16] + "…"
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}
