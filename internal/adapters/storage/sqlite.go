package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/solbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Append-only trade ledger. P&L columns are populated on SELL rows only.
CREATE TABLE IF NOT EXISTS trades (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    contract_address TEXT     NOT NULL,
    action           TEXT     NOT NULL CHECK (action IN ('BUY', 'SELL')),
    amount_base      REAL     NOT NULL,
    price            REAL     NOT NULL,
    timestamp        DATETIME NOT NULL,
    tx_id            TEXT     NOT NULL UNIQUE,
    gain_loss_base   REAL,
    percent_change   REAL,
    price_multiple   REAL
);

-- Current open exposure, one row per token, derived from the ledger.
CREATE TABLE IF NOT EXISTS positions (
    contract_address TEXT PRIMARY KEY,
    amount_base      REAL     NOT NULL,
    cost_basis_price REAL     NOT NULL,
    opened_at        DATETIME NOT NULL,
    moonbag_fraction REAL     NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_address ON trades(contract_address);
CREATE INDEX IF NOT EXISTS idx_trades_time    ON trades(timestamp DESC);
`

// SQLiteStore implements ports.PositionStore on SQLite (pure Go, no CGo).
// Every mutation runs in one SQL transaction so the ledger row and the
// position row can never drift apart.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetActivePositions returns every position still holding SOL exposure,
// oldest first so long-held positions are evaluated before fresh entries.
func (s *SQLiteStore) GetActivePositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_address, amount_base, cost_basis_price, opened_at, moonbag_fraction
		FROM positions
		WHERE amount_base > 0
		ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetActivePositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ContractAddress, &p.AmountBase, &p.CostBasisPrice, &p.OpenedAt, &p.MoonbagFraction); err != nil {
			return nil, fmt.Errorf("storage.GetActivePositions: scan: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetTradeHistory returns the most recent ledger rows, newest first.
// limit <= 0 returns everything.
func (s *SQLiteStore) GetTradeHistory(ctx context.Context, limit int) ([]domain.Trade, error) {
	query := `
		SELECT id, contract_address, action, amount_base, price, timestamp,
		       tx_id, gain_loss_base, percent_change, price_multiple
		FROM trades
		ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTradeHistory: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var gain, pct, mult sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.ContractAddress, &t.Action, &t.AmountBase,
			&t.Price, &t.Timestamp, &t.TxID, &gain, &pct, &mult); err != nil {
			return nil, fmt.Errorf("storage.GetTradeHistory: scan: %w", err)
		}
		if gain.Valid {
			t.GainLossBase = &gain.Float64
		}
		if pct.Valid {
			t.PercentChange = &pct.Float64
		}
		if mult.Valid {
			t.PriceMultiple = &mult.Float64
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveOpen books a BUY: inserts the ledger row and upserts the position,
// re-averaging the cost basis when the token is already held.
func (s *SQLiteStore) SaveOpen(ctx context.Context, m domain.OpenMutation) (domain.Position, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, fmt.Errorf("storage.SaveOpen: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trades (contract_address, action, amount_base, price, timestamp, tx_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ContractAddress, domain.ActionBuy, m.AmountBase, m.Price, m.Timestamp, m.TxID,
	); err != nil {
		return domain.Position{}, fmt.Errorf("storage.SaveOpen: insert trade: %w", err)
	}

	pos := domain.Position{
		ContractAddress: m.ContractAddress,
		AmountBase:      m.AmountBase,
		CostBasisPrice:  m.Price,
		OpenedAt:        m.Timestamp,
	}

	var prev domain.Position
	err = tx.QueryRowContext(ctx, `
		SELECT amount_base, cost_basis_price, opened_at, moonbag_fraction
		FROM positions WHERE contract_address = ?`, m.ContractAddress,
	).Scan(&prev.AmountBase, &prev.CostBasisPrice, &prev.OpenedAt, &prev.MoonbagFraction)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (contract_address, amount_base, cost_basis_price, opened_at, moonbag_fraction)
			VALUES (?, ?, ?, ?, 0)`,
			m.ContractAddress, pos.AmountBase, pos.CostBasisPrice, pos.OpenedAt,
		); err != nil {
			return domain.Position{}, fmt.Errorf("storage.SaveOpen: insert position: %w", err)
		}
	case err != nil:
		return domain.Position{}, fmt.Errorf("storage.SaveOpen: load position: %w", err)
	default:
		pos.AmountBase = prev.AmountBase + m.AmountBase
		pos.CostBasisPrice = domain.WeightedCostBasis(prev.AmountBase, prev.CostBasisPrice, m.AmountBase, m.Price)
		pos.OpenedAt = prev.OpenedAt
		pos.MoonbagFraction = prev.MoonbagFraction
		if _, err := tx.ExecContext(ctx, `
			UPDATE positions SET amount_base = ?, cost_basis_price = ?
			WHERE contract_address = ?`,
			pos.AmountBase, pos.CostBasisPrice, m.ContractAddress,
		); err != nil {
			return domain.Position{}, fmt.Errorf("storage.SaveOpen: update position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Position{}, fmt.Errorf("storage.SaveOpen: commit: %w", err)
	}
	return pos, nil
}

// SaveClose books a SELL: inserts the ledger row with its P&L attribution and
// either shrinks the position to the moonbag remainder or deletes it. Booking
// the same tx id twice is a no-op signalled by domain.ErrDuplicateTrade.
func (s *SQLiteStore) SaveClose(ctx context.Context, m domain.CloseMutation) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveClose: begin: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE tx_id = ?`, m.TxID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("storage.SaveClose: check tx id: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("storage.SaveClose: tx %s: %w", m.TxID, domain.ErrDuplicateTrade)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trades (contract_address, action, amount_base, price, timestamp, tx_id,
		                    gain_loss_base, percent_change, price_multiple)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ContractAddress, domain.ActionSell, m.AmountSold, m.ExecutionPrice, m.Timestamp, m.TxID,
		m.PnL.GainLossBase, m.PnL.PercentChange, m.PnL.PriceMultiple,
	); err != nil {
		return fmt.Errorf("storage.SaveClose: insert trade: %w", err)
	}

	if m.RemainingAmount > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE positions SET amount_base = ?, moonbag_fraction = ?
			WHERE contract_address = ?`,
			m.RemainingAmount, m.MoonbagFraction, m.ContractAddress,
		); err != nil {
			return fmt.Errorf("storage.SaveClose: shrink position: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM positions WHERE contract_address = ?`, m.ContractAddress,
		); err != nil {
			return fmt.Errorf("storage.SaveClose: delete position: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveClose: commit: %w", err)
	}
	return nil
}

// GetStats aggregates realized results across the whole ledger.
func (s *SQLiteStore) GetStats(ctx context.Context) (domain.LedgerStats, error) {
	var st domain.LedgerStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(action = 'BUY'), 0),
		       COALESCE(SUM(action = 'SELL'), 0),
		       COALESCE(SUM(action = 'SELL' AND gain_loss_base > 0), 0),
		       COALESCE(SUM(action = 'SELL' AND gain_loss_base <= 0), 0),
		       COALESCE(SUM(gain_loss_base), 0),
		       COALESCE(MAX(price_multiple), 0)
		FROM trades`,
	).Scan(&st.TotalTrades, &st.Buys, &st.Sells, &st.Wins, &st.Losses, &st.RealizedPnL, &st.BestMultiple)
	if err != nil {
		return domain.LedgerStats{}, fmt.Errorf("storage.GetStats: trades: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE amount_base > 0`,
	).Scan(&st.ActivePositions); err != nil {
		return domain.LedgerStats{}, fmt.Errorf("storage.GetStats: positions: %w", err)
	}
	return st, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
