package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"thetaflow/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const dateFormat = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	end_date    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	trade_count INTEGER NOT NULL,
	win_rate    REAL NOT NULL,
	net_profit  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id           INTEGER NOT NULL REFERENCES runs(id),
	entry_date       TEXT NOT NULL,
	expiry           TEXT NOT NULL,
	strike           REAL NOT NULL,
	contracts        INTEGER NOT NULL,
	premium          REAL NOT NULL,
	fee              REAL NOT NULL,
	resolution       TEXT NOT NULL,
	exit_price       REAL NOT NULL,
	win              INTEGER NOT NULL,
	opportunity_cost REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	date        TEXT NOT NULL,
	stock_price REAL NOT NULL,
	shares      INTEGER NOT NULL,
	cash        REAL NOT NULL,
	total       REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id);
`

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run with its trade ledger and equity curve in a
// single transaction and returns the assigned run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *BacktestRun) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (symbol, start_date, end_date, created_at, trade_count, win_rate, net_profit)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Symbol,
		run.Start.Format(dateFormat),
		run.End.Format(dateFormat),
		createdAt.Format(time.RFC3339),
		run.TradeCount,
		run.WinRate,
		run.NetProfit,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i := range run.Trades {
		t := &run.Trades[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO trades (run_id, entry_date, expiry, strike, contracts, premium, fee, resolution, exit_price, win, opportunity_cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			t.EntryDate.Format(dateFormat),
			t.Expiry.Format(dateFormat),
			t.Strike,
			t.Contracts,
			t.Premium,
			t.Fee,
			string(t.Resolution),
			t.ExitPrice,
			boolToInt(t.Win),
			t.OpportunityCost,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	for i := range run.Snapshots {
		sn := &run.Snapshots[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (run_id, date, stock_price, shares, cash, total)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID,
			sn.Date.Format(dateFormat),
			sn.StockPrice,
			sn.StockShares,
			sn.Cash,
			sn.Total,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting snapshot %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns run summaries, newest first. An empty symbol matches
// every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, symbol string) ([]BacktestRun, error) {
	query := `SELECT id, symbol, start_date, end_date, created_at, trade_count, win_rate, net_profit
		  FROM runs`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its full trade ledger and equity curve, or
// sql.ErrNoRows if the ID is unknown.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*BacktestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, start_date, end_date, created_at, trade_count, win_rate, net_profit
		 FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if run.Trades, err = s.runTrades(ctx, id, run.Symbol); err != nil {
		return nil, err
	}
	if run.Snapshots, err = s.runSnapshots(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStore) runTrades(ctx context.Context, runID int64, symbol string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_date, expiry, strike, contracts, premium, fee, resolution, exit_price, win, opportunity_cost
		 FROM trades WHERE run_id = ? ORDER BY entry_date, expiry`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t             domain.Trade
			entry, expiry string
			resolution    string
			win           int
		)
		if err := rows.Scan(&entry, &expiry, &t.Strike, &t.Contracts, &t.Premium, &t.Fee,
			&resolution, &t.ExitPrice, &win, &t.OpportunityCost); err != nil {
			return nil, err
		}
		if t.EntryDate, err = time.Parse(dateFormat, entry); err != nil {
			return nil, fmt.Errorf("parsing trade entry date %q: %w", entry, err)
		}
		if t.Expiry, err = time.Parse(dateFormat, expiry); err != nil {
			return nil, fmt.Errorf("parsing trade expiry %q: %w", expiry, err)
		}
		t.Symbol = symbol
		t.Resolution = domain.Resolution(resolution)
		t.Win = win != 0
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) runSnapshots(ctx context.Context, runID int64) ([]domain.PortfolioSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, stock_price, shares, cash, total
		 FROM snapshots WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []domain.PortfolioSnapshot
	for rows.Next() {
		var (
			sn   domain.PortfolioSnapshot
			date string
		)
		if err := rows.Scan(&date, &sn.StockPrice, &sn.StockShares, &sn.Cash, &sn.Total); err != nil {
			return nil, err
		}
		if sn.Date, err = time.Parse(dateFormat, date); err != nil {
			return nil, fmt.Errorf("parsing snapshot date %q: %w", date, err)
		}
		sn.StockValue = float64(sn.StockShares) * sn.StockPrice
		snapshots = append(snapshots, sn)
	}
	return snapshots, rows.Err()
}

func scanRun(rows *sql.Rows) (BacktestRun, error) {
	var (
		run                   BacktestRun
		start, end, createdAt string
	)
	if err := rows.Scan(&run.ID, &run.Symbol, &start, &end, &createdAt,
		&run.TradeCount, &run.WinRate, &run.NetProfit); err != nil {
		return BacktestRun{}, err
	}

	var err error
	if run.Start, err = time.Parse(dateFormat, start); err != nil {
		return BacktestRun{}, fmt.Errorf("parsing run start %q: %w", start, err)
	}
	if run.End, err = time.Parse(dateFormat, end); err != nil {
		return BacktestRun{}, fmt.Errorf("parsing run end %q: %w", end, err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return BacktestRun{}, fmt.Errorf("parsing run created_at %q: %w", createdAt, err)
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
