// Package store persists thetaflow's data: Parquet files cache daily bars
// and option-chain snapshots between runs, and SQLite keeps the registry of
// completed backtests with their trade ledgers and equity curves.
package store

import (
	"context"
	"time"

	"thetaflow/internal/domain"
)

// BarStore caches daily spot history.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with existing data.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns cached bars for the symbol within [start, end],
	// ascending by date.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with cached bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ChainStore caches option-chain snapshots by observation date.
type ChainStore interface {
	// WriteChain persists one chain snapshot observed at asOf.
	WriteChain(ctx context.Context, underlying string, asOf time.Time, chain []domain.OptionContract) error

	// ReadChain returns the cached contracts for the symbol observed at
	// asOf, across all expiries.
	ReadChain(ctx context.Context, underlying string, asOf time.Time) ([]domain.OptionContract, error)
}

// BacktestRun is one completed simulator run: headline summary plus the
// sealed ledger and daily equity curve.
type BacktestRun struct {
	ID         int64
	Symbol     string
	Start      time.Time
	End        time.Time
	CreatedAt  time.Time
	TradeCount int
	WinRate    float64
	NetProfit  float64

	Trades    []domain.Trade
	Snapshots []domain.PortfolioSnapshot
}

// RunStore persists backtest runs.
type RunStore interface {
	// SaveRun inserts the run with its trades and snapshots, returning the
	// assigned run ID.
	SaveRun(ctx context.Context, run *BacktestRun) (int64, error)

	// ListRuns returns run summaries for a symbol, newest first, without
	// ledgers or curves. An empty symbol lists every run.
	ListRuns(ctx context.Context, symbol string) ([]BacktestRun, error)

	// GetRun returns one run with its full ledger and equity curve.
	GetRun(ctx context.Context, id int64) (*BacktestRun, error)
}
