// Package thetaflow is the public entry point for embedding the
// covered-call toolkit: scan a live chain for candidates, or replay the
// strategy over a historical window.
package thetaflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"thetaflow/internal/backtest"
	"thetaflow/internal/marketdata"
	"thetaflow/internal/strategy"
)

// Params re-exports the selection parameters.
type Params = strategy.Params

// Candidate re-exports a ranked selection result.
type Candidate = strategy.Candidate

// Result re-exports the backtest output.
type Result = backtest.Result

// DefaultParams returns the standard conservative selection parameters.
func DefaultParams() Params { return strategy.DefaultParams() }

// ScanRequest describes one live candidate scan.
type ScanRequest struct {
	Symbol string
	Expiry time.Time

	// Earnings, when non-nil, enables the earnings blackout filter.
	Earnings *time.Time
}

// Scan fetches the call chain for the requested expiry and returns the
// ranked candidates that pass every selection stage. An empty slice means
// nothing qualified.
func Scan(ctx context.Context, provider marketdata.Provider, params Params, req ScanRequest, log *slog.Logger) ([]Candidate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	chain, err := provider.Chain(ctx, req.Symbol, req.Expiry)
	if err != nil {
		return nil, fmt.Errorf("fetching chain for %s %s: %w",
			req.Symbol, req.Expiry.Format("2006-01-02"), err)
	}

	selector := strategy.NewSelector(params, log)
	return selector.Select(chain, time.Now().UTC(), req.Earnings), nil
}

// BacktestRequest describes one historical replay.
type BacktestRequest struct {
	Symbol         string
	Start, End     time.Time
	InitialCapital float64
	InitialShares  int

	// DecisionLeadDays defaults to 5 when zero.
	DecisionLeadDays int

	// Earnings, when non-nil, enables the earnings blackout filter.
	Earnings *time.Time
}

// Backtest replays the strategy over the request window against the given
// provider. Missing data yields an empty Result, not an error.
func Backtest(ctx context.Context, provider marketdata.Provider, params Params, req BacktestRequest, log *slog.Logger) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	selector := strategy.NewSelector(params, log)
	sim := backtest.NewSimulator(provider, selector, backtest.Config{
		Symbol:           req.Symbol,
		Start:            req.Start,
		End:              req.End,
		InitialCapital:   req.InitialCapital,
		InitialShares:    req.InitialShares,
		DecisionLeadDays: req.DecisionLeadDays,
		EarningsDate:     req.Earnings,
	}, log)

	return sim.Run(ctx)
}
