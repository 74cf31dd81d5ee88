// Package marketdata supplies the point-in-time market snapshots consumed
// by the selection filter and the backtest simulator: daily closing prices,
// listed option expirations, and call option chains. Providers hand out
// immutable snapshot slices; nothing in this package retains a live handle
// the core could observe mutating.
package marketdata

import (
	"context"
	"errors"
	"time"

	"thetaflow/internal/domain"
)

// ErrNoData reports that a provider has no data for the requested symbol or
// window. Callers treat it as "ran with nothing to do", not as a failure.
var ErrNoData = errors.New("marketdata: no data available")

// Provider is the external market-data collaborator.
type Provider interface {
	// SpotHistory returns daily bars for [start, end], ascending by date.
	SpotHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// Expirations returns the listed option expiration dates for the
	// symbol, ascending.
	Expirations(ctx context.Context, symbol string) ([]time.Time, error)

	// Chain returns the call contracts for one expiry, each carrying the
	// spot price associated with the snapshot.
	Chain(ctx context.Context, symbol string, expiry time.Time) ([]domain.OptionContract, error)
}
