// Package domain defines the core value types shared across the thetaflow
// platform: option contracts, daily bars, covered-call trades, and portfolio
// snapshots. All types are plain immutable records; the backtest simulator is
// the only component that builds them up incrementally.
package domain

import "time"

// Bar is one day of price history for the underlying equity.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// OptionContract is a single call option observed at a point in time,
// together with the underlying spot price associated with the snapshot.
type OptionContract struct {
	// Symbol is the OCC contract symbol (e.g. "TSLA240119C00250000").
	// Synthetic chains leave it empty or use a generated identifier.
	Symbol            string
	Strike            float64
	Expiry            time.Time
	ImpliedVolatility float64
	LastPrice         float64 // quoted per-share premium
	OpenInterest      int64
	UnderlyingPrice   float64
}

// Resolution describes how a short call position ended.
type Resolution string

const (
	// ResolutionExpiredWorthless means the underlying closed at or below the
	// strike at expiry; the seller keeps the full premium.
	ResolutionExpiredWorthless Resolution = "expired_worthless"

	// ResolutionAssigned means the underlying closed above the strike; the
	// shares would be called away at the strike.
	ResolutionAssigned Resolution = "assigned"
)

// Trade records one covered call sold by the simulator. It is created when
// the position opens and sealed exactly once when the position resolves at
// expiry; a sealed Trade is never mutated again.
type Trade struct {
	Symbol    string
	EntryDate time.Time
	Expiry    time.Time
	Strike    float64
	Contracts int
	Premium   float64 // total collected across all contracts
	Fee       float64 // total fees across all contracts

	// Set at resolution.
	Resolution Resolution // empty while the position is open
	ExitPrice  float64    // underlying close on the resolution day
	Win        bool
	// OpportunityCost is the upside forfeited on assignment:
	// (close - strike) * 100 * contracts. Zero for winning trades.
	OpportunityCost float64
}

// Resolved reports whether the trade has been sealed.
func (t *Trade) Resolved() bool { return t.Resolution != "" }

// NetProfit is the realized outcome of a sealed trade: premium minus fees
// minus any forfeited upside.
func (t *Trade) NetProfit() float64 {
	return t.Premium - t.Fee - t.OpportunityCost
}

// PortfolioSnapshot captures the portfolio at one day's close.
// Total == Cash + float64(StockShares)*StockPrice holds at every snapshot.
type PortfolioSnapshot struct {
	Date        time.Time
	StockPrice  float64
	StockShares int
	StockValue  float64
	Cash        float64
	Total       float64
}
