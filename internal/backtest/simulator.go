// Package backtest replays the covered-call selection strategy over a
// historical window. The simulator walks the spot history day by day,
// resolving an open short call on the first day at or past its expiry and
// evaluating new candidates a fixed lead ahead of each listed expiration.
// At most one position is open at a time.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"thetaflow/internal/domain"
	"thetaflow/internal/marketdata"
	"thetaflow/internal/strategy"
)

const sharesPerContract = 100

// defaultDecisionLeadDays is how many calendar days before an expiry the
// simulator evaluates candidates for it when the config leaves it unset.
const defaultDecisionLeadDays = 5

// Config holds the parameters of one backtest run.
type Config struct {
	Symbol         string
	Start, End     time.Time
	InitialCapital float64
	InitialShares  int

	// DecisionLeadDays is the calendar-day lead between evaluating an
	// expiry's chain and the expiry itself. Zero selects the default of 5.
	DecisionLeadDays int

	// EarningsDate, when non-nil, enables the selector's earnings blackout.
	EarningsDate *time.Time
}

// Result is the raw output of a run: the daily equity curve, the sealed
// trade ledger, and the reduced summary. A run that found no data or no
// trades returns empty slices, never an error.
type Result struct {
	Snapshots []domain.PortfolioSnapshot
	Trades    []domain.Trade
	Summary   Summary
}

// portfolio is the simulator's private mutable state.
type portfolio struct {
	cash   float64
	shares int
}

// Simulator owns one backtest run. It is not safe for concurrent use, but
// independent Simulators share nothing.
type Simulator struct {
	provider marketdata.Provider
	selector *strategy.Selector
	cfg      Config
	log      *slog.Logger
}

// NewSimulator creates a Simulator for the given data provider, selector,
// and run configuration. A nil logger defaults to slog.Default().
func NewSimulator(provider marketdata.Provider, selector *strategy.Selector, cfg Config, log *slog.Logger) *Simulator {
	if cfg.DecisionLeadDays <= 0 {
		cfg.DecisionLeadDays = defaultDecisionLeadDays
	}
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		provider: provider,
		selector: selector,
		cfg:      cfg,
		log:      log.With("component", "backtest", "symbol", cfg.Symbol),
	}
}

// Run executes the backtest. Missing price history or expirations yields an
// empty Result and a nil error so callers can distinguish "zero trades"
// from a crash; failures scoped to a single expiry are logged and skipped.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	bars, err := s.provider.SpotHistory(ctx, s.cfg.Symbol, s.cfg.Start, s.cfg.End)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			s.log.Warn("no historical price data for window",
				"start", s.cfg.Start.Format("2006-01-02"), "end", s.cfg.End.Format("2006-01-02"))
			return &Result{}, nil
		}
		return nil, fmt.Errorf("loading spot history: %w", err)
	}
	if len(bars) == 0 {
		s.log.Warn("empty spot history for window")
		return &Result{}, nil
	}

	expirations, err := s.provider.Expirations(ctx, s.cfg.Symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			s.log.Warn("no option expirations available")
			return &Result{}, nil
		}
		return nil, fmt.Errorf("listing expirations: %w", err)
	}
	if len(expirations) == 0 {
		s.log.Warn("no option expirations available")
		return &Result{}, nil
	}

	plan := s.planDecisions(bars, expirations)

	state := portfolio{cash: s.cfg.InitialCapital, shares: s.cfg.InitialShares}
	var open *domain.Trade
	result := &Result{}

	for i := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := bars[i]

		// Resolve first: a position whose expiry has been reached is
		// settled at this day's close before anything else happens.
		if open != nil && !bar.Date.Before(open.Expiry) {
			s.resolve(open, bar)
			result.Trades = append(result.Trades, *open)
			open = nil
		}

		if open == nil {
			for _, expiry := range plan[i] {
				trade, err := s.tryOpen(ctx, bar, expiry, &state)
				if err != nil {
					// Failure scoped to one expiry: skip it, keep going.
					s.log.Warn("skipping expiry",
						"expiry", expiry.Format("2006-01-02"), "err", err)
					continue
				}
				if trade != nil {
					open = trade
					break
				}
			}
		}

		result.Snapshots = append(result.Snapshots, snapshot(bar, state))
	}

	if open != nil {
		s.log.Info("position still open at end of window, excluded from ledger",
			"strike", open.Strike, "expiry", open.Expiry.Format("2006-01-02"))
	}

	result.Summary = Summarize(result.Trades, result.Snapshots)
	return result, nil
}

// planDecisions maps each bar index to the expirations whose decision day
// falls on that bar. An expiry qualifies only if the window also contains a
// bar on or after it, so every opened position can be resolved.
func (s *Simulator) planDecisions(bars []domain.Bar, expirations []time.Time) map[int][]time.Time {
	lastDate := bars[len(bars)-1].Date
	plan := make(map[int][]time.Time)

	for _, expiry := range expirations {
		if expiry.Before(bars[0].Date) || lastDate.Before(expiry) {
			continue
		}
		cutoff := expiry.AddDate(0, 0, -s.cfg.DecisionLeadDays)

		// Last bar at or before the cutoff.
		idx := -1
		for i := range bars {
			if bars[i].Date.After(cutoff) {
				break
			}
			idx = i
		}
		if idx < 0 {
			continue
		}
		plan[idx] = append(plan[idx], expiry)
	}
	return plan
}

// tryOpen evaluates the chain for one expiry and opens the top candidate if
// the held shares cover at least one contract. A nil trade with a nil error
// means no position was opened, which is a normal outcome.
func (s *Simulator) tryOpen(ctx context.Context, bar domain.Bar, expiry time.Time, state *portfolio) (*domain.Trade, error) {
	contracts := state.shares / sharesPerContract
	if maxC := s.selector.Params().MaxContracts; contracts > maxC {
		contracts = maxC
	}
	if contracts < 1 {
		s.log.Debug("insufficient shares to cover a contract", "shares", state.shares)
		return nil, nil
	}

	chain, err := s.provider.Chain(ctx, s.cfg.Symbol, expiry)
	if err != nil {
		return nil, fmt.Errorf("fetching chain: %w", err)
	}

	candidates := s.selector.Select(chain, bar.Date, s.cfg.EarningsDate)
	if len(candidates) == 0 {
		s.log.Debug("no qualifying candidates", "expiry", expiry.Format("2006-01-02"))
		return nil, nil
	}

	best := candidates[0]
	premium := best.LastPrice * sharesPerContract * float64(contracts)
	fee := s.selector.Params().FeePerContract * float64(contracts)
	state.cash += premium - fee

	s.log.Info("sold covered call",
		"date", bar.Date.Format("2006-01-02"),
		"strike", best.Strike,
		"expiry", best.Expiry.Format("2006-01-02"),
		"contracts", contracts,
		"premium", premium,
		"probability", best.ProfitProbability,
	)

	return &domain.Trade{
		Symbol:    s.cfg.Symbol,
		EntryDate: bar.Date,
		Expiry:    best.Expiry,
		Strike:    best.Strike,
		Contracts: contracts,
		Premium:   premium,
		Fee:       fee,
	}, nil
}

// resolve seals an open trade against the bar that reached its expiry.
// Shares are retained either way: on assignment the forfeited upside is
// recorded as opportunity cost rather than adjusting cash, so the premium
// already collected is the only cash effect of the trade.
func (s *Simulator) resolve(trade *domain.Trade, bar domain.Bar) {
	trade.ExitPrice = bar.Close
	if bar.Close <= trade.Strike {
		trade.Resolution = domain.ResolutionExpiredWorthless
		trade.Win = true
	} else {
		trade.Resolution = domain.ResolutionAssigned
		trade.Win = false
		trade.OpportunityCost = (bar.Close - trade.Strike) * sharesPerContract * float64(trade.Contracts)
	}

	s.log.Info("resolved position",
		"date", bar.Date.Format("2006-01-02"),
		"strike", trade.Strike,
		"close", bar.Close,
		"resolution", trade.Resolution,
	)
}

// snapshot records the portfolio at the bar's close. The identity
// Total == Cash + Shares*Price holds by construction.
func snapshot(bar domain.Bar, state portfolio) domain.PortfolioSnapshot {
	stockValue := float64(state.shares) * bar.Close
	return domain.PortfolioSnapshot{
		Date:        bar.Date,
		StockPrice:  bar.Close,
		StockShares: state.shares,
		StockValue:  stockValue,
		Cash:        state.cash,
		Total:       state.cash + stockValue,
	}
}
