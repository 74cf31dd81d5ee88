// Package strategy implements the covered-call candidate selection filter:
// given a call option chain snapshot, it applies liquidity, moneyness,
// expiry, volatility, probability, and earnings-blackout rules, then ranks
// the survivors by open interest.
package strategy

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"thetaflow/internal/domain"
	"thetaflow/internal/risk"
	"thetaflow/internal/util"
)

// sharesPerContract is the standard US equity option multiplier.
const sharesPerContract = 100

// Candidate is a contract that survived every selection stage, annotated
// with the model probability and the net premium for selling one contract.
type Candidate struct {
	domain.OptionContract

	// ProfitProbability is the model probability the call expires
	// worthless, as of the selection time.
	ProfitProbability float64

	// TimeToExpiry is the remaining life in years at selection time.
	TimeToExpiry float64

	// NetPremium is the per-contract proceeds: lastPrice*100 - fee.
	NetPremium float64
}

// Selector applies the covered-call selection pipeline. It is stateless
// apart from its parameters; identical inputs always produce identical
// output. The logger only reports contracts dropped for bad data.
type Selector struct {
	params Params
	log    *slog.Logger
}

// NewSelector creates a Selector with the given parameters. A nil logger
// defaults to slog.Default().
func NewSelector(params Params, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{
		params: params,
		log:    log.With("component", "selector"),
	}
}

// Params returns the selector's configuration.
func (s *Selector) Params() Params { return s.params }

// Select filters and ranks the chain, returning at most MaxContracts
// candidates ordered by open interest descending. earnings, when non-nil,
// enables the earnings-blackout stage. An empty result is a normal outcome,
// never an error; a contract the risk model rejects is dropped on its own
// rather than failing the whole chain.
func (s *Selector) Select(chain []domain.OptionContract, now time.Time, earnings *time.Time) []Candidate {
	var candidates []Candidate

	for _, c := range chain {
		// 1. Liquidity: open interest strictly above the threshold.
		if c.OpenInterest <= s.params.LiquidityThreshold {
			continue
		}

		// 2. Moneyness: strictly out-of-the-money beyond the buffer.
		if c.UnderlyingPrice <= 0 || c.Strike <= c.UnderlyingPrice*s.params.MoneynessBuffer {
			continue
		}

		// 3. Expiry strictly in the future, with a minimum remaining life.
		if !c.Expiry.After(now) {
			continue
		}
		tte := util.YearsBetween(now, c.Expiry)
		if tte < s.params.MinTimeToExpiry {
			continue
		}

		// 4. Volatility sanity.
		if c.ImpliedVolatility <= 0 || c.ImpliedVolatility > s.params.VolatilityCap {
			continue
		}

		// 5. Model probability. A contract with data the model rejects is
		// excluded on its own; one bad row must not block the rest.
		prob, err := risk.EstimateProfitProbability(
			c.UnderlyingPrice, c.Strike, tte, s.params.RiskFreeRate, c.ImpliedVolatility)
		if err != nil {
			if errors.Is(err, risk.ErrInvalidInput) {
				s.log.Debug("dropping contract rejected by risk model",
					"contract", c.Symbol, "strike", c.Strike, "err", err)
				continue
			}
			s.log.Warn("risk model error", "contract", c.Symbol, "err", err)
			continue
		}

		// 6. Earnings blackout around a known earnings date.
		if earnings != nil && withinWindow(c.Expiry, *earnings, s.params.EarningsBlackout) {
			continue
		}

		// 7. Probability target.
		if prob < s.params.TargetProbability {
			continue
		}

		candidates = append(candidates, Candidate{
			OptionContract:    c,
			ProfitProbability: prob,
			TimeToExpiry:      tte,
			NetPremium:        c.LastPrice*sharesPerContract - s.params.FeePerContract,
		})
	}

	// 8. Rank by open interest descending; ties break on strike then expiry
	// so the ordering is fully deterministic.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.OpenInterest != b.OpenInterest {
			return a.OpenInterest > b.OpenInterest
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Expiry.Before(b.Expiry)
	})

	// 9. Truncate to the configured number of candidates.
	if len(candidates) > s.params.MaxContracts {
		candidates = candidates[:s.params.MaxContracts]
	}
	return candidates
}

// withinWindow reports whether t falls within w of ref on either side.
func withinWindow(t, ref time.Time, w time.Duration) bool {
	d := t.Sub(ref)
	if d < 0 {
		d = -d
	}
	return d <= w
}
