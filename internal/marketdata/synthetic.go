package marketdata

import (
	"context"
	"fmt"
	"math"
	"time"

	"thetaflow/internal/domain"
	"thetaflow/internal/util"
)

// Defaults for synthetic chain generation.
const (
	synthLeadDays     = 5    // chain snapshot is taken this many days before expiry
	synthBaseOI       = 5000 // open interest at the money
	synthFallbackVol  = 0.40
	synthMinMoneyness = 0.80
	synthMaxMoneyness = 1.40
	synthStrikeStep   = 0.025
)

// SyntheticProvider generates deterministic option chains from a reference
// daily price series. Historical chain data is rarely available to
// backtests, so the simulator replays selection logic against chains priced
// with Black-Scholes off the real (or cached) spot history: weekly Friday
// expirations, strikes on a 2.5% moneyness grid, and open interest decaying
// with distance from the money.
type SyntheticProvider struct {
	symbol string
	bars   []domain.Bar // ascending by date
	vol    float64
	rate   float64
}

var _ Provider = (*SyntheticProvider)(nil)

// NewSyntheticProvider creates a provider for one symbol over the given
// ascending bar series. impliedVol sets the flat volatility used to quote
// the generated chains; pass 0 to estimate it from the bars' realized
// volatility.
func NewSyntheticProvider(symbol string, bars []domain.Bar, impliedVol, riskFreeRate float64) *SyntheticProvider {
	if impliedVol <= 0 {
		impliedVol = RealizedVolatility(bars)
	}
	return &SyntheticProvider{
		symbol: symbol,
		bars:   bars,
		vol:    impliedVol,
		rate:   riskFreeRate,
	}
}

// SpotHistory returns the subset of the reference series inside [start, end].
func (p *SyntheticProvider) SpotHistory(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if symbol != p.symbol || len(p.bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	var out []domain.Bar
	for _, b := range p.bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s in [%s, %s]", ErrNoData, symbol,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return out, nil
}

// Expirations returns every Friday covered by the reference series.
func (p *SyntheticProvider) Expirations(_ context.Context, symbol string) ([]time.Time, error) {
	if symbol != p.symbol || len(p.bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return util.FridaysBetween(p.bars[0].Date, p.bars[len(p.bars)-1].Date), nil
}

// Chain generates the call chain for one expiry, priced off the last bar at
// least synthLeadDays before the expiry (falling back to the last bar
// strictly before it).
func (p *SyntheticProvider) Chain(_ context.Context, symbol string, expiry time.Time) ([]domain.OptionContract, error) {
	if symbol != p.symbol {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	ref, ok := p.referenceBar(expiry)
	if !ok {
		return nil, fmt.Errorf("%w: no bar before expiry %s", ErrNoData, expiry.Format("2006-01-02"))
	}

	spot := ref.Close
	tte := util.YearsBetween(ref.Date, expiry)
	if tte < 1.0/365 {
		tte = 1.0 / 365
	}

	var chain []domain.OptionContract
	for m := synthMinMoneyness; m <= synthMaxMoneyness+1e-9; m += synthStrikeStep {
		strike := math.Round(spot*m*100) / 100
		last := math.Round(bsCallPrice(spot, strike, tte, p.rate, p.vol)*100) / 100

		// Liquidity concentrates at the money and thins out along the wings.
		oi := int64(synthBaseOI / (1 + 20*math.Abs(m-1)))

		chain = append(chain, domain.OptionContract{
			Symbol:            occSymbol(p.symbol, expiry, strike),
			Strike:            strike,
			Expiry:            expiry,
			ImpliedVolatility: p.vol,
			LastPrice:         last,
			OpenInterest:      oi,
			UnderlyingPrice:   spot,
		})
	}
	return chain, nil
}

// referenceBar picks the bar whose close prices the chain snapshot: the
// last bar at or before the lead cutoff, or failing that the first bar
// after it that still precedes the expiry.
func (p *SyntheticProvider) referenceBar(expiry time.Time) (domain.Bar, bool) {
	cutoff := expiry.AddDate(0, 0, -synthLeadDays)
	var ref domain.Bar
	found := false
	for _, b := range p.bars {
		if !b.Date.Before(expiry) {
			break
		}
		if b.Date.After(cutoff) && found {
			continue
		}
		ref = b
		found = true
	}
	return ref, found
}

// RealizedVolatility estimates annualized volatility from daily log returns
// over the series, assuming 252 trading days. Returns a fallback of 40% for
// series too short to estimate.
func RealizedVolatility(bars []domain.Bar) float64 {
	if len(bars) < 3 {
		return synthFallbackVol
	}

	returns := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		if bars[i-1].Close <= 0 || bars[i].Close <= 0 {
			continue
		}
		returns = append(returns, math.Log(bars[i].Close/bars[i-1].Close))
	}
	if len(returns) < 2 {
		return synthFallbackVol
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	vol := math.Sqrt(variance) * math.Sqrt(252)
	if vol <= 0 {
		return synthFallbackVol
	}
	return vol
}

// bsCallPrice is the Black-Scholes price of a European call, used only to
// quote synthetic chains.
func bsCallPrice(spot, strike, tte, rate, vol float64) float64 {
	if spot <= 0 || strike <= 0 || tte <= 0 || vol <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(tte)
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*tte) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT
	price := spot*phi(d1) - strike*math.Exp(-rate*tte)*phi(d2)
	if price < 0 {
		return 0
	}
	return price
}

// phi is the standard normal CDF.
func phi(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// occSymbol builds an OCC-style contract symbol, e.g. TSLA240621C00110000.
func occSymbol(underlying string, expiry time.Time, strike float64) string {
	return fmt.Sprintf("%s%sC%08d", underlying, expiry.Format("060102"), int(math.Round(strike*1000)))
}
