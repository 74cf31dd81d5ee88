// Package risk implements the Black-Scholes call delta model used to score
// covered-call candidates: delta approximates the probability the call
// finishes in-the-money, so 1-delta is the seller's probability of keeping
// the full premium.
package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput reports model inputs (or a computed result) outside the
// valid numeric domain. The formula is unstable near zero time or zero
// volatility, so these are rejected outright rather than coerced.
var ErrInvalidInput = errors.New("risk: invalid input")

const (
	// maxTimeToExpiry bounds time-to-expiry at 10 years.
	maxTimeToExpiry = 10.0
	// maxImpliedVol bounds implied volatility at 1000%.
	maxImpliedVol = 10.0
	// precision rounds results to 4 decimal digits for reproducibility.
	precision = 1e4
)

// EstimateDelta computes the Black-Scholes delta of a European call:
// Phi(d1) with d1 = (ln(S/K) + (r + sigma^2/2)T) / (sigma*sqrt(T)).
// The result is in [0,1], rounded to 4 decimal digits.
//
// price, strike, timeToExpiry (years) and impliedVol must be positive;
// timeToExpiry and impliedVol are additionally capped at sanity bounds.
// riskFreeRate may be negative but must be finite.
func EstimateDelta(price, strike, timeToExpiry, riskFreeRate, impliedVol float64) (float64, error) {
	// The negated comparisons also reject NaN.
	switch {
	case !(price > 0) || math.IsInf(price, 0):
		return 0, fmt.Errorf("%w: price %v, must be positive and finite", ErrInvalidInput, price)
	case !(strike > 0) || math.IsInf(strike, 0):
		return 0, fmt.Errorf("%w: strike %v, must be positive and finite", ErrInvalidInput, strike)
	case !(timeToExpiry > 0):
		return 0, fmt.Errorf("%w: time to expiry %v, must be positive", ErrInvalidInput, timeToExpiry)
	case timeToExpiry > maxTimeToExpiry:
		return 0, fmt.Errorf("%w: time to expiry %v exceeds %v years", ErrInvalidInput, timeToExpiry, maxTimeToExpiry)
	case !(impliedVol > 0):
		return 0, fmt.Errorf("%w: implied volatility %v, must be positive", ErrInvalidInput, impliedVol)
	case impliedVol > maxImpliedVol:
		return 0, fmt.Errorf("%w: implied volatility %v exceeds %v", ErrInvalidInput, impliedVol, maxImpliedVol)
	case math.IsNaN(riskFreeRate) || math.IsInf(riskFreeRate, 0):
		return 0, fmt.Errorf("%w: risk-free rate %v, must be finite", ErrInvalidInput, riskFreeRate)
	}

	d1 := (math.Log(price/strike) + (riskFreeRate+0.5*impliedVol*impliedVol)*timeToExpiry) /
		(impliedVol * math.Sqrt(timeToExpiry))
	if math.IsNaN(d1) || math.IsInf(d1, 0) {
		return 0, fmt.Errorf("%w: d1 is not finite (price=%v strike=%v t=%v vol=%v)",
			ErrInvalidInput, price, strike, timeToExpiry, impliedVol)
	}

	delta := normCDF(d1)
	if math.IsNaN(delta) || delta < 0 || delta > 1 {
		return 0, fmt.Errorf("%w: delta %v outside [0,1]", ErrInvalidInput, delta)
	}

	return math.Round(delta*precision) / precision, nil
}

// EstimateProfitProbability returns 1-delta: the probability the call
// expires out-of-the-money, i.e. the covered-call seller keeps the premium.
// Validation is delegated to EstimateDelta.
func EstimateProfitProbability(price, strike, timeToExpiry, riskFreeRate, impliedVol float64) (float64, error) {
	delta, err := EstimateDelta(price, strike, timeToExpiry, riskFreeRate, impliedVol)
	if err != nil {
		return 0, err
	}
	return math.Round((1-delta)*precision) / precision, nil
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
