package strategy

import (
	"fmt"
	"time"
)

// Params configures the covered-call candidate selection filter.
type Params struct {
	// MaxContracts caps how many ranked candidates Select returns, and how
	// many contracts the backtest sells per position.
	MaxContracts int

	// TargetProbability is the minimum model probability of the call
	// expiring worthless, in (0, 1].
	TargetProbability float64

	// LiquidityThreshold is the minimum open interest; contracts must
	// strictly exceed it.
	LiquidityThreshold int64

	// MoneynessBuffer scales the out-of-the-money test: a candidate's
	// strike must exceed spot * MoneynessBuffer (1.05 = 5% above spot).
	MoneynessBuffer float64

	// MinTimeToExpiry is the minimum remaining life in years; contracts
	// closer to expiry are numerically fragile and excluded.
	MinTimeToExpiry float64

	// VolatilityCap excludes contracts with implausible implied volatility.
	VolatilityCap float64

	// EarningsBlackout excludes contracts expiring within this window on
	// either side of a known earnings date.
	EarningsBlackout time.Duration

	// FeePerContract is the fixed commission per contract.
	FeePerContract float64

	// RiskFreeRate is the annualized risk-free rate fed to the risk model.
	RiskFreeRate float64
}

// DefaultParams returns the standard conservative covered-call parameters.
func DefaultParams() Params {
	return Params{
		MaxContracts:       2,
		TargetProbability:  0.90,
		LiquidityThreshold: 1000,
		MoneynessBuffer:    1.05,
		MinTimeToExpiry:    1.0 / 365,
		VolatilityCap:      5.0,
		EarningsBlackout:   5 * 24 * time.Hour,
		FeePerContract:     0.65,
		RiskFreeRate:       0.05,
	}
}

// Validate checks that the parameters are internally consistent.
func (p Params) Validate() error {
	if p.MaxContracts < 1 {
		return fmt.Errorf("strategy: max contracts %d, must be >= 1", p.MaxContracts)
	}
	if p.TargetProbability <= 0 || p.TargetProbability > 1 {
		return fmt.Errorf("strategy: target probability %v, must be in (0, 1]", p.TargetProbability)
	}
	if p.LiquidityThreshold < 0 {
		return fmt.Errorf("strategy: liquidity threshold %d, must be >= 0", p.LiquidityThreshold)
	}
	if p.MoneynessBuffer < 1 {
		return fmt.Errorf("strategy: moneyness buffer %v, must be >= 1", p.MoneynessBuffer)
	}
	if p.MinTimeToExpiry <= 0 {
		return fmt.Errorf("strategy: min time to expiry %v, must be positive", p.MinTimeToExpiry)
	}
	if p.VolatilityCap <= 0 {
		return fmt.Errorf("strategy: volatility cap %v, must be positive", p.VolatilityCap)
	}
	if p.EarningsBlackout < 0 {
		return fmt.Errorf("strategy: earnings blackout %v, must be >= 0", p.EarningsBlackout)
	}
	if p.FeePerContract < 0 {
		return fmt.Errorf("strategy: fee per contract %v, must be >= 0", p.FeePerContract)
	}
	return nil
}
