package backtest

import "thetaflow/internal/domain"

// Summary reduces a run's trade ledger and equity curve to headline
// statistics. All fields are zero for a run with no trades.
type Summary struct {
	TradeCount           int
	Wins                 int
	WinRate              float64
	TotalPremium         float64
	TotalFees            float64
	TotalOpportunityCost float64

	// NetProfit is premium collected minus fees minus upside forfeited to
	// assignment.
	NetProfit float64

	// StartValue and EndValue bracket the equity curve.
	StartValue float64
	EndValue   float64
}

// Summarize computes the Summary for a set of sealed trades and daily
// snapshots. Empty inputs yield a zero Summary.
func Summarize(trades []domain.Trade, snapshots []domain.PortfolioSnapshot) Summary {
	var s Summary

	for i := range trades {
		t := &trades[i]
		s.TradeCount++
		if t.Win {
			s.Wins++
		}
		s.TotalPremium += t.Premium
		s.TotalFees += t.Fee
		s.TotalOpportunityCost += t.OpportunityCost
		s.NetProfit += t.NetProfit()
	}
	if s.TradeCount > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TradeCount)
	}

	if len(snapshots) > 0 {
		s.StartValue = snapshots[0].Total
		s.EndValue = snapshots[len(snapshots)-1].Total
	}
	return s
}
