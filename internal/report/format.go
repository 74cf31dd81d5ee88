// Package report renders scan and backtest output for the command-line
// tools: aligned text tables for the terminal and CSV files for anything
// downstream.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"thetaflow/internal/backtest"
	"thetaflow/internal/domain"
	"thetaflow/internal/strategy"
)

// FormatMoney formats a dollar amount as $X.XX, negative values in parens.
func FormatMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("($%.2f)", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

// FormatPercent formats a 0..1 fraction as "X.X%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// WriteCandidates renders the ranked candidate table produced by a scan.
func WriteCandidates(w io.Writer, symbol string, candidates []strategy.Candidate) error {
	if len(candidates) == 0 {
		_, err := fmt.Fprintf(w, "No qualifying contracts for %s.\n", symbol)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RANK\tCONTRACT\tSTRIKE\tEXPIRY\tIV\tOI\tPROB\tNET PREMIUM\n")
	for i, c := range candidates {
		sym := c.Symbol
		if sym == "" {
			sym = symbol
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%.2f\t%d\t%s\t%s\n",
			i+1, sym, c.Strike, c.Expiry.Format("2006-01-02"),
			c.ImpliedVolatility, c.OpenInterest,
			FormatPercent(c.ProfitProbability), FormatMoney(c.NetPremium))
	}
	return tw.Flush()
}

// WriteSummary renders the backtest headline statistics.
func WriteSummary(w io.Writer, symbol string, s backtest.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Backtest summary for %s\n", symbol)
	fmt.Fprintf(tw, "  Trades:\t%d\n", s.TradeCount)
	fmt.Fprintf(tw, "  Wins:\t%d\n", s.Wins)
	fmt.Fprintf(tw, "  Win rate:\t%s\n", FormatPercent(s.WinRate))
	fmt.Fprintf(tw, "  Premium collected:\t%s\n", FormatMoney(s.TotalPremium))
	fmt.Fprintf(tw, "  Fees paid:\t%s\n", FormatMoney(s.TotalFees))
	fmt.Fprintf(tw, "  Opportunity cost:\t%s\n", FormatMoney(s.TotalOpportunityCost))
	fmt.Fprintf(tw, "  Net profit:\t%s\n", FormatMoney(s.NetProfit))
	fmt.Fprintf(tw, "  Portfolio:\t%s -> %s\n", FormatMoney(s.StartValue), FormatMoney(s.EndValue))
	return tw.Flush()
}

// WriteTrades renders the sealed trade ledger.
func WriteTrades(w io.Writer, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ENTRY\tEXPIRY\tSTRIKE\tCONTRACTS\tPREMIUM\tRESOLUTION\tEXIT\tNET\n")
	for i := range trades {
		t := &trades[i]
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%s\t%s\t%.2f\t%s\n",
			t.EntryDate.Format("2006-01-02"), t.Expiry.Format("2006-01-02"),
			t.Strike, t.Contracts, FormatMoney(t.Premium),
			t.Resolution, t.ExitPrice, FormatMoney(t.NetProfit()))
	}
	return tw.Flush()
}

// WriteDiagnostics explains a run that produced no trades by describing
// what the simulator actually saw, so a surprising zero is debuggable.
func WriteDiagnostics(w io.Writer, cfg backtest.Config, result *backtest.Result) error {
	fmt.Fprintf(w, "No trades were opened. Run context:\n")
	fmt.Fprintf(w, "  Window:          %s .. %s\n",
		cfg.Start.Format("2006-01-02"), cfg.End.Format("2006-01-02"))
	fmt.Fprintf(w, "  Initial capital: %s\n", FormatMoney(cfg.InitialCapital))
	fmt.Fprintf(w, "  Initial shares:  %d\n", cfg.InitialShares)

	if len(result.Snapshots) == 0 {
		_, err := fmt.Fprintf(w, "  No price history was found for the window.\n")
		return err
	}

	lo, hi := result.Snapshots[0].StockPrice, result.Snapshots[0].StockPrice
	for _, s := range result.Snapshots[1:] {
		if s.StockPrice < lo {
			lo = s.StockPrice
		}
		if s.StockPrice > hi {
			hi = s.StockPrice
		}
	}
	fmt.Fprintf(w, "  Trading days:    %d\n", len(result.Snapshots))
	fmt.Fprintf(w, "  Price range:     %.2f .. %.2f\n", lo, hi)
	if cfg.InitialShares < 100 {
		fmt.Fprintf(w, "  Fewer than 100 shares held; no contract can be covered.\n")
	}
	return nil
}
