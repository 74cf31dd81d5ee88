package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"thetaflow/internal/domain"
)

// WriteTradesCSV writes the sealed trade ledger as CSV with a header row.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	header := []string{
		"symbol", "entry_date", "expiry", "strike", "contracts",
		"premium", "fee", "resolution", "exit_price", "win",
		"opportunity_cost", "net_profit",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing trades header: %w", err)
	}
	for i := range trades {
		t := &trades[i]
		row := []string{
			t.Symbol,
			t.EntryDate.Format("2006-01-02"),
			t.Expiry.Format("2006-01-02"),
			formatFloat(t.Strike),
			strconv.Itoa(t.Contracts),
			formatFloat(t.Premium),
			formatFloat(t.Fee),
			string(t.Resolution),
			formatFloat(t.ExitPrice),
			strconv.FormatBool(t.Win),
			formatFloat(t.OpportunityCost),
			formatFloat(t.NetProfit()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing trade row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePortfolioCSV writes the daily equity curve as CSV with a header row.
func WritePortfolioCSV(w io.Writer, snapshots []domain.PortfolioSnapshot) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "stock_price", "stock_shares", "stock_value", "cash", "total"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing portfolio header: %w", err)
	}
	for _, s := range snapshots {
		row := []string{
			s.Date.Format("2006-01-02"),
			formatFloat(s.StockPrice),
			strconv.Itoa(s.StockShares),
			formatFloat(s.StockValue),
			formatFloat(s.Cash),
			formatFloat(s.Total),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing portfolio row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
