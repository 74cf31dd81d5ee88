package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"thetaflow/internal/domain"
)

func TestParquetStorePaths(t *testing.T) {
	ps := NewParquetStore("/data")

	if got, want := ps.barPath("tsla", 2024), filepath.Join("/data", "bars", "TSLA", "2024.parquet"); got != want {
		t.Errorf("barPath = %s, want %s", got, want)
	}

	asOf := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	if got, want := ps.chainPath("TSLA", asOf), filepath.Join("/data", "chains", "TSLA", "2024-06-14.parquet"); got != want {
		t.Errorf("chainPath = %s, want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol: "TSLA",
			Date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:   248.0, High: 251.2, Low: 244.5, Close: 248.4,
			Volume: 104_000_000,
		},
		{
			Symbol: "TSLA",
			Date:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:   244.9, High: 245.7, Low: 236.3, Close: 238.4,
			Volume: 121_000_000,
		},
	}

	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "TSLA", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 248.4 {
		t.Errorf("first bar Close = %v, want 248.4", got[0].Close)
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Error("bars not ascending by date")
	}

	// A window that misses the data comes back empty, not as an error.
	miss, err := ps.ReadBars(ctx, "TSLA",
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars (miss): %v", err)
	}
	if len(miss) != 0 {
		t.Errorf("ReadBars (miss) returned %d bars, want 0", len(miss))
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{{
		Symbol: "TSLA",
		Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Open:   200.0, High: 205.0, Low: 199.0, Close: 203.0,
		Volume: 90_000_000,
	}}
	if err := ps.WriteBars(ctx, first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same symbol+year merges rather than overwrites; the duplicate date
	// takes the newer row.
	second := []domain.Bar{
		{
			Symbol: "TSLA",
			Date:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:   200.0, High: 205.0, Low: 199.0, Close: 204.5,
			Volume: 91_000_000,
		},
		{
			Symbol: "TSLA",
			Date:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Open:   203.0, High: 210.0, Low: 202.0, Close: 208.0,
			Volume: 95_000_000,
		},
	}
	if err := ps.WriteBars(ctx, second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "TSLA",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 204.5 {
		t.Errorf("merged duplicate Close = %v, want newer 204.5", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "TSLA", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 248.4, Volume: 1},
		{Symbol: "AAPL", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 185.5, Volume: 1},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "TSLA" {
		t.Errorf("ListSymbols = %v, want [AAPL TSLA]", symbols)
	}

	// Empty store lists nothing.
	empty := NewParquetStore(t.TempDir())
	none, err := empty.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols (empty): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListSymbols (empty) = %v, want none", none)
	}
}

func TestParquetStoreChainRoundTrip(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()
	asOf := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	chain := []domain.OptionContract{
		{
			Symbol: "TSLA240621C00115000", Strike: 115, Expiry: expiry,
			ImpliedVolatility: 0.42, LastPrice: 0.55, OpenInterest: 900,
			UnderlyingPrice: 100,
		},
		{
			Symbol: "TSLA240621C00110000", Strike: 110, Expiry: expiry,
			ImpliedVolatility: 0.40, LastPrice: 0.85, OpenInterest: 2000,
			UnderlyingPrice: 100,
		},
	}
	if err := ps.WriteChain(ctx, "TSLA", asOf, chain); err != nil {
		t.Fatalf("WriteChain: %v", err)
	}

	got, err := ps.ReadChain(ctx, "TSLA", asOf)
	if err != nil {
		t.Fatalf("ReadChain: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadChain returned %d contracts, want 2", len(got))
	}
	// Sorted by expiry then strike.
	if got[0].Strike != 110 || got[1].Strike != 115 {
		t.Errorf("chain order = [%v %v], want [110 115]", got[0].Strike, got[1].Strike)
	}
	if !got[0].Expiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", got[0].Expiry, expiry)
	}
	if got[0].OpenInterest != 2000 {
		t.Errorf("open interest = %d, want 2000", got[0].OpenInterest)
	}

	// Missing snapshot reads as empty.
	none, err := ps.ReadChain(ctx, "TSLA", asOf.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ReadChain (miss): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ReadChain (miss) = %d contracts, want 0", len(none))
	}
}

func sampleRun() *BacktestRun {
	entry := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	return &BacktestRun{
		Symbol:     "TSLA",
		Start:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
		TradeCount: 1,
		WinRate:    1.0,
		NetProfit:  168.70,
		Trades: []domain.Trade{{
			Symbol: "TSLA", EntryDate: entry, Expiry: expiry,
			Strike: 110, Contracts: 2, Premium: 170, Fee: 1.30,
			Resolution: domain.ResolutionExpiredWorthless,
			ExitPrice:  104.5, Win: true,
		}},
		Snapshots: []domain.PortfolioSnapshot{
			{
				Date:       time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
				StockPrice: 104.5, StockShares: 200, StockValue: 20900,
				Cash: 10168.70, Total: 31068.70,
			},
		},
	}
}

func TestSQLiteStoreSaveAndGetRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "thetaflow.db")
	st, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	id, err := st.SaveRun(ctx, sampleRun())
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id <= 0 {
		t.Fatalf("SaveRun returned id %d, want > 0", id)
	}

	got, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Symbol != "TSLA" {
		t.Errorf("Symbol = %q, want TSLA", got.Symbol)
	}
	if got.TradeCount != 1 || got.WinRate != 1.0 {
		t.Errorf("summary = %d trades winRate %v, want 1 and 1.0", got.TradeCount, got.WinRate)
	}
	if len(got.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(got.Trades))
	}
	trade := got.Trades[0]
	if trade.Strike != 110 || trade.Contracts != 2 || !trade.Win {
		t.Errorf("trade = %+v", trade)
	}
	if trade.Resolution != domain.ResolutionExpiredWorthless {
		t.Errorf("resolution = %q, want expired_worthless", trade.Resolution)
	}
	if !trade.EntryDate.Equal(time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("entry date = %v", trade.EntryDate)
	}
	if len(got.Snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(got.Snapshots))
	}
	snap := got.Snapshots[0]
	if snap.Total != 31068.70 || snap.StockShares != 200 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSQLiteStoreGetRunMissing(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "thetaflow.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	if _, err := st.GetRun(context.Background(), 999); err == nil {
		t.Error("GetRun(999) = nil error, want not-found failure")
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "thetaflow.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	first := sampleRun()
	first.CreatedAt = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	if _, err := st.SaveRun(ctx, first); err != nil {
		t.Fatalf("SaveRun (first): %v", err)
	}

	second := sampleRun()
	second.CreatedAt = time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	if _, err := st.SaveRun(ctx, second); err != nil {
		t.Fatalf("SaveRun (second): %v", err)
	}

	other := sampleRun()
	other.Symbol = "AAPL"
	if _, err := st.SaveRun(ctx, other); err != nil {
		t.Fatalf("SaveRun (other): %v", err)
	}

	runs, err := st.ListRuns(ctx, "TSLA")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(TSLA) = %d runs, want 2", len(runs))
	}
	// Newest first; summaries only.
	if runs[0].CreatedAt.Before(runs[1].CreatedAt) {
		t.Error("ListRuns not newest-first")
	}
	if len(runs[0].Trades) != 0 || len(runs[0].Snapshots) != 0 {
		t.Error("ListRuns should not load ledgers or curves")
	}

	all, err := st.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns (all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(\"\") = %d runs, want 3", len(all))
	}
}
