package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"thetaflow/internal/backtest"
	"thetaflow/internal/config"
	"thetaflow/internal/marketdata"
	"thetaflow/internal/report"
	"thetaflow/internal/store"
	"thetaflow/internal/strategy"
	"thetaflow/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/thetaflow.yaml", "path to YAML config")
	symbol := flag.String("symbol", "", "underlying symbol (overrides config)")
	startFlag := flag.String("start", "", "window start YYYY-MM-DD (overrides config)")
	endFlag := flag.String("end", "", "window end YYYY-MM-DD (overrides config)")
	offline := flag.Bool("offline", false, "serve spot history from the Parquet cache only, no Alpaca calls")
	outDir := flag.String("out", "", "directory for trades.csv and portfolio.csv (default: skip CSV output)")
	list := flag.Bool("list", false, "list saved runs for the symbol and exit")
	flag.Parse()

	if p := os.Getenv("THETAFLOW_CONFIG"); p != "" && !isFlagSet("config") {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	sym := cfg.Strategy.Symbol
	if *symbol != "" {
		sym = *symbol
	}

	runs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening run store: %v", err)
	}
	defer runs.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *list {
		listRuns(ctx, runs, sym)
		return
	}

	start, end, err := cfg.BacktestWindow()
	if err != nil {
		log.Fatalf("invalid backtest window: %v", err)
	}
	if *startFlag != "" {
		if start, err = time.Parse("2006-01-02", *startFlag); err != nil {
			log.Fatalf("invalid -start %q: %v", *startFlag, err)
		}
	}
	if *endFlag != "" {
		if end, err = time.Parse("2006-01-02", *endFlag); err != nil {
			log.Fatalf("invalid -end %q: %v", *endFlag, err)
		}
	}

	earnings, err := cfg.EarningsDate()
	if err != nil {
		log.Fatalf("invalid earnings date: %v", err)
	}

	// Spot history comes through the Parquet cache, hitting Alpaca only on
	// a miss. In offline mode the cache is all there is.
	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	var live marketdata.Provider
	if !*offline {
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			log.Fatal("no Alpaca credentials; rerun with -offline to use cached bars only")
		}
		live = marketdata.NewAlpacaProvider(
			cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
			cfg.Alpaca.RateLimitPerMin, logger)
	}
	cached := marketdata.NewCachedProvider(live, pstore, logger)

	bars, err := cached.SpotHistory(ctx, sym, start, end)
	if err != nil {
		log.Fatalf("loading spot history for %s: %v", sym, err)
	}

	// Historical chains are not retrievable, so the replay prices synthetic
	// chains off the real bars.
	provider := marketdata.NewSyntheticProvider(sym, bars, cfg.Backtest.ImpliedVol, cfg.Strategy.RiskFreeRate)

	selector := strategy.NewSelector(cfg.StrategyParams(), logger)
	simCfg := backtest.Config{
		Symbol:           sym,
		Start:            start,
		End:              end,
		InitialCapital:   cfg.Backtest.InitialCapital,
		InitialShares:    cfg.Backtest.InitialShares,
		DecisionLeadDays: cfg.Backtest.DecisionLeadDays,
		EarningsDate:     earnings,
	}

	result, err := backtest.NewSimulator(provider, selector, simCfg, logger).Run(ctx)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	if err := report.WriteSummary(os.Stdout, sym, result.Summary); err != nil {
		log.Fatalf("writing summary: %v", err)
	}
	if len(result.Trades) == 0 {
		fmt.Println()
		if err := report.WriteDiagnostics(os.Stdout, simCfg, result); err != nil {
			log.Fatalf("writing diagnostics: %v", err)
		}
	} else {
		fmt.Println()
		if err := report.WriteTrades(os.Stdout, result.Trades); err != nil {
			log.Fatalf("writing trades: %v", err)
		}
	}

	id, err := runs.SaveRun(ctx, &store.BacktestRun{
		Symbol:     sym,
		Start:      start,
		End:        end,
		TradeCount: result.Summary.TradeCount,
		WinRate:    result.Summary.WinRate,
		NetProfit:  result.Summary.NetProfit,
		Trades:     result.Trades,
		Snapshots:  result.Snapshots,
	})
	if err != nil {
		log.Fatalf("saving run: %v", err)
	}
	logger.Info("run saved", "id", id)

	if *outDir != "" {
		if err := writeCSVs(*outDir, result); err != nil {
			log.Fatalf("writing CSV output: %v", err)
		}
		logger.Info("CSV output written", "dir", *outDir)
	}
}

func listRuns(ctx context.Context, runs *store.SQLiteStore, symbol string) {
	saved, err := runs.ListRuns(ctx, symbol)
	if err != nil {
		log.Fatalf("listing runs: %v", err)
	}
	if len(saved) == 0 {
		fmt.Printf("No saved runs for %s.\n", symbol)
		return
	}
	for _, r := range saved {
		fmt.Printf("#%d  %s  %s..%s  trades=%d  winRate=%s  net=%s\n",
			r.ID, r.Symbol,
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"),
			r.TradeCount, report.FormatPercent(r.WinRate), report.FormatMoney(r.NetProfit))
	}
}

func writeCSVs(dir string, result *backtest.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	trades, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	defer trades.Close()
	if err := report.WriteTradesCSV(trades, result.Trades); err != nil {
		return err
	}

	portfolio, err := os.Create(filepath.Join(dir, "portfolio.csv"))
	if err != nil {
		return err
	}
	defer portfolio.Close()
	return report.WritePortfolioCSV(portfolio, result.Snapshots)
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
