package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	expiryFlag := flag.String("expiry", "", "expiration date YYYY-MM-DD (default: next Friday)")
	noCache := flag.Bool("no-cache", false, "skip writing the fetched chain snapshot to the Parquet cache")
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

	now := time.Now().UTC()
	expiry := util.NextFriday(now)
	if *expiryFlag != "" {
		expiry, err = time.Parse("2006-01-02", *expiryFlag)
		if err != nil {
			log.Fatalf("invalid -expiry %q: %v", *expiryFlag, err)
		}
	}

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("scanning needs Alpaca credentials: set alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}

	earnings, err := cfg.EarningsDate()
	if err != nil {
		log.Fatalf("invalid earnings date: %v", err)
	}

	provider := marketdata.NewAlpacaProvider(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		cfg.Alpaca.RateLimitPerMin, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("scanning chain", "symbol", sym, "expiry", expiry.Format("2006-01-02"))

	chain, err := provider.Chain(ctx, sym, expiry)
	if err != nil {
		log.Fatalf("fetching chain: %v", err)
	}

	// Snapshot the raw chain into the Parquet cache before filtering, so a
	// later run can replay today's market.
	if !*noCache {
		pstore := store.NewParquetStore(cfg.Storage.DataDir)
		if err := pstore.WriteChain(ctx, sym, now, chain); err != nil {
			logger.Warn("chain snapshot not cached", "err", err)
		}
	}

	selector := strategy.NewSelector(cfg.StrategyParams(), logger)
	candidates := selector.Select(chain, now, earnings)

	if err := report.WriteCandidates(os.Stdout, sym, candidates); err != nil {
		log.Fatalf("writing candidates: %v", err)
	}
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
