package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"thetaflow/internal/domain"
	"thetaflow/internal/util"
)

const (
	alpacaRetryAttempts = 3
	alpacaRetryDelay    = 500 * time.Millisecond
	alpacaChainLimit    = 10000
)

// AlpacaProvider serves live market data from the Alpaca data API: daily
// stock bars for spot history and option chain snapshots for candidates.
// All outbound calls go through a shared rate limiter and retry with
// backoff.
type AlpacaProvider struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

var _ Provider = (*AlpacaProvider)(nil)

// NewAlpacaProvider creates a provider using the given Alpaca credentials.
// dataURL overrides the default data endpoint when non-empty. A nil logger
// defaults to slog.Default().
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, ratePerMin int, log *slog.Logger) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if log == nil {
		log = slog.Default()
	}

	return &AlpacaProvider{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMin),
		log:     log.With("provider", "alpaca"),
	}
}

// SpotHistory fetches daily bars for [start, end].
func (p *AlpacaProvider) SpotHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bars []marketdata.Bar
	err := util.Retry(ctx, alpacaRetryAttempts, alpacaRetryDelay, func() error {
		var err error
		bars, err = p.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s bars in [%s, %s]", ErrNoData, symbol,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		ts := b.Timestamp.UTC()
		out = append(out, domain.Bar{
			Symbol: symbol,
			Date:   time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return out, nil
}

// Expirations lists the distinct expiry dates present in the symbol's
// current call chain, ascending.
func (p *AlpacaProvider) Expirations(ctx context.Context, symbol string) ([]time.Time, error) {
	snapshots, err := p.optionChain(ctx, symbol, marketdata.GetOptionChainRequest{
		Type:       marketdata.Call,
		TotalLimit: alpacaChainLimit,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]struct{})
	for contractSymbol := range snapshots {
		expiry, _, call, err := ParseOCCSymbol(contractSymbol)
		if err != nil || !call {
			continue
		}
		seen[expiry] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: no option expirations for %s", ErrNoData, symbol)
	}

	expirations := make([]time.Time, 0, len(seen))
	for e := range seen {
		expirations = append(expirations, e)
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })
	return expirations, nil
}

// Chain fetches the call snapshots for one expiry and converts them into
// immutable contracts carrying the current spot price.
func (p *AlpacaProvider) Chain(ctx context.Context, symbol string, expiry time.Time) ([]domain.OptionContract, error) {
	spot, err := p.latestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snapshots, err := p.optionChain(ctx, symbol, marketdata.GetOptionChainRequest{
		Type:           marketdata.Call,
		ExpirationDate: civil.DateOf(expiry),
		TotalLimit:     alpacaChainLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: no %s calls expiring %s", ErrNoData, symbol, expiry.Format("2006-01-02"))
	}

	// Alpaca's snapshot endpoint does not publish open interest; the day's
	// contract volume stands in as the liquidity figure.
	volumes := p.dayVolumes(ctx, sortedKeys(snapshots))

	var chain []domain.OptionContract
	for contractSymbol, snap := range snapshots {
		exp, strike, call, err := ParseOCCSymbol(contractSymbol)
		if err != nil {
			p.log.Debug("skipping unparseable contract symbol", "symbol", contractSymbol, "err", err)
			continue
		}
		if !call {
			continue
		}

		var last float64
		if snap.LatestTrade != nil {
			last = snap.LatestTrade.Price
		}

		chain = append(chain, domain.OptionContract{
			Symbol:            contractSymbol,
			Strike:            strike,
			Expiry:            exp,
			ImpliedVolatility: snap.ImpliedVolatility,
			LastPrice:         last,
			OpenInterest:      volumes[contractSymbol],
			UnderlyingPrice:   spot,
		})
	}

	sort.Slice(chain, func(i, j int) bool { return chain[i].Strike < chain[j].Strike })
	return chain, nil
}

// optionChain is the rate-limited, retried GetOptionChain call shared by
// Expirations and Chain.
func (p *AlpacaProvider) optionChain(ctx context.Context, symbol string, req marketdata.GetOptionChainRequest) (map[string]marketdata.OptionSnapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var snapshots map[string]marketdata.OptionSnapshot
	err := util.Retry(ctx, alpacaRetryAttempts, alpacaRetryDelay, func() error {
		var err error
		snapshots, err = p.client.GetOptionChain(symbol, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetOptionChain %s: %w", symbol, err)
	}
	return snapshots, nil
}

// latestPrice returns the most recent trade price for the underlying.
func (p *AlpacaProvider) latestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var trade *marketdata.Trade
	err := util.Retry(ctx, alpacaRetryAttempts, alpacaRetryDelay, func() error {
		var err error
		trade, err = p.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("GetLatestTrade %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return 0, fmt.Errorf("%w: no spot price for %s", ErrNoData, symbol)
	}
	return trade.Price, nil
}

// dayVolumes fetches the latest daily bar volume per contract. Liquidity
// data is best-effort: on failure every contract reports zero volume and
// the liquidity filter will reject the chain.
func (p *AlpacaProvider) dayVolumes(ctx context.Context, symbols []string) map[string]int64 {
	volumes := make(map[string]int64, len(symbols))
	if len(symbols) == 0 {
		return volumes
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return volumes
	}

	bars, err := p.client.GetMultiOptionBars(symbols, marketdata.GetOptionBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     time.Now().AddDate(0, 0, -7),
	})
	if err != nil {
		p.log.Warn("option bars unavailable, chain liquidity defaults to zero", "err", err)
		return volumes
	}

	for symbol, series := range bars {
		if len(series) > 0 {
			volumes[symbol] = int64(series[len(series)-1].Volume)
		}
	}
	return volumes
}

func sortedKeys(m map[string]marketdata.OptionSnapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
