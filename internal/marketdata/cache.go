package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"thetaflow/internal/domain"
	"thetaflow/internal/store"
)

// CachedProvider serves spot history from a local Parquet cache, falling
// back to the wrapped provider and writing fetched bars back. With a nil
// inner provider it runs offline against whatever the cache holds.
// Expirations and chains are always live: chain snapshots age too fast to
// serve stale.
type CachedProvider struct {
	inner Provider // nil for cache-only operation
	bars  store.BarStore
	log   *slog.Logger
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner with the given bar cache. A nil logger
// defaults to slog.Default().
func NewCachedProvider(inner Provider, bars store.BarStore, log *slog.Logger) *CachedProvider {
	if log == nil {
		log = slog.Default()
	}
	return &CachedProvider{
		inner: inner,
		bars:  bars,
		log:   log.With("provider", "cached"),
	}
}

// coverageSlack absorbs weekends and holidays at the window edges: the
// requested bounds are calendar dates, but cached bars only exist on
// trading days.
const coverageSlack = 5 * 24 * time.Hour

// covers reports whether bars span the full [start, end] request, within
// coverageSlack at each edge. Bars are stored in ascending date order.
func covers(bars []domain.Bar, start, end time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	first := bars[0].Date
	last := bars[len(bars)-1].Date
	return !first.After(start.Add(coverageSlack)) && !last.Before(end.Add(-coverageSlack))
}

// SpotHistory returns cached bars when they cover the requested window,
// otherwise fetches from the wrapped provider and stores the result. A
// partial cache hit is not enough: a cached subrange from an earlier,
// narrower run must not masquerade as the full answer.
func (p *CachedProvider) SpotHistory(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	cached, err := p.bars.ReadBars(ctx, symbol, start, end)
	if err != nil {
		p.log.Warn("bar cache read failed", "symbol", symbol, "err", err)
	}
	if covers(cached, start, end) {
		p.log.Debug("serving spot history from cache", "symbol", symbol, "bars", len(cached))
		return cached, nil
	}

	if p.inner == nil {
		if len(cached) > 0 {
			// Offline runs take what the cache has rather than failing.
			p.log.Warn("cache does not cover requested window, serving partial history",
				"symbol", symbol, "bars", len(cached))
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %s not in cache and no live provider", ErrNoData, symbol)
	}

	bars, err := p.inner.SpotHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if err := p.bars.WriteBars(ctx, bars); err != nil {
		// Cache failures degrade to a refetch next run.
		p.log.Warn("bar cache write failed", "symbol", symbol, "err", err)
	}
	return bars, nil
}

// Expirations delegates to the wrapped provider.
func (p *CachedProvider) Expirations(ctx context.Context, symbol string) ([]time.Time, error) {
	if p.inner == nil {
		return nil, fmt.Errorf("%w: no live provider for expirations", ErrNoData)
	}
	return p.inner.Expirations(ctx, symbol)
}

// Chain delegates to the wrapped provider.
func (p *CachedProvider) Chain(ctx context.Context, symbol string, expiry time.Time) ([]domain.OptionContract, error) {
	if p.inner == nil {
		return nil, fmt.Errorf("%w: no live provider for chains", ErrNoData)
	}
	return p.inner.Chain(ctx, symbol, expiry)
}
