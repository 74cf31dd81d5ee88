package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"thetaflow/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ ChainStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and ChainStore using Parquet files on
// disk, one file per symbol-year (bars) or symbol-day (chain snapshots).
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// ChainRecord is the Parquet schema for option-chain snapshot rows.
type ChainRecord struct {
	Underlying      string  `parquet:"underlying"`
	Contract        string  `parquet:"contract"`
	AsOf            int64   `parquet:"as_of,timestamp(millisecond)"` // Unix ms
	Expiry          int64   `parquet:"expiry,timestamp(millisecond)"`
	Strike          float64 `parquet:"strike"`
	ImpliedVol      float64 `parquet:"implied_vol"`
	LastPrice       float64 `parquet:"last_price"`
	OpenInterest    int64   `parquet:"open_interest"`
	UnderlyingPrice float64 `parquet:"underlying_price"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data organized by symbol and year. Each symbol+year
// combination produces a separate file at:
//
//	<DataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, year: b.Date.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:    b.Symbol,
			Timestamp: b.Date.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, k.year)

		// Read existing records to merge.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads cached bar data for the given symbol and time range.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(symbol, year))
		if err != nil {
			// No file for this year.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol: r.Symbol,
				Date:   ts,
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// ListSymbols lists all symbols with cached bar data.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.DataDir, "bars")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// ChainStore implementation
// ---------------------------------------------------------------------------

// WriteChain writes one chain snapshot observed at asOf. Layout:
//
//	<DataDir>/chains/<SYMBOL>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteChain(_ context.Context, underlying string, asOf time.Time, chain []domain.OptionContract) error {
	if len(chain) == 0 {
		return nil
	}

	records := make([]ChainRecord, 0, len(chain))
	for _, c := range chain {
		records = append(records, ChainRecord{
			Underlying:      underlying,
			Contract:        c.Symbol,
			AsOf:            asOf.UnixMilli(),
			Expiry:          c.Expiry.UnixMilli(),
			Strike:          c.Strike,
			ImpliedVol:      c.ImpliedVolatility,
			LastPrice:       c.LastPrice,
			OpenInterest:    c.OpenInterest,
			UnderlyingPrice: c.UnderlyingPrice,
		})
	}

	path := s.chainPath(underlying, asOf)
	existing, _ := readParquetFile[ChainRecord](path)
	merged := mergeChainRecords(existing, records)

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing chain for %s/%s: %w", underlying, asOf.Format("2006-01-02"), err)
	}
	return nil
}

// ReadChain reads the cached chain snapshot observed at asOf.
func (s *ParquetStore) ReadChain(_ context.Context, underlying string, asOf time.Time) ([]domain.OptionContract, error) {
	records, err := readParquetFile[ChainRecord](s.chainPath(underlying, asOf))
	if err != nil {
		return nil, nil
	}

	chain := make([]domain.OptionContract, 0, len(records))
	for _, r := range records {
		chain = append(chain, domain.OptionContract{
			Symbol:            r.Contract,
			Strike:            r.Strike,
			Expiry:            time.UnixMilli(r.Expiry).UTC(),
			ImpliedVolatility: r.ImpliedVol,
			LastPrice:         r.LastPrice,
			OpenInterest:      r.OpenInterest,
			UnderlyingPrice:   r.UnderlyingPrice,
		})
	}
	sort.Slice(chain, func(i, j int) bool {
		if !chain[i].Expiry.Equal(chain[j].Expiry) {
			return chain[i].Expiry.Before(chain[j].Expiry)
		}
		return chain[i].Strike < chain[j].Strike
	})
	return chain, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "bars", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// chainPath returns the filesystem path for a chain snapshot Parquet file.
// Layout: <dataDir>/chains/<SYMBOL>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) chainPath(symbol string, asOf time.Time) string {
	date := asOf.Format("2006-01-02")
	return filepath.Join(s.DataDir, "chains", strings.ToUpper(symbol), date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp),
// preferring new records over existing ones. Results are sorted by
// timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeChainRecords deduplicates chain rows by contract symbol, preferring
// new records. Results are sorted by expiry then strike.
func mergeChainRecords(existing, incoming []ChainRecord) []ChainRecord {
	seen := make(map[string]ChainRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Contract] = r
	}
	for _, r := range incoming {
		seen[r.Contract] = r
	}

	merged := make([]ChainRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Expiry != merged[j].Expiry {
			return merged[i].Expiry < merged[j].Expiry
		}
		return merged[i].Strike < merged[j].Strike
	})
	return merged
}
