package marketdata

import (
	"fmt"
	"strconv"
	"time"
)

// ParseOCCSymbol decodes an OCC option contract symbol such as
// "TSLA240621C00110000" into its expiry, strike, and call/put flag. The
// trailing 15 characters are fixed-width: YYMMDD, C or P, then the strike
// in thousandths.
func ParseOCCSymbol(symbol string) (expiry time.Time, strike float64, call bool, err error) {
	if len(symbol) < 16 {
		return time.Time{}, 0, false, fmt.Errorf("occ symbol %q too short", symbol)
	}
	tail := symbol[len(symbol)-15:]

	expiry, err = time.Parse("060102", tail[:6])
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("occ symbol %q: bad expiry: %w", symbol, err)
	}

	switch tail[6] {
	case 'C':
		call = true
	case 'P':
		call = false
	default:
		return time.Time{}, 0, false, fmt.Errorf("occ symbol %q: bad option type %q", symbol, tail[6])
	}

	thousandths, err := strconv.Atoi(tail[7:])
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("occ symbol %q: bad strike: %w", symbol, err)
	}

	return expiry, float64(thousandths) / 1000, call, nil
}
