package marketdata

import (
	"testing"
	"time"
)

func TestParseOCCSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		expiry time.Time
		strike float64
		call   bool
	}{
		{"TSLA240621C00110000", time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), 110, true},
		{"TSLA240621P00095500", time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC), 95.5, false},
		{"AAPL251219C01250000", time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC), 1250, true},
		{"F240105C00012500", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 12.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			expiry, strike, call, err := ParseOCCSymbol(tt.symbol)
			if err != nil {
				t.Fatalf("ParseOCCSymbol(%q) error = %v", tt.symbol, err)
			}
			if !expiry.Equal(tt.expiry) {
				t.Errorf("expiry = %v, want %v", expiry, tt.expiry)
			}
			if strike != tt.strike {
				t.Errorf("strike = %v, want %v", strike, tt.strike)
			}
			if call != tt.call {
				t.Errorf("call = %v, want %v", call, tt.call)
			}
		})
	}
}

func TestParseOCCSymbolErrors(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
	}{
		{"too short", "C00110000"},
		{"bad option type", "TSLA240621X00110000"},
		{"bad expiry", "TSLA24ab21C00110000"},
		{"bad strike", "TSLA240621C0011000x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParseOCCSymbol(tt.symbol); err == nil {
				t.Errorf("ParseOCCSymbol(%q) = nil error, want failure", tt.symbol)
			}
		})
	}
}
