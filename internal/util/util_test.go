package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRateLimiterFirstCallImmediate(t *testing.T) {
	rl := NewRateLimiter(60)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait should not block: %v", err)
	}
}

func TestNextFriday(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "mid-week",
			from: time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC), // Tuesday
			want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "friday advances a full week",
			from: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday",
			from: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 22, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextFriday(tt.from); !got.Equal(tt.want) {
				t.Errorf("NextFriday(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestFridaysBetween(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) // a Friday
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	fridays := FridaysBetween(start, end)
	if len(fridays) != 5 {
		t.Fatalf("got %d Fridays in March 2024, want 5", len(fridays))
	}
	for _, f := range fridays {
		if f.Weekday() != time.Friday {
			t.Errorf("%v is not a Friday", f)
		}
	}
	if !fridays[0].Equal(start) {
		t.Errorf("first Friday = %v, want %v", fridays[0], start)
	}
}

func TestThirdFriday(t *testing.T) {
	got := ThirdFriday(2024, time.June)
	want := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ThirdFriday(2024, June) = %v, want %v", got, want)
	}
}

func TestYearsBetween(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.AddDate(0, 0, 365)
	if got := YearsBetween(a, b); got != 1.0 {
		t.Errorf("YearsBetween one 365-day year = %v, want 1.0", got)
	}
	if got := YearsBetween(b, a); got != -1.0 {
		t.Errorf("YearsBetween reversed = %v, want -1.0", got)
	}
}
