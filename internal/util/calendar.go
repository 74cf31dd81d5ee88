package util

import "time"

// Listed equity options expire on Fridays: weekly series every Friday and
// the standard monthly series on the third Friday. These helpers operate on
// calendar dates only; holiday-shifted expirations are the data provider's
// concern.

// NextFriday returns the first Friday strictly after t, at midnight UTC.
func NextFriday(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	for {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() == time.Friday {
			return d
		}
	}
}

// FridaysBetween returns every Friday in [start, end], ascending, at
// midnight UTC.
func FridaysBetween(start, end time.Time) []time.Time {
	var fridays []time.Time
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if d.Weekday() != time.Friday {
		d = NextFriday(d)
	}
	for !d.After(end) {
		fridays = append(fridays, d)
		d = d.AddDate(0, 0, 7)
	}
	return fridays
}

// ThirdFriday returns the third Friday of the given month, at midnight UTC.
func ThirdFriday(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 14)
}

// YearsBetween returns the time from a to b expressed in calendar years,
// using a 365-day year. Negative if b is before a.
func YearsBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24 / 365
}
