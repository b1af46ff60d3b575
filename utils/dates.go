package utils

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical date format used for output and map keys.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"01/02/2006",
	"1/2/2006",
}

// ParseError reports a date string that matches none of the accepted layouts.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse date %q: expected YYYY-MM-DD or MM/DD/YYYY", e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseDate parses YYYY-MM-DD (single-digit month/day allowed) or MM/DD/YYYY.
// The result is midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Date(t.Year(), t.Month(), t.Day()), nil
		}
		lastErr = err
	}
	return time.Time{}, &ParseError{Input: s, Err: lastErr}
}

// MustParseDate is like ParseDate but panics on error. Intended for tests and fixtures.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Date returns midnight UTC for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time-of-day and location, keeping the calendar day.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// SortDates sorts a slice of time.Time in ascending order.
func SortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}

// Days returns the number of calendar days between two dates.
func Days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}

// DaysInMonth returns the length of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonth behaves like Excel's EDATE: the day of month is kept when it exists in the
// target month and clamped to the month's last day otherwise (Jan 31 + 1M = Feb 28/29).
func AddMonth(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(total-floorDiv(total, 12)*12 + 1)

	day := t.Day()
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// PaymentDates returns start+k*intervalMonths for k = 1, 2, ... while the date is not
// after end. Every date is derived from start so end-of-month clamping does not drift.
func PaymentDates(start, end time.Time, intervalMonths int) []time.Time {
	if intervalMonths <= 0 || !start.Before(end) {
		return nil
	}
	dates := make([]time.Time, 0, int(Days(start, end)/30/float64(intervalMonths))+2)
	for k := 1; ; k++ {
		d := AddMonth(start, k*intervalMonths)
		if d.After(end) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}
