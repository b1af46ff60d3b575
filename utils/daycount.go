package utils

import (
	"time"
)

// DayCount names a day count convention.
type DayCount string

const (
	Act365F   DayCount = "ACT/365F"
	Act360    DayCount = "ACT/360"
	Thirty360 DayCount = "30/360"
)

// YearFraction is the engine's time axis: actual days over 365, no leap-year or
// business-day adjustment. Negative when end is before start.
func YearFraction(start, end time.Time) float64 {
	return Act365F.YearFraction(start, end)
}

// YearFraction computes the accrual fraction between two dates. Unknown conventions
// fall back to ACT/365F.
func (dc DayCount) YearFraction(start, end time.Time) float64 {
	switch dc {
	case Act360:
		return Days(start, end) / 360.0
	case Thirty360:
		// 30E/360: both day-of-month values capped at 30.
		d1 := min(start.Day(), 30)
		d2 := min(end.Day(), 30)
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	default:
		return Days(start, end) / 365.0
	}
}
