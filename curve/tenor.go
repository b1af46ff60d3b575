package curve

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meenmo/bondrisk/utils"
)

// Quote is a curve input row as it arrives from files or requests. Tenor is a period
// ("1W", "3M", "10Y", "30D"), a number of years ("2.5") or a date.
type Quote struct {
	Tenor string  `json:"tenor" mapstructure:"tenor"`
	Rate  float64 `json:"rate" mapstructure:"rate"`
}

// ParseTenor converts tenor strings like "1W", "3M", "10Y" or "2.5" to year fractions.
func ParseTenor(tenor string) (float64, error) {
	s := strings.TrimSpace(strings.ToUpper(tenor))
	if s == "" {
		return 0, fmt.Errorf("ParseTenor: empty tenor")
	}
	unit := s[len(s)-1]
	scale := 0.0
	switch unit {
	case 'D':
		scale = 1.0 / 365.0
	case 'W':
		scale = 7.0 / 365.0
	case 'M':
		scale = 1.0 / 12.0
	case 'Y':
		scale = 1.0
	}
	if scale != 0 {
		v, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("ParseTenor: %q: %w", tenor, err)
		}
		return v * scale, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("ParseTenor: %q: %w", tenor, err)
	}
	return v, nil
}

// quoteTenor resolves a quote's tenor, accepting dates relative to valuation.
func quoteTenor(valuation time.Time, tenor string) (float64, error) {
	if t, err := ParseTenor(tenor); err == nil {
		return t, nil
	}
	d, err := utils.ParseDate(tenor)
	if err != nil {
		return 0, fmt.Errorf("quote tenor %q: not a period, number or date", tenor)
	}
	return utils.YearFraction(valuation, d), nil
}

// FromQuotes builds a curve from quote rows. Date tenors are measured from valuation.
func FromQuotes(valuation time.Time, quotes []Quote, opts ...Option) (*Curve, error) {
	points := make([]Point, 0, len(quotes))
	for i, q := range quotes {
		t, err := quoteTenor(valuation, q.Tenor)
		if err != nil {
			return nil, &ValidationError{Index: i, Reason: err.Error()}
		}
		points = append(points, Point{Tenor: t, Rate: q.Rate})
	}
	return New(points, opts...)
}
