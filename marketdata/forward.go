package marketdata

import (
	"fmt"
	"time"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/utils"
)

// MapForwardRates is a static map-backed bond.ForwardRates keyed by "2006-01-02".
type MapForwardRates struct {
	rates map[string]float64
}

func NewMapForwardRates(rates map[string]float64) *MapForwardRates {
	cp := make(map[string]float64, len(rates))
	for k, v := range rates {
		cp[k] = v
	}
	return &MapForwardRates{rates: cp}
}

// ParseForwardRates normalizes date keys in any layout utils.ParseDate accepts.
func ParseForwardRates(rates map[string]float64) (*MapForwardRates, error) {
	out := make(map[string]float64, len(rates))
	for k, v := range rates {
		d, err := utils.ParseDate(k)
		if err != nil {
			return nil, fmt.Errorf("ParseForwardRates: %w", err)
		}
		out[d.Format(utils.DateLayout)] = v
	}
	return &MapForwardRates{rates: out}, nil
}

func (m *MapForwardRates) RateOn(date time.Time) (float64, bool) {
	val, ok := m.rates[date.Format(utils.DateLayout)]
	return val, ok
}

// Len returns the number of dated rates.
func (m *MapForwardRates) Len() int { return len(m.rates) }

// ImpliedForwards projects the reference rate for each coupon period of b from crv:
// (DF(start)/DF(end) − 1)/τ with τ in ACT/365F years, keyed by the period's payment date.
// Periods that ended on or before valuation are skipped.
func ImpliedForwards(crv *curve.Curve, valuation time.Time, b bond.Bond) (*MapForwardRates, error) {
	rates := make(map[string]float64)
	start := b.Terms().IssueDate
	for _, cf := range b.Cashflows(nil) {
		end := cf.Date
		if !end.After(start) {
			continue
		}
		if end.After(valuation) {
			dfStart, err := crv.DF(valuation, start)
			if err != nil {
				return nil, fmt.Errorf("ImpliedForwards: %w", err)
			}
			dfEnd, err := crv.DF(valuation, end)
			if err != nil {
				return nil, fmt.Errorf("ImpliedForwards: %w", err)
			}
			tau := utils.YearFraction(start, end)
			rates[end.Format(utils.DateLayout)] = (dfStart/dfEnd - 1) / tau
		}
		start = end
	}
	return &MapForwardRates{rates: rates}, nil
}
