package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/risk"
)

// Schedule is the cash-flow listing of one instrument.
type Schedule struct {
	ID            string          `json:"contract_id"`
	ValuationDate time.Time       `json:"valuation_date,omitzero"`
	Cashflows     []bond.Cashflow `json:"cashflows"`
}

// Total returns the sum of coupons and principal.
func (s Schedule) Total() (coupon, principal float64) {
	for _, cf := range s.Cashflows {
		coupon += cf.Coupon
		principal += cf.Principal
	}
	return coupon, principal
}

// VaRResult is one instrument's Value-at-Risk under one method, as a fraction of price.
type VaRResult struct {
	ID                string  `json:"contract_id"`
	Method            string  `json:"method"`
	Confidence        float64 `json:"confidence"`
	HorizonDays       int     `json:"horizon_days"`
	VaR               float64 `json:"var"`
	ExpectedShortfall float64 `json:"expected_shortfall,omitempty"`
}

// RiskReport is a portfolio valuation plus the optional key-rate and VaR sections.
type RiskReport struct {
	ValuationDate time.Time                         `json:"valuation_date"`
	Valuation     *portfolio.Valuation              `json:"valuation"`
	KeyRates      map[string][]risk.KeyRateDuration `json:"key_rates,omitempty"`
	VaR           []VaRResult                       `json:"var,omitempty"`
}

// WriteJSON writes v indented.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
