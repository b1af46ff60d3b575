package bond

import (
	"math"
	"time"
)

// FixedRate pays Par*CouponRate/Frequency on every scheduled date.
type FixedRate struct {
	terms      Terms
	CouponRate float64
}

// NewFixedRate validates terms and returns a fixed-coupon bond. couponRate is decimal.
func NewFixedRate(terms Terms, couponRate float64) (*FixedRate, error) {
	if err := terms.validate(true); err != nil {
		return nil, err
	}
	if math.IsNaN(couponRate) || math.IsInf(couponRate, 0) {
		return nil, terms.invalid("coupon_rate", "must be finite")
	}
	return &FixedRate{terms: terms, CouponRate: couponRate}, nil
}

func (b *FixedRate) Terms() Terms { return b.terms }
func (b *FixedRate) Kind() Kind   { return KindFixed }
func (b *FixedRate) sealed()      {}

// Cashflows ignores fwd.
func (b *FixedRate) Cashflows(ForwardRates) []Cashflow {
	coupon := b.terms.ParValue * b.CouponRate / float64(b.terms.Frequency)
	return couponSchedule(b.terms, func(time.Time) float64 { return coupon })
}

func (b *FixedRate) RemainingCashflows(valuation time.Time, fwd ForwardRates) []Cashflow {
	return remaining(b.Cashflows(fwd), valuation)
}
