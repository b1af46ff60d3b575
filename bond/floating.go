package bond

import (
	"math"
	"time"
)

// FloatingRate pays Par*(forward + Spread)/Frequency, where the forward for each payment
// date comes from the caller's ForwardRates. Dates without a forward pay the spread alone.
type FloatingRate struct {
	terms         Terms
	Spread        float64
	ReferenceRate string
}

// NewFloatingRate validates terms and returns a floating-coupon bond. spread is decimal;
// referenceRate is a label such as "SOFR" and does not affect pricing.
func NewFloatingRate(terms Terms, spread float64, referenceRate string) (*FloatingRate, error) {
	if err := terms.validate(true); err != nil {
		return nil, err
	}
	if math.IsNaN(spread) || math.IsInf(spread, 0) {
		return nil, terms.invalid("spread", "must be finite")
	}
	return &FloatingRate{terms: terms, Spread: spread, ReferenceRate: referenceRate}, nil
}

func (b *FloatingRate) Terms() Terms { return b.terms }
func (b *FloatingRate) Kind() Kind   { return KindFloating }
func (b *FloatingRate) sealed()      {}

func (b *FloatingRate) Cashflows(fwd ForwardRates) []Cashflow {
	freq := float64(b.terms.Frequency)
	return couponSchedule(b.terms, func(d time.Time) float64 {
		rate := b.Spread
		if fwd != nil {
			if r, ok := fwd.RateOn(d); ok {
				rate += r
			}
		}
		return b.terms.ParValue * rate / freq
	})
}

func (b *FloatingRate) RemainingCashflows(valuation time.Time, fwd ForwardRates) []Cashflow {
	return remaining(b.Cashflows(fwd), valuation)
}
