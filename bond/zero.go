package bond

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/bondrisk/utils"
)

// ZeroCoupon pays its par value once, at maturity.
type ZeroCoupon struct {
	terms Terms
}

// NewZeroCoupon validates terms and returns a zero-coupon bond. terms.Frequency is ignored.
func NewZeroCoupon(terms Terms) (*ZeroCoupon, error) {
	if err := terms.validate(false); err != nil {
		return nil, err
	}
	return &ZeroCoupon{terms: terms}, nil
}

func (b *ZeroCoupon) Terms() Terms { return b.terms }
func (b *ZeroCoupon) Kind() Kind   { return KindZero }
func (b *ZeroCoupon) sealed()      {}

func (b *ZeroCoupon) Cashflows(ForwardRates) []Cashflow {
	return []Cashflow{{Date: b.terms.MaturityDate, Principal: b.terms.ParValue}}
}

func (b *ZeroCoupon) RemainingCashflows(valuation time.Time, fwd ForwardRates) []Cashflow {
	return remaining(b.Cashflows(fwd), valuation)
}

// YieldToMaturity returns the annually compounded yield implied by pricePct (price as a
// percent of par, e.g. 95.238): (100/price)^(1/t) - 1.
func (b *ZeroCoupon) YieldToMaturity(valuation time.Time, pricePct float64) (float64, error) {
	if !(pricePct > 0) {
		return 0, fmt.Errorf("YieldToMaturity: price must be positive, got %g", pricePct)
	}
	t := utils.YearFraction(valuation, b.terms.MaturityDate)
	if t <= 0 {
		return 0, fmt.Errorf("YieldToMaturity: %s has matured", b.terms.ContractID)
	}
	return math.Pow(100/pricePct, 1/t) - 1, nil
}
