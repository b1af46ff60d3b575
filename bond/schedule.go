package bond

import (
	"time"

	"github.com/meenmo/bondrisk/utils"
)

// couponSchedule builds the coupon flows for terms with the per-period coupon supplied by
// couponFor. The principal is folded into the maturity coupon when the schedule lands
// exactly on maturity, otherwise it is paid as a separate flow.
func couponSchedule(t Terms, couponFor func(date time.Time) float64) []Cashflow {
	dates := utils.PaymentDates(t.IssueDate, t.MaturityDate, t.IntervalMonths())
	cfs := make([]Cashflow, 0, len(dates)+1)
	for _, d := range dates {
		cfs = append(cfs, Cashflow{Date: d, Coupon: couponFor(d)})
	}
	if n := len(cfs); n > 0 && cfs[n-1].Date.Equal(t.MaturityDate) {
		cfs[n-1].Principal = t.ParValue
		return cfs
	}
	return append(cfs, Cashflow{Date: t.MaturityDate, Principal: t.ParValue})
}
