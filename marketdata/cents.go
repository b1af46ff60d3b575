package marketdata

import (
	"math"
	"time"

	"github.com/meenmo/bondrisk/bond"
)

// CashflowCents is one row of the bond_cashflows table written by Store.SaveCashflows:
// coupon and principal in integer cents, the BIGINT columns of that table.
type CashflowCents struct {
	Date           time.Time
	CouponCents    int64
	PrincipalCents int64
}

// Cashflow converts a stored row back to currency units.
func (c CashflowCents) Cashflow() bond.Cashflow {
	return bond.Cashflow{
		Date:      c.Date,
		Coupon:    float64(c.CouponCents) / 100.0,
		Principal: float64(c.PrincipalCents) / 100.0,
	}
}

// Cents rounds cf to the nearest cent, half away from zero, for storage.
func Cents(cf bond.Cashflow) CashflowCents {
	return CashflowCents{
		Date:           cf.Date,
		CouponCents:    int64(math.Round(cf.Coupon * 100)),
		PrincipalCents: int64(math.Round(cf.Principal * 100)),
	}
}

// ScheduleFromCents converts loaded rows, in pay-date order, to a schedule.
func ScheduleFromCents(rows []CashflowCents) []bond.Cashflow {
	out := make([]bond.Cashflow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Cashflow())
	}
	return out
}

// ScheduleCents rounds every flow of a schedule for storage.
func ScheduleCents(cfs []bond.Cashflow) []CashflowCents {
	out := make([]CashflowCents, 0, len(cfs))
	for _, cf := range cfs {
		out = append(out, Cents(cf))
	}
	return out
}
