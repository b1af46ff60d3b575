package bond

import (
	"fmt"
	"time"
)

// Cashflow is a single dated cash payment for a bond.
//
// Amounts are in currency units per bond (par 1000 pays 1000 principal), not price-per-100.
type Cashflow struct {
	Date      time.Time `json:"date"`
	Coupon    float64   `json:"coupon"`
	Principal float64   `json:"principal"`
}

func (c Cashflow) Amount() float64 {
	return c.Coupon + c.Principal
}

// Kind identifies the bond variant.
type Kind string

const (
	KindFixed    Kind = "fixed"
	KindFloating Kind = "floating"
	KindZero     Kind = "zero"
)

// ForwardRates supplies projected reference rates for floating coupons, keyed by
// payment date. ok is false when no projection exists for the date.
type ForwardRates interface {
	RateOn(date time.Time) (rate float64, ok bool)
}

// Bond is implemented by FixedRate, FloatingRate and ZeroCoupon only.
type Bond interface {
	Terms() Terms
	Kind() Kind
	// Cashflows returns the full schedule from issue to maturity in date order.
	// fwd is only consulted by floating-rate bonds and may be nil.
	Cashflows(fwd ForwardRates) []Cashflow
	// RemainingCashflows returns the flows dated strictly after valuation.
	RemainingCashflows(valuation time.Time, fwd ForwardRates) []Cashflow

	sealed()
}

// Terms holds the contract data shared by every variant.
type Terms struct {
	ContractID   string    `json:"contract_id"`
	Description  string    `json:"security_desc,omitempty"`
	IssueDate    time.Time `json:"issue_date"`
	MaturityDate time.Time `json:"maturity_date"`
	ParValue     float64   `json:"par_value"`
	// Frequency is coupon payments per year (1, 2, 3, 4, 6 or 12). Ignored for zero coupons.
	Frequency int `json:"payment_frequency"`
}

// ValidationError reports a rejected construction parameter.
type ValidationError struct {
	ContractID string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.ContractID == "" {
		return fmt.Sprintf("bond: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("bond %s: %s: %s", e.ContractID, e.Field, e.Reason)
}

func (t Terms) invalid(field, format string, args ...any) error {
	return &ValidationError{ContractID: t.ContractID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// validate checks the invariants shared by all variants. needFrequency is false for
// zero coupons.
func (t Terms) validate(needFrequency bool) error {
	if t.ContractID == "" {
		return t.invalid("contract_id", "must not be empty")
	}
	if t.IssueDate.IsZero() || t.MaturityDate.IsZero() {
		return t.invalid("maturity_date", "issue and maturity dates are required")
	}
	if !t.IssueDate.Before(t.MaturityDate) {
		return t.invalid("maturity_date", "maturity %s is not after issue %s",
			t.MaturityDate.Format("2006-01-02"), t.IssueDate.Format("2006-01-02"))
	}
	if !(t.ParValue > 0) {
		return t.invalid("par_value", "must be positive, got %g", t.ParValue)
	}
	if !needFrequency {
		return nil
	}
	if t.Frequency <= 0 {
		return t.invalid("payment_frequency", "must be positive, got %d", t.Frequency)
	}
	if 12%t.Frequency != 0 {
		return t.invalid("payment_frequency", "%d payments per year do not divide 12 months", t.Frequency)
	}
	return nil
}

// IntervalMonths is the coupon period length in months.
func (t Terms) IntervalMonths() int {
	if t.Frequency <= 0 {
		return 0
	}
	return 12 / t.Frequency
}

// remaining filters cfs to the flows strictly after valuation. cfs is date-ordered, so
// the result is always a suffix.
func remaining(cfs []Cashflow, valuation time.Time) []Cashflow {
	for i, cf := range cfs {
		if cf.Date.After(valuation) {
			return cfs[i:]
		}
	}
	return []Cashflow{}
}
