package marketdata

import (
	"fmt"
	"strings"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/utils"
)

// Defaults applied by Build when a record omits the field. An explicit zero is passed
// through and rejected by bond validation.
const (
	DefaultParValue  = 1000.0
	DefaultFrequency = 2
)

// InstrumentRecord is one instrument row as it arrives from JSON, CSV or the database.
// Dates are strings in any layout utils.ParseDate accepts; rates are decimal.
// ParValue and PaymentFrequency are nil when the source omits them.
type InstrumentRecord struct {
	Type             string   `json:"type,omitempty" mapstructure:"type"`
	ContractID       string   `json:"contract_id" mapstructure:"contract_id"`
	SecurityDesc     string   `json:"security_desc,omitempty" mapstructure:"security_desc"`
	IssueDate        string   `json:"issue_date" mapstructure:"issue_date"`
	MaturityDate     string   `json:"maturity_date" mapstructure:"maturity_date"`
	ParValue         *float64 `json:"par_value,omitempty" mapstructure:"par_value"`
	CouponRate       float64  `json:"coupon_rate,omitempty" mapstructure:"coupon_rate"`
	Spread           float64  `json:"spread,omitempty" mapstructure:"spread"`
	ReferenceRate    string   `json:"reference_rate,omitempty" mapstructure:"reference_rate"`
	PaymentFrequency *int     `json:"payment_frequency,omitempty" mapstructure:"payment_frequency"`
	Quantity         float64  `json:"quantity,omitempty" mapstructure:"quantity"`
}

// Kind returns the explicit type, or infers it from the description: "zero" or a
// bill-style "S 0" prefix is a zero coupon, "float" is a floater, anything else is fixed.
func (r InstrumentRecord) Kind() (bond.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "fixed", "fixed_rate":
		return bond.KindFixed, nil
	case "floating", "floating_rate", "frn":
		return bond.KindFloating, nil
	case "zero", "zero_coupon":
		return bond.KindZero, nil
	case "":
	default:
		return "", fmt.Errorf("instrument %s: unknown type %q", r.ContractID, r.Type)
	}
	desc := strings.ToLower(r.SecurityDesc)
	switch {
	case strings.Contains(desc, "zero") || strings.HasPrefix(desc, "s 0"):
		return bond.KindZero, nil
	case strings.Contains(desc, "float"):
		return bond.KindFloating, nil
	}
	return bond.KindFixed, nil
}

// Build validates the record and constructs the bond variant it describes.
func (r InstrumentRecord) Build() (bond.Bond, error) {
	kind, err := r.Kind()
	if err != nil {
		return nil, err
	}
	issue, err := utils.ParseDate(r.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("instrument %s: issue_date: %w", r.ContractID, err)
	}
	maturity, err := utils.ParseDate(r.MaturityDate)
	if err != nil {
		return nil, fmt.Errorf("instrument %s: maturity_date: %w", r.ContractID, err)
	}
	terms := bond.Terms{
		ContractID:   strings.TrimSpace(r.ContractID),
		Description:  r.SecurityDesc,
		IssueDate:    issue,
		MaturityDate: maturity,
		ParValue:     DefaultParValue,
	}
	if r.ParValue != nil {
		terms.ParValue = *r.ParValue
	}
	switch {
	case r.PaymentFrequency != nil:
		terms.Frequency = *r.PaymentFrequency
	case kind != bond.KindZero:
		terms.Frequency = DefaultFrequency
	}

	switch kind {
	case bond.KindZero:
		return bond.NewZeroCoupon(terms)
	case bond.KindFloating:
		return bond.NewFloatingRate(terms, r.Spread, r.ReferenceRate)
	default:
		return bond.NewFixedRate(terms, r.CouponRate)
	}
}

// Record converts a bond back to its row form.
func Record(b bond.Bond, quantity float64) InstrumentRecord {
	t := b.Terms()
	par, freq := t.ParValue, t.Frequency
	r := InstrumentRecord{
		Type:             string(b.Kind()),
		ContractID:       t.ContractID,
		SecurityDesc:     t.Description,
		IssueDate:        t.IssueDate.Format(utils.DateLayout),
		MaturityDate:     t.MaturityDate.Format(utils.DateLayout),
		ParValue:         &par,
		PaymentFrequency: &freq,
		Quantity:         quantity,
	}
	switch v := b.(type) {
	case *bond.FixedRate:
		r.CouponRate = v.CouponRate
	case *bond.FloatingRate:
		r.Spread = v.Spread
		r.ReferenceRate = v.ReferenceRate
	case *bond.ZeroCoupon:
		r.PaymentFrequency = nil
	}
	return r
}
