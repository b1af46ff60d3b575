// Package report renders cash-flow schedules, valuations and stress results as
// Markdown, CSV or JSON.
package report

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Formatter renders float amounts in a currency, rounded to its minor unit.
type Formatter struct {
	cur *money.Currency
}

// NewFormatter returns a formatter for an ISO 4217 code such as "USD".
func NewFormatter(code string) (*Formatter, error) {
	cur := money.GetCurrency(strings.ToUpper(strings.TrimSpace(code)))
	if cur == nil {
		return nil, fmt.Errorf("NewFormatter: unknown currency %q", code)
	}
	return &Formatter{cur: cur}, nil
}

// Currency returns the ISO code.
func (f *Formatter) Currency() string { return f.cur.Code }

// Round returns v rounded half away from zero to the currency's minor unit.
func (f *Formatter) Round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(int32(f.cur.Fraction))
}

// Amount renders v with the currency's symbol and grouping, e.g. "$1,001.16".
func (f *Formatter) Amount(v float64) string {
	minor := f.Round(v).Shift(int32(f.cur.Fraction)).IntPart()
	return money.New(minor, f.cur.Code).Display()
}

// Signed is Amount with an explicit "+" on gains; zero renders as "-".
func (f *Formatter) Signed(v float64) string {
	d := f.Round(v)
	switch {
	case d.IsZero():
		return "-"
	case d.IsPositive():
		return "+" + f.Amount(v)
	}
	return f.Amount(v)
}

// Plain renders v at the currency's precision without symbol or grouping, for CSV.
func (f *Formatter) Plain(v float64) string {
	return f.Round(v).StringFixed(int32(f.cur.Fraction))
}

// Percent renders a fraction as a percentage with two decimals: 0.0123 is "1.23%".
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}

// SignedPercent is Percent with an explicit "+" on positive values.
func SignedPercent(v float64) string {
	d := decimal.NewFromFloat(v).Shift(2).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// Number renders v with a fixed number of decimals.
func Number(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
