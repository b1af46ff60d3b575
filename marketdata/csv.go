package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/utils"
)

// instrumentColumns maps normalized header names (lowercase, no '_' or ' ') to fields.
var instrumentColumns = map[string]string{
	"type":               "type",
	"bondtype":           "type",
	"contractid":         "contract_id",
	"id":                 "contract_id",
	"securitydesc":       "security_desc",
	"description":        "security_desc",
	"issuedate":          "issue_date",
	"maturitydate":       "maturity_date",
	"parvalue":           "par_value",
	"parvaluemultiplier": "par_value",
	"coupon":             "coupon_rate",
	"couponrate":         "coupon_rate",
	"spread":             "spread",
	"referencerate":      "reference_rate",
	"referenceratename":  "reference_rate",
	"paymentfrequency":   "payment_frequency",
	"frequency":          "payment_frequency",
	"quantity":           "quantity",
	"qty":                "quantity",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(h)
}

// ReadInstruments parses an instrument sheet with a header row. Unknown columns are
// ignored; contract_id, issue_date and maturity_date are required.
func ReadInstruments(r io.Reader) ([]InstrumentRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadInstruments: header: %w", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		if field, ok := instrumentColumns[normalizeHeader(h)]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	for _, req := range []string{"contract_id", "issue_date", "maturity_date"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("ReadInstruments: missing %s column", req)
		}
	}

	var out []InstrumentRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadInstruments: %w", err)
		}
		get := func(field string) string {
			i, ok := cols[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		rec := InstrumentRecord{
			Type:          get("type"),
			ContractID:    get("contract_id"),
			SecurityDesc:  get("security_desc"),
			IssueDate:     get("issue_date"),
			MaturityDate:  get("maturity_date"),
			ReferenceRate: get("reference_rate"),
		}
		if rec.ContractID == "" {
			continue
		}
		floats := []struct {
			field string
			dst   *float64
		}{
			{"coupon_rate", &rec.CouponRate},
			{"spread", &rec.Spread},
			{"quantity", &rec.Quantity},
		}
		for _, f := range floats {
			if *f.dst, err = parseFloat(get(f.field)); err != nil {
				return nil, fmt.Errorf("ReadInstruments: line %d: %s: %w", line, f.field, err)
			}
		}
		if v := get("par_value"); v != "" {
			par, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("ReadInstruments: line %d: par_value: %w", line, err)
			}
			rec.ParValue = &par
		}
		if v := get("payment_frequency"); v != "" {
			freq, err := parseWhole(v)
			if err != nil {
				return nil, fmt.Errorf("ReadInstruments: line %d: payment_frequency: %w", line, err)
			}
			rec.PaymentFrequency = &freq
		}
		out = append(out, rec)
	}
	return out, nil
}

// CurveSheet is a curve as read from a file: the optional as-of date and the quotes.
type CurveSheet struct {
	Date   time.Time
	Quotes []curve.Quote
}

// ReadCurve parses a curve sheet. The tenor column may be named tenor, term or
// maturity; the rate column rate, yield or interest. A date column, if present, gives
// the as-of date from its first row.
func ReadCurve(r io.Reader) (CurveSheet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return CurveSheet{}, fmt.Errorf("ReadCurve: header: %w", err)
	}
	dateCol, tenorCol, rateCol := -1, -1, -1
	for i, h := range header {
		n := normalizeHeader(h)
		switch {
		case tenorCol < 0 && (strings.Contains(n, "tenor") || strings.Contains(n, "term") || strings.Contains(n, "maturity")):
			tenorCol = i
		case rateCol < 0 && (strings.Contains(n, "rate") || strings.Contains(n, "yield") || strings.Contains(n, "interest")):
			rateCol = i
		case dateCol < 0 && (strings.Contains(n, "date") || strings.Contains(n, "time")):
			dateCol = i
		}
	}
	if tenorCol < 0 || rateCol < 0 {
		return CurveSheet{}, fmt.Errorf("ReadCurve: need tenor and rate columns, got %v", header)
	}

	var sheet CurveSheet
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CurveSheet{}, fmt.Errorf("ReadCurve: %w", err)
		}
		if dateCol >= 0 && sheet.Date.IsZero() && strings.TrimSpace(row[dateCol]) != "" {
			if sheet.Date, err = utils.ParseDate(row[dateCol]); err != nil {
				return CurveSheet{}, fmt.Errorf("ReadCurve: line %d: %w", line, err)
			}
		}
		rate, err := parseFloat(row[rateCol])
		if err != nil {
			return CurveSheet{}, fmt.Errorf("ReadCurve: line %d: rate: %w", line, err)
		}
		sheet.Quotes = append(sheet.Quotes, curve.Quote{Tenor: strings.TrimSpace(row[tenorCol]), Rate: rate})
	}
	return sheet, nil
}

// ReadRateHistory parses a (date, rate) series and returns the day-over-day changes in
// date order, ready for risk.HistoricalVaR.
func ReadRateHistory(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ReadRateHistory: header: %w", err)
	}
	dateCol, rateCol := -1, -1
	for i, h := range header {
		n := normalizeHeader(h)
		switch {
		case dateCol < 0 && strings.Contains(n, "date"):
			dateCol = i
		case rateCol < 0 && (strings.Contains(n, "rate") || strings.Contains(n, "yield")):
			rateCol = i
		}
	}
	if dateCol < 0 || rateCol < 0 {
		return nil, fmt.Errorf("ReadRateHistory: need date and rate columns, got %v", header)
	}

	type obs struct {
		date time.Time
		rate float64
	}
	var series []obs
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadRateHistory: %w", err)
		}
		d, err := utils.ParseDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("ReadRateHistory: line %d: %w", line, err)
		}
		v, err := parseFloat(row[rateCol])
		if err != nil {
			return nil, fmt.Errorf("ReadRateHistory: line %d: %w", line, err)
		}
		series = append(series, obs{date: d, rate: v})
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

	if len(series) < 2 {
		return nil, nil
	}
	changes := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		changes = append(changes, series[i].rate-series[i-1].rate)
	}
	return changes, nil
}

// parseWhole accepts integers written as "2" or "2.0".
func parseWhole(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
