package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/stress"
	"github.com/meenmo/bondrisk/utils"
)

// WriteCashflowsCSV writes one row per cash flow of every schedule.
func WriteCashflowsCSV(w io.Writer, schedules []Schedule, f *Formatter) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"contract_id", "date", "coupon", "principal", "total"}); err != nil {
		return fmt.Errorf("WriteCashflowsCSV: %w", err)
	}
	for _, s := range schedules {
		for _, cf := range s.Cashflows {
			row := []string{
				s.ID,
				cf.Date.Format(utils.DateLayout),
				f.Plain(cf.Coupon),
				f.Plain(cf.Principal),
				f.Plain(cf.Amount()),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("WriteCashflowsCSV: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRiskCSV writes one row per position. Failed positions carry only the error.
func WriteRiskCSV(w io.Writer, v *portfolio.Valuation) error {
	cw := csv.NewWriter(w)
	header := []string{
		"contract_id", "quantity", "price", "price_pct", "macaulay_duration",
		"modified_duration", "convexity", "dv01", "market_value", "error",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteRiskCSV: %w", err)
	}
	for _, r := range v.Results {
		m := r.Metrics
		row := []string{
			r.ID,
			formatFloat(r.Quantity),
			formatFloat(m.Price),
			formatFloat(m.PricePct),
			formatFloat(m.MacaulayDuration),
			formatFloat(m.ModifiedDuration),
			formatFloat(m.Convexity),
			formatFloat(m.DV01),
			formatFloat(r.MarketValue),
			"",
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteRiskCSV: %w", err)
		}
	}
	for _, pe := range v.Failures {
		row := make([]string, len(header))
		row[0] = pe.ID
		row[len(row)-1] = fmt.Sprint(pe.Err)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteRiskCSV: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStressCSV writes one row per (scenario, instrument), failures included with an
// error message and empty prices.
func WriteStressCSV(w io.Writer, r *stress.Report) error {
	cw := csv.NewWriter(w)
	header := []string{"scenario", "contract_id", "quantity", "baseline", "stressed", "delta", "delta_pct", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("WriteStressCSV: %w", err)
	}
	for _, s := range r.Scenarios {
		for _, ir := range s.Instruments {
			row := []string{
				s.Name,
				ir.ID,
				formatFloat(ir.Quantity),
				formatFloat(ir.Baseline),
				formatFloat(ir.Stressed),
				formatFloat(ir.Delta),
				formatFloat(ir.DeltaPct),
				"",
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("WriteStressCSV: %w", err)
			}
		}
		for _, pe := range s.Failures {
			row := make([]string, len(header))
			row[0], row[1] = s.Name, pe.ID
			row[len(row)-1] = fmt.Sprint(pe.Err)
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("WriteStressCSV: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
