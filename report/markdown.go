package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/stress"
	"github.com/meenmo/bondrisk/utils"
)

// CashflowsMarkdown renders one table per schedule with a totals row.
func CashflowsMarkdown(schedules []Schedule, f *Formatter) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Cash Flows")
	for _, s := range schedules {
		doc.H2(s.ID)
		if len(s.Cashflows) == 0 {
			doc.PlainText("No remaining cash flows.")
			continue
		}
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight},
			Header:    []string{"Date", "Coupon", "Principal", "Total"},
		}
		for _, cf := range s.Cashflows {
			table.Rows = append(table.Rows, []string{
				cf.Date.Format(utils.DateLayout),
				f.Amount(cf.Coupon),
				f.Amount(cf.Principal),
				f.Amount(cf.Amount()),
			})
		}
		coupon, principal := s.Total()
		table.Rows = append(table.Rows, []string{
			md.Bold("Total"),
			md.Bold(f.Amount(coupon)),
			md.Bold(f.Amount(principal)),
			md.Bold(f.Amount(coupon + principal)),
		})
		doc.Table(table)
	}
	return doc.String()
}

// RiskMarkdown renders the valuation table, then key rates and VaR when present.
// Failed instruments are listed after the results.
func RiskMarkdown(r *RiskReport, f *Formatter) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Risk Report %s", r.ValuationDate.Format(utils.DateLayout)))

	v := r.Valuation
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight,
			md.AlignRight, md.AlignRight, md.AlignRight, md.AlignRight,
		},
		Header: []string{"Instrument", "Qty", "Price", "Price %", "Mac Dur", "Mod Dur", "Convexity", "DV01"},
	}
	for _, res := range v.Results {
		m := res.Metrics
		table.Rows = append(table.Rows, []string{
			res.ID,
			Number(res.Quantity, 0),
			f.Amount(m.Price),
			Number(m.PricePct, 3),
			Number(m.MacaulayDuration, 4),
			Number(m.ModifiedDuration, 4),
			Number(m.Convexity, 4),
			Number(m.DV01, 4),
		})
	}
	doc.Table(table)
	doc.PlainText(fmt.Sprintf("%s %s", md.Bold("Market value:"), f.Amount(v.TotalValue)))
	failuresSection(doc, v.Failures)

	if len(r.KeyRates) > 0 {
		doc.H2("Key-Rate Durations")
		ids := make([]string, 0, len(r.KeyRates))
		for id := range r.KeyRates {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		tenors := r.KeyRates[ids[0]]
		krd := md.TableSet{Header: []string{"Instrument"}}
		krd.Alignment = append(krd.Alignment, md.AlignLeft)
		for _, k := range tenors {
			krd.Header = append(krd.Header, Number(k.Tenor, 2)+"Y")
			krd.Alignment = append(krd.Alignment, md.AlignRight)
		}
		for _, id := range ids {
			row := []string{id}
			for _, k := range r.KeyRates[id] {
				row = append(row, Number(k.Duration, 4))
			}
			krd.Rows = append(krd.Rows, row)
		}
		doc.Table(krd)
	}

	if len(r.VaR) > 0 {
		doc.H2("Value at Risk")
		vt := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight, md.AlignRight},
			Header:    []string{"Instrument", "Method", "Confidence", "Horizon", "VaR", "ES"},
		}
		for _, x := range r.VaR {
			es := "-"
			if x.ExpectedShortfall > 0 {
				es = Percent(x.ExpectedShortfall)
			}
			vt.Rows = append(vt.Rows, []string{
				x.ID,
				x.Method,
				Percent(x.Confidence),
				fmt.Sprintf("%dd", x.HorizonDays),
				Percent(x.VaR),
				es,
			})
		}
		doc.Table(vt)
	}
	return doc.String()
}

// StressMarkdown renders a summary of every scenario followed by one table per scenario.
func StressMarkdown(r *stress.Report, f *Formatter) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Stress Report %s", r.ValuationDate.Format(utils.DateLayout)))
	doc.PlainText(fmt.Sprintf("%s %s", md.Bold("Baseline value:"), f.Amount(r.BaselineValue)))

	summary := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignLeft},
		Header:    []string{"Scenario", "Portfolio P&L", "Change", "Status"},
	}
	for _, s := range r.Scenarios {
		pct := "-"
		if r.BaselineValue != 0 {
			pct = SignedPercent(s.PortfolioDelta / r.BaselineValue)
		}
		status := "complete"
		if s.Partial {
			status = fmt.Sprintf("partial (%d failed)", len(s.Failures))
		}
		summary.Rows = append(summary.Rows, []string{s.Name, f.Signed(s.PortfolioDelta), pct, status})
	}
	doc.Table(summary)

	for _, s := range r.Scenarios {
		doc.H2(s.Name)
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight, md.AlignRight},
			Header:    []string{"Instrument", "Baseline", "Stressed", "Delta", "Delta %"},
		}
		for _, ir := range s.Instruments {
			table.Rows = append(table.Rows, []string{
				ir.ID,
				f.Amount(ir.Baseline),
				f.Amount(ir.Stressed),
				f.Signed(ir.Delta),
				SignedPercent(ir.DeltaPct / 100),
			})
		}
		doc.Table(table)
		failuresSection(doc, s.Failures)
	}
	return doc.String()
}

// ScenariosMarkdown lists scenario names and descriptions.
func ScenariosMarkdown(scenarios []stress.Scenario) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Scenarios")
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft},
		Header:    []string{"Name", "Description"},
	}
	for _, s := range scenarios {
		table.Rows = append(table.Rows, []string{md.Code(s.Name), s.Description})
	}
	doc.Table(table)
	return doc.String()
}

func failuresSection(doc *md.Markdown, failures []*portfolio.PricingError) {
	if len(failures) == 0 {
		return
	}
	items := make([]string, 0, len(failures))
	for _, pe := range failures {
		items = append(items, fmt.Sprintf("%s: %s", md.Bold(pe.ID), strings.TrimSpace(fmt.Sprint(pe.Err))))
	}
	doc.PlainText(md.Bold("Failed instruments:"))
	doc.BulletList(items...)
}
