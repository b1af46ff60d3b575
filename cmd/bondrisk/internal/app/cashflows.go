package app

import (
	"context"
	"flag"
	"io"
	"time"

	"github.com/google/subcommands"

	"github.com/meenmo/bondrisk/report"
)

type cashflowsCmd struct {
	app *App
	ids string
	all bool
}

func (*cashflowsCmd) Name() string     { return "cashflows" }
func (*cashflowsCmd) Synopsis() string { return "list instrument cash-flow schedules" }
func (*cashflowsCmd) Usage() string {
	return `bondrisk [book flags] cashflows [-id <id,...>] [-all]

  Prints the cash flows remaining after the valuation date, or the full schedule
  with -all. Floating coupons use the book's forwards or, when absent, forwards
  implied by the curve.
`
}

func (c *cashflowsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ids, "id", "", "comma-separated contract ids (default: all)")
	f.BoolVar(&c.all, "all", false, "include flows on or before the valuation date")
}

func (c *cashflowsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	e, b, status := a.setup(ctx)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer e.logger.Sync()

	ids := splitList(c.ids)
	if len(ids) == 0 {
		for _, pos := range b.portfolio.Positions() {
			ids = append(ids, pos.ID())
		}
	}

	on := b.valuation
	if c.all {
		on = time.Time{}
	}
	schedules := make([]report.Schedule, 0, len(ids))
	for _, id := range ids {
		cfs, err := b.portfolio.GetCashFlows(id, on)
		if err != nil {
			return a.fail("%v", err)
		}
		schedules = append(schedules, report.Schedule{ID: id, ValuationDate: on, Cashflows: cfs})
	}

	err := a.output(e, schedules,
		func() string { return report.CashflowsMarkdown(schedules, e.money) },
		func(w io.Writer) error { return report.WriteCashflowsCSV(w, schedules, e.money) },
	)
	if err != nil {
		return a.fail("%v", err)
	}
	return subcommands.ExitSuccess
}
