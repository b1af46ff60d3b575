package app

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/marketdata"
)

type importCmd struct {
	app       *App
	target    string
	schedules bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "store a book in Postgres" }
func (*importCmd) Usage() string {
	return `bondrisk [book flags] import -to <dsn> [-schedules]

  Loads the book from -input or -instruments/-curve and writes its instruments and
  curve to the database, creating the tables if needed. -schedules also stores each
  instrument's full cash-flow schedule.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.target, "to", "", "Postgres DSN to write to (required)")
	f.BoolVar(&c.schedules, "schedules", false, "store cash-flow schedules too")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if c.target == "" {
		fmt.Fprintln(a.Stderr, "Error: -to is required")
		return subcommands.ExitUsageError
	}
	e, b, status := a.setup(ctx)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer e.logger.Sync()

	store, err := marketdata.Open(ctx, c.target, e.logger)
	if err != nil {
		return a.fail("%v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return a.fail("%v", err)
	}
	recs := make([]marketdata.InstrumentRecord, 0, b.portfolio.Len())
	for _, pos := range b.portfolio.Positions() {
		recs = append(recs, marketdata.Record(pos.Bond, pos.Quantity))
	}
	if err := store.SaveInstruments(ctx, recs); err != nil {
		return a.fail("%v", err)
	}
	if err := store.SaveCurve(ctx, b.valuation, b.curve.Points()); err != nil {
		return a.fail("%v", err)
	}
	if c.schedules {
		for _, pos := range b.portfolio.Positions() {
			cfs, err := b.portfolio.GetCashFlows(pos.ID(), time.Time{})
			if err != nil {
				return a.fail("%v", err)
			}
			if err := store.SaveCashflows(ctx, pos.ID(), cfs); err != nil {
				return a.fail("%v", err)
			}
		}
	}

	e.logger.Info("book imported",
		zap.Int("instruments", len(recs)),
		zap.Int("pillars", b.curve.Len()),
		zap.Bool("schedules", c.schedules),
	)
	fmt.Fprintf(a.Stdout, "Imported %d instruments and a %d-pillar curve dated %s.\n",
		len(recs), b.curve.Len(), b.valuation.Format("2006-01-02"))
	for _, f := range b.failures {
		fmt.Fprintf(a.Stderr, "Skipped %s: %v\n", f.ID, f.Err)
	}
	return subcommands.ExitSuccess
}
