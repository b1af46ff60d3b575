package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"github.com/meenmo/bondrisk/report"
	"github.com/meenmo/bondrisk/stress"
)

type stressCmd struct {
	app       *App
	scenarios string
	full      bool
}

func (*stressCmd) Name() string     { return "stress" }
func (*stressCmd) Synopsis() string { return "reprice the book under rate scenarios" }
func (*stressCmd) Usage() string {
	return `bondrisk [book flags] stress [-scenario <name,...>] [-full]

  Reprices every position under each scenario's shocked curve and reports the
  per-instrument and portfolio change against the baseline. Scenario names come
  from the scenarios command; ad-hoc parallel shifts such as "parallel +75bp" or
  "parallel_down_25bp" are accepted too. Without -scenario the names in
  stress.scenarios from config are used, or the standard set when that is empty.
`
}

func (c *stressCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.scenarios, "scenario", "", "comma-separated scenario names")
	f.BoolVar(&c.full, "full", false, "attach stressed durations, convexity and DV01 to each result")
}

func (c *stressCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	e, b, status := a.setup(ctx)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer e.logger.Sync()

	names := splitList(c.scenarios)
	if len(names) == 0 {
		names = e.cfg.Stress.Scenarios
	}
	scenarios, err := stress.LookupAll(names)
	if err != nil {
		if errors.Is(err, stress.ErrUnknownScenario) {
			fmt.Fprintf(a.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		return a.fail("%v", err)
	}

	engine := stress.NewEngine(
		stress.WithLogger(e.logger),
		stress.WithWorkers(e.cfg.Stress.Workers),
		stress.WithFullMetrics(c.full || e.cfg.Stress.FullMetrics),
	)
	rep, err := engine.Run(ctx, scenarios, b.portfolio, b.curve, b.valuation)
	if err != nil {
		return a.fail("%v", err)
	}
	for i := range rep.Scenarios {
		s := &rep.Scenarios[i]
		s.Failures, s.Partial = b.withFailures(s.Failures)
	}

	err = a.output(e, rep,
		func() string { return report.StressMarkdown(rep, e.money) },
		func(w io.Writer) error { return report.WriteStressCSV(w, rep) },
	)
	if err != nil {
		return a.fail("%v", err)
	}
	return subcommands.ExitSuccess
}

type scenariosCmd struct {
	app *App
}

func (*scenariosCmd) Name() string     { return "scenarios" }
func (*scenariosCmd) Synopsis() string { return "list the built-in stress scenarios" }
func (*scenariosCmd) Usage() string {
	return `bondrisk scenarios

  Lists the standard scenarios accepted by stress -scenario.
`
}

func (*scenariosCmd) SetFlags(*flag.FlagSet) {}

func (c *scenariosCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	e, err := a.env()
	if err != nil {
		return a.fail("config: %v", err)
	}
	scenarios := stress.Standard()
	type row struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	rows := make([]row, 0, len(scenarios))
	for _, s := range scenarios {
		rows = append(rows, row{Name: s.Name, Description: s.Description})
	}
	err = a.output(e, rows, func() string { return report.ScenariosMarkdown(scenarios) }, nil)
	if err != nil {
		return a.fail("%v", err)
	}
	return subcommands.ExitSuccess
}
