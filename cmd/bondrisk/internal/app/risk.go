package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/marketdata"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/report"
	"github.com/meenmo/bondrisk/risk"
)

type riskCmd struct {
	app     *App
	keyRate bool
	tenors  string
	vol     float64
	history string
	save    bool
}

func (*riskCmd) Name() string     { return "risk" }
func (*riskCmd) Synopsis() string { return "price the book and report duration, convexity and DV01" }
func (*riskCmd) Usage() string {
	return `bondrisk [book flags] risk [-krd [-tenors 1,2,5,10]] [-vol <annual>] [-history <csv>] [-save]

  Values every position on the curve. Instruments that fail to price are listed
  separately and left out of the market value.

  -krd adds key-rate durations. -vol (decimal annual rate volatility, e.g. 0.01)
  adds parametric and Monte Carlo VaR with expected shortfall; -history adds
  historical VaR from a (date, rate) CSV. -save writes metrics back to -dsn.
`
}

func (c *riskCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.keyRate, "krd", false, "include key-rate durations")
	f.StringVar(&c.tenors, "tenors", "", "comma-separated key tenors in years (default: standard set)")
	f.Float64Var(&c.vol, "vol", 0, "annual volatility of parallel rate moves, decimal; 0 skips parametric and Monte Carlo VaR")
	f.StringVar(&c.history, "history", "", "rate history CSV for historical VaR")
	f.BoolVar(&c.save, "save", false, "save metrics to the -dsn database")
}

func (c *riskCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	if c.save && a.DSN == "" {
		fmt.Fprintln(a.Stderr, "Error: -save requires -dsn")
		return subcommands.ExitUsageError
	}
	tenors, err := parseTenors(c.tenors)
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: -tenors: %v\n", err)
		return subcommands.ExitUsageError
	}

	e, b, status := a.setup(ctx)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer e.logger.Sync()

	v, err := b.portfolio.Valuate(ctx, b.curve, b.valuation, portfolio.WithWorkers(e.cfg.Stress.Workers))
	if err != nil {
		return a.fail("valuate: %v", err)
	}
	v.Failures, v.Partial = b.withFailures(v.Failures)
	rep := &report.RiskReport{ValuationDate: b.valuation, Valuation: v}

	var changes []float64
	if c.history != "" {
		f, err := os.Open(c.history)
		if err != nil {
			return a.fail("%v", err)
		}
		changes, err = marketdata.ReadRateHistory(f)
		f.Close()
		if err != nil {
			return a.fail("%v", err)
		}
	}

	for _, res := range v.Results {
		cfs, err := b.portfolio.GetCashFlows(res.ID, b.valuation)
		if err != nil {
			return a.fail("%v", err)
		}
		if c.keyRate {
			krd, err := risk.KeyRateDurations(cfs, b.curve, b.valuation, tenors, 0)
			if err != nil {
				e.logger.Warn("key-rate durations failed", zap.String("contract_id", res.ID), zap.Error(err))
			} else {
				if rep.KeyRates == nil {
					rep.KeyRates = make(map[string][]risk.KeyRateDuration)
				}
				rep.KeyRates[res.ID] = krd
			}
		}
		rep.VaR = append(rep.VaR, c.valueAtRisk(e, res, cfs, b, changes)...)
	}

	if c.save {
		if err := c.saveMetrics(ctx, e, b, v); err != nil {
			return a.fail("save: %v", err)
		}
	}

	err = a.output(e, rep,
		func() string { return report.RiskMarkdown(rep, e.money) },
		func(w io.Writer) error { return report.WriteRiskCSV(w, v) },
	)
	if err != nil {
		return a.fail("%v", err)
	}
	return subcommands.ExitSuccess
}

// valueAtRisk runs whichever VaR methods the flags enable. A method that fails for
// one instrument is logged and skipped.
func (c *riskCmd) valueAtRisk(e *env, res portfolio.Result, cfs []bond.Cashflow, b *book, changes []float64) []report.VaRResult {
	opt := e.cfg.VaR
	row := func(method string, v, es float64) report.VaRResult {
		return report.VaRResult{
			ID: res.ID, Method: method, Confidence: opt.Confidence, HorizonDays: opt.HorizonDays,
			VaR: v, ExpectedShortfall: es,
		}
	}
	warn := func(method string, err error) {
		e.logger.Warn("VaR failed", zap.String("contract_id", res.ID), zap.String("method", method), zap.Error(err))
	}

	var out []report.VaRResult
	if c.vol > 0 {
		if v, err := risk.ParametricVaR(res.Metrics.ModifiedDuration, c.vol, opt); err != nil {
			warn("parametric", err)
		} else {
			out = append(out, row("parametric", v, 0))
		}
		v, err := risk.MonteCarloVaR(cfs, b.curve, b.valuation, c.vol, opt)
		if err == nil {
			var es float64
			if es, err = risk.ExpectedShortfall(cfs, b.curve, b.valuation, c.vol, opt); err == nil {
				out = append(out, row("monte_carlo", v, es))
			}
		}
		if err != nil {
			warn("monte_carlo", err)
		}
	}
	if len(changes) > 0 {
		if v, err := risk.HistoricalVaR(cfs, b.curve, b.valuation, changes, opt); err != nil {
			warn("historical", err)
		} else {
			out = append(out, row("historical", v, 0))
		}
	}
	return out
}

func (c *riskCmd) saveMetrics(ctx context.Context, e *env, b *book, v *portfolio.Valuation) error {
	store, err := marketdata.Open(ctx, c.app.DSN, e.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, res := range v.Results {
		if err := store.SaveMetrics(ctx, b.valuation, res.ID, res.Metrics); err != nil {
			return err
		}
	}
	e.logger.Info("metrics saved", zap.Int("count", len(v.Results)))
	return nil
}

func parseTenors(s string) ([]float64, error) {
	var out []float64
	for _, part := range splitList(s) {
		t, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
