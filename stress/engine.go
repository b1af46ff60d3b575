package stress

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/risk"
)

// InstrumentResult is one position under one scenario. Prices and deltas are per unit.
type InstrumentResult struct {
	ID       string  `json:"contract_id"`
	Quantity float64 `json:"quantity"`
	Baseline float64 `json:"baseline"`
	Stressed float64 `json:"stressed"`
	Delta    float64 `json:"delta"`
	DeltaPct float64 `json:"delta_pct"`
	// Metrics is the full stressed risk set, present only when the engine was built
	// WithFullMetrics.
	Metrics *risk.Metrics `json:"metrics,omitempty"`
}

// ScenarioResult aggregates a scenario over the portfolio. PortfolioDelta sums
// Quantity × Delta over the instruments that priced; the rest are in Failures.
type ScenarioResult struct {
	Name           string                    `json:"name"`
	Instruments    []InstrumentResult        `json:"instruments"`
	Failures       []*portfolio.PricingError `json:"failures,omitempty"`
	PortfolioDelta float64                   `json:"portfolio_delta"`
	Partial        bool                      `json:"partial"`
}

// Report is the output of Engine.Run.
type Report struct {
	ValuationDate time.Time        `json:"valuation_date"`
	BaselineValue float64          `json:"baseline_value"`
	Scenarios     []ScenarioResult `json:"scenarios"`
}

// Engine reprices a portfolio under scenario curves.
type Engine struct {
	logger      *zap.Logger
	workers     int
	fullMetrics bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds the instruments priced concurrently within a scenario.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithFullMetrics attaches stressed durations, convexity and DV01 to each result.
func WithFullMetrics(on bool) Option {
	return func(e *Engine) { e.fullMetrics = on }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run prices p once on crv, then once per scenario on crv.Apply(shock). crv is never
// modified. An instrument that fails at baseline or under a scenario is reported in that
// scenario's Failures. The error is non-nil for invalid input or a cancelled ctx.
func (e *Engine) Run(ctx context.Context, scenarios []Scenario, p *portfolio.Portfolio, crv *curve.Curve, valuation time.Time) (*Report, error) {
	if p == nil || crv == nil {
		return nil, fmt.Errorf("Run: portfolio and curve are required")
	}
	seen := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("Run: duplicate scenario %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	base, err := p.Valuate(ctx, crv, valuation, portfolio.WithWorkers(e.workers), portfolio.PriceOnly())
	if err != nil {
		return nil, fmt.Errorf("Run: baseline: %w", err)
	}
	baseline := make(map[string]float64, len(base.Results))
	for _, r := range base.Results {
		baseline[r.ID] = r.Metrics.Price
	}
	baseFailed := make(map[string]*portfolio.PricingError, len(base.Failures))
	for _, f := range base.Failures {
		baseFailed[f.ID] = f
	}

	report := &Report{
		ValuationDate: valuation,
		BaselineValue: base.TotalValue,
		Scenarios:     make([]ScenarioResult, 0, len(scenarios)),
	}

	opts := []portfolio.ValuateOption{portfolio.WithWorkers(e.workers)}
	if !e.fullMetrics {
		opts = append(opts, portfolio.PriceOnly())
	}
	for _, s := range scenarios {
		shocked := crv.Apply(s.Shock)
		v, err := p.Valuate(ctx, shocked, valuation, opts...)
		if err != nil {
			return nil, fmt.Errorf("Run: %s: %w", s.Name, err)
		}

		sr := ScenarioResult{Name: s.Name, Instruments: make([]InstrumentResult, 0, len(v.Results))}
		sr.Failures = append(sr.Failures, base.Failures...)
		for _, f := range v.Failures {
			if _, ok := baseFailed[f.ID]; !ok {
				sr.Failures = append(sr.Failures, f)
			}
		}
		for _, r := range v.Results {
			b, ok := baseline[r.ID]
			if !ok {
				continue
			}
			ir := InstrumentResult{
				ID:       r.ID,
				Quantity: r.Quantity,
				Baseline: b,
				Stressed: r.Metrics.Price,
				Delta:    r.Metrics.Price - b,
			}
			if b != 0 {
				ir.DeltaPct = ir.Delta / b * 100
			}
			if e.fullMetrics {
				m := r.Metrics
				ir.Metrics = &m
			}
			sr.Instruments = append(sr.Instruments, ir)
			sr.PortfolioDelta += ir.Quantity * ir.Delta
		}
		sr.Partial = len(sr.Failures) > 0

		e.logger.Info("scenario complete",
			zap.String("scenario", s.Name),
			zap.Float64("portfolio_delta", sr.PortfolioDelta),
			zap.Int("failures", len(sr.Failures)),
		)
		report.Scenarios = append(report.Scenarios, sr)
	}
	return report, nil
}

// Scenario returns the result for name, or false.
func (r *Report) Scenario(name string) (ScenarioResult, bool) {
	for _, s := range r.Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return ScenarioResult{}, false
}
