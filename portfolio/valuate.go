package portfolio

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/risk"
)

// Result is the valuation of one position.
type Result struct {
	ID       string       `json:"contract_id"`
	Quantity float64      `json:"quantity"`
	Metrics  risk.Metrics `json:"metrics"`
	// MarketValue is Quantity × Metrics.Price.
	MarketValue float64 `json:"market_value"`
}

// Valuation is a portfolio priced on one curve. Failed positions are listed in Failures
// and left out of TotalValue, in which case Partial is set.
type Valuation struct {
	Results    []Result        `json:"results"`
	Failures   []*PricingError `json:"failures,omitempty"`
	TotalValue float64         `json:"total_value"`
	Partial    bool            `json:"partial"`
}

type valuateConfig struct {
	workers   int
	priceOnly bool
}

// ValuateOption configures Valuate.
type ValuateOption func(*valuateConfig)

// WithWorkers bounds the number of positions priced at once. n <= 0 uses GOMAXPROCS.
func WithWorkers(n int) ValuateOption {
	return func(c *valuateConfig) { c.workers = n }
}

// PriceOnly skips durations, convexity and DV01.
func PriceOnly() ValuateOption {
	return func(c *valuateConfig) { c.priceOnly = true }
}

// Valuate prices every position on crv concurrently. A failing position does not stop
// the others; the returned error is non-nil only when ctx is cancelled.
func (p *Portfolio) Valuate(ctx context.Context, crv *curve.Curve, valuation time.Time, opts ...ValuateOption) (*Valuation, error) {
	cfg := valuateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}

	positions := p.Positions()
	metrics := make([]risk.Metrics, len(positions))
	errs := make([]error, len(positions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i, pos := range positions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			metrics[i], errs[i] = price(pos, crv, valuation, cfg.priceOnly)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Valuation{Results: make([]Result, 0, len(positions))}
	for i, pos := range positions {
		if errs[i] != nil {
			perr := &PricingError{ID: pos.ID(), Err: errs[i]}
			p.logger.Warn("pricing failed",
				zap.String("contract_id", perr.ID),
				zap.Error(errs[i]),
			)
			out.Failures = append(out.Failures, perr)
			out.Partial = true
			continue
		}
		mv := pos.Quantity * metrics[i].Price
		out.Results = append(out.Results, Result{
			ID:          pos.ID(),
			Quantity:    pos.Quantity,
			Metrics:     metrics[i],
			MarketValue: mv,
		})
		out.TotalValue += mv
	}
	p.logger.Debug("portfolio valued",
		zap.Int("positions", len(positions)),
		zap.Int("failures", len(out.Failures)),
		zap.Float64("total_value", out.TotalValue),
	)
	return out, nil
}

// price values one position. Non-finite metrics and panics from caller-supplied
// forwards come back as errors.
func price(pos Position, crv *curve.Curve, valuation time.Time, priceOnly bool) (m risk.Metrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = risk.Metrics{}, fmt.Errorf("price: panic: %v", r)
		}
	}()

	if priceOnly {
		m, err = presentValue(pos, crv, valuation)
	} else {
		m, err = risk.Compute(pos.Bond, pos.Forwards, crv, valuation)
	}
	if err != nil {
		return risk.Metrics{}, err
	}
	if err := risk.CheckFinite(pos.ID(), m); err != nil {
		return risk.Metrics{}, err
	}
	return m, nil
}

func presentValue(pos Position, crv *curve.Curve, valuation time.Time) (risk.Metrics, error) {
	pv, err := risk.PresentValue(pos.Bond.RemainingCashflows(valuation, pos.Forwards), crv, valuation)
	if err != nil {
		return risk.Metrics{}, err
	}
	m := risk.Metrics{Price: pv}
	if par := pos.Bond.Terms().ParValue; par > 0 {
		m.PricePct = pv / par * 100
	}
	return m, nil
}
