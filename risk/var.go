package risk

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
)

const tradingDaysPerYear = 252

// VaROptions controls the Value-at-Risk calculators. Results are losses as a fraction of
// the current price (0.012 = 1.2%), never negative.
type VaROptions struct {
	Confidence  float64 `json:"confidence" mapstructure:"confidence"`
	HorizonDays int     `json:"horizon_days" mapstructure:"horizon_days"`
	Simulations int     `json:"simulations" mapstructure:"simulations"`
	Seed        uint64  `json:"seed" mapstructure:"seed"`
}

// DefaultVaROptions is 95% over ten trading days.
var DefaultVaROptions = VaROptions{
	Confidence:  0.95,
	HorizonDays: 10,
	Simulations: 10000,
	Seed:        42,
}

var errNoValue = errors.New("instrument has no remaining value")

func (o VaROptions) validate() error {
	if !(o.Confidence > 0 && o.Confidence < 1) {
		return fmt.Errorf("confidence %g outside (0, 1)", o.Confidence)
	}
	if o.HorizonDays <= 0 {
		return fmt.Errorf("horizon %d days must be positive", o.HorizonDays)
	}
	return nil
}

// HistoricalVaR revalues cfs under each historical daily rate change (decimal, applied
// as a parallel shift), scales the tail return by √horizon and reports it as a loss.
func HistoricalVaR(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time, changes []float64, opt VaROptions) (float64, error) {
	if err := opt.validate(); err != nil {
		return 0, fmt.Errorf("HistoricalVaR: %w", err)
	}
	if len(changes) == 0 {
		return 0, fmt.Errorf("HistoricalVaR: no rate changes")
	}
	returns, err := shiftReturns(cfs, crv, valuation, changes)
	if err != nil {
		return 0, fmt.Errorf("HistoricalVaR: %w", err)
	}
	sort.Float64s(returns)
	idx := tailIndex(len(returns), opt.Confidence)
	return lossOf(returns[idx] * math.Sqrt(float64(opt.HorizonDays))), nil
}

// ParametricVaR is the duration-normal approximation: D_mod · σ_annual/√252 · √horizon · z.
func ParametricVaR(modifiedDuration, annualVol float64, opt VaROptions) (float64, error) {
	if err := opt.validate(); err != nil {
		return 0, fmt.Errorf("ParametricVaR: %w", err)
	}
	if annualVol < 0 {
		return 0, fmt.Errorf("ParametricVaR: negative volatility %g", annualVol)
	}
	vol := annualVol * math.Sqrt(float64(opt.HorizonDays)/tradingDaysPerYear)
	return math.Max(0, modifiedDuration*vol*zScore(opt.Confidence)), nil
}

// MonteCarloVaR simulates normal parallel rate moves with horizon volatility
// σ_annual·√(horizon/252), revalues cfs under each, and returns the tail loss.
func MonteCarloVaR(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time, annualVol float64, opt VaROptions) (float64, error) {
	returns, err := simulate(cfs, crv, valuation, annualVol, opt)
	if err != nil {
		return 0, fmt.Errorf("MonteCarloVaR: %w", err)
	}
	return lossOf(returns[tailIndex(len(returns), opt.Confidence)]), nil
}

// ExpectedShortfall is the mean simulated loss beyond the VaR quantile.
func ExpectedShortfall(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time, annualVol float64, opt VaROptions) (float64, error) {
	returns, err := simulate(cfs, crv, valuation, annualVol, opt)
	if err != nil {
		return 0, fmt.Errorf("ExpectedShortfall: %w", err)
	}
	idx := tailIndex(len(returns), opt.Confidence)
	var sum float64
	for _, r := range returns[:idx+1] {
		sum += r
	}
	return lossOf(sum / float64(idx+1)), nil
}

// simulate returns sorted simulated returns.
func simulate(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time, annualVol float64, opt VaROptions) ([]float64, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if annualVol < 0 {
		return nil, fmt.Errorf("negative volatility %g", annualVol)
	}
	if opt.Simulations <= 0 {
		return nil, fmt.Errorf("simulations %d must be positive", opt.Simulations)
	}
	vol := annualVol * math.Sqrt(float64(opt.HorizonDays)/tradingDaysPerYear)
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed^0x9e3779b97f4a7c15))
	changes := make([]float64, opt.Simulations)
	for i := range changes {
		changes[i] = rng.NormFloat64() * vol
	}
	returns, err := shiftReturns(cfs, crv, valuation, changes)
	if err != nil {
		return nil, err
	}
	sort.Float64s(returns)
	return returns, nil
}

// shiftReturns reprices cfs under each parallel change and returns (P'−P)/P.
func shiftReturns(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time, changes []float64) ([]float64, error) {
	pv, err := PresentValue(cfs, crv, valuation)
	if err != nil {
		return nil, err
	}
	if pv == 0 {
		return nil, errNoValue
	}
	out := make([]float64, len(changes))
	for i, dr := range changes {
		shifted, err := PresentValue(cfs, crv.Shift(dr/bp), valuation)
		if err != nil {
			return nil, err
		}
		out[i] = (shifted - pv) / pv
	}
	return out, nil
}

func tailIndex(n int, confidence float64) int {
	idx := int(math.Floor(float64(n) * (1 - confidence)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}

// zScore is the standard normal quantile at p.
func zScore(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
