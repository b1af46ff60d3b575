package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/bondrisk/utils"
)

var (
	// ErrEmpty is returned by queries against a curve with no points.
	ErrEmpty = errors.New("curve: no points")
	// ErrInvalidRate is returned when a rate cannot be turned into a discount factor.
	ErrInvalidRate = errors.New("curve: rate outside compounding domain")
)

// Continuous selects exp(-r*t) discounting.
const Continuous = 0

// Point is one observed (tenor, rate) pair. Tenor is in years, rate is decimal (0.05 = 5%).
type Point struct {
	Tenor float64 `json:"tenor"`
	Rate  float64 `json:"rate"`
}

// ValidationError reports a malformed point set.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("curve: point %d: %s", e.Index, e.Reason)
}

// Curve is an immutable zero-rate curve. Rates between points are linearly interpolated;
// outside the observed range the nearest edge rate is used.
type Curve struct {
	tenors      []float64
	rates       []float64
	compounding int
}

// Option configures a Curve at construction.
type Option func(*Curve)

// WithCompounding sets the number of compounding periods per year used by DF.
// 0 selects continuous compounding. The default is 1 (annual).
func WithCompounding(periods int) Option {
	return func(c *Curve) { c.compounding = periods }
}

// New builds a curve from points in any order. Tenors must be non-negative and unique,
// rates finite.
func New(points []Point, opts ...Option) (*Curve, error) {
	c := &Curve{compounding: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.compounding < 0 {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("compounding %d must be >= 0", c.compounding)}
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	for i, p := range sorted {
		switch {
		case math.IsNaN(p.Tenor) || math.IsInf(p.Tenor, 0):
			return nil, &ValidationError{Index: i, Reason: "tenor is not finite"}
		case p.Tenor < 0:
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("negative tenor %g", p.Tenor)}
		case math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0):
			return nil, &ValidationError{Index: i, Reason: "rate is not finite"}
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tenor < sorted[j].Tenor })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Tenor == sorted[i-1].Tenor {
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("duplicate tenor %g", sorted[i].Tenor)}
		}
	}

	c.tenors = make([]float64, len(sorted))
	c.rates = make([]float64, len(sorted))
	for i, p := range sorted {
		c.tenors[i] = p.Tenor
		c.rates[i] = p.Rate
	}
	return c, nil
}

// MustNew is like New but panics on invalid input. Intended for fixtures.
func MustNew(points []Point, opts ...Option) *Curve {
	c, err := New(points, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Flat returns a single-point curve: the same rate at every tenor.
func Flat(rate float64, opts ...Option) *Curve {
	return MustNew([]Point{{Tenor: 1, Rate: rate}}, opts...)
}

// Len returns the number of observed points.
func (c *Curve) Len() int { return len(c.tenors) }

// Compounding returns the periods per year used by DF (0 = continuous).
func (c *Curve) Compounding() int { return c.compounding }

// Points returns a copy of the observed points in tenor order.
func (c *Curve) Points() []Point {
	out := make([]Point, len(c.tenors))
	for i := range c.tenors {
		out[i] = Point{Tenor: c.tenors[i], Rate: c.rates[i]}
	}
	return out
}

// RateAt returns the zero rate at tenor (years).
func (c *Curve) RateAt(tenor float64) (float64, error) {
	if len(c.tenors) == 0 {
		return 0, ErrEmpty
	}
	return interpolate(c.tenors, c.rates, tenor), nil
}

// RateOn returns the zero rate for a calendar date measured from valuation.
func (c *Curve) RateOn(valuation, date time.Time) (float64, error) {
	return c.RateAt(utils.YearFraction(valuation, date))
}

// DF returns the discount factor for date seen from valuation. Dates on or before the
// valuation date discount at 1.
func (c *Curve) DF(valuation, date time.Time) (float64, error) {
	return c.DFAt(utils.YearFraction(valuation, date))
}

// DFAt returns the discount factor at tenor t (years).
func (c *Curve) DFAt(t float64) (float64, error) {
	if len(c.tenors) == 0 {
		return 0, ErrEmpty
	}
	if t <= 0 {
		return 1.0, nil
	}
	r := interpolate(c.tenors, c.rates, t)
	return discount(r, t, c.compounding)
}

func discount(r, t float64, m int) (float64, error) {
	if m == Continuous {
		return math.Exp(-r * t), nil
	}
	base := 1 + r/float64(m)
	if base <= 0 {
		return 0, fmt.Errorf("DF: rate %g with %d periods/year: %w", r, m, ErrInvalidRate)
	}
	return math.Pow(base, -float64(m)*t), nil
}

// With returns a copy with the point at tenor added, or replaced if present.
func (c *Curve) With(tenor, rate float64) (*Curve, error) {
	points := c.Points()
	replaced := false
	for i := range points {
		if points[i].Tenor == tenor {
			points[i].Rate = rate
			replaced = true
			break
		}
	}
	if !replaced {
		points = append(points, Point{Tenor: tenor, Rate: rate})
	}
	return New(points, WithCompounding(c.compounding))
}

// Shift returns a copy with every rate moved by bp basis points.
func (c *Curve) Shift(bp float64) *Curve {
	return c.Apply(Shock{ParallelBP: bp})
}

// Apply returns a copy with shock.DeltaAt(tenor) added to each point's rate.
func (c *Curve) Apply(shock Shock) *Curve {
	out := &Curve{
		tenors:      make([]float64, len(c.tenors)),
		rates:       make([]float64, len(c.rates)),
		compounding: c.compounding,
	}
	copy(out.tenors, c.tenors)
	for i, t := range c.tenors {
		out.rates[i] = c.rates[i] + shock.DeltaAt(t)
	}
	return out
}
