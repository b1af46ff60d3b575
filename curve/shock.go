package curve

import (
	"sort"
)

// bp converts basis points to a decimal rate.
const bp = 1e-4

// Bucket applies BP to tenors strictly below MaxTenor. MaxTenor == 0 matches every tenor
// and is used as the trailing open bucket.
type Bucket struct {
	MaxTenor float64 `json:"max_tenor"`
	BP       float64 `json:"bp"`
}

// Shock is a rate perturbation expressed in basis points. The parallel part, the first
// matching bucket and the per-tenor map add up. The zero value leaves a curve unchanged.
type Shock struct {
	ParallelBP float64             `json:"parallel_bp,omitempty"`
	Buckets    []Bucket            `json:"buckets,omitempty"`
	TenorBP    map[float64]float64 `json:"tenor_bp,omitempty"`
}

// IsZero reports whether the shock moves no rate.
func (s Shock) IsZero() bool {
	if s.ParallelBP != 0 {
		return false
	}
	for _, b := range s.Buckets {
		if b.BP != 0 {
			return false
		}
	}
	for _, v := range s.TenorBP {
		if v != 0 {
			return false
		}
	}
	return true
}

// DeltaAt returns the rate change at tenor as a decimal.
func (s Shock) DeltaAt(tenor float64) float64 {
	total := s.ParallelBP
	for _, b := range s.Buckets {
		if b.MaxTenor == 0 || tenor < b.MaxTenor {
			total += b.BP
			break
		}
	}
	if len(s.TenorBP) > 0 {
		xs := make([]float64, 0, len(s.TenorBP))
		for t := range s.TenorBP {
			xs = append(xs, t)
		}
		sort.Float64s(xs)
		ys := make([]float64, len(xs))
		for i, t := range xs {
			ys[i] = s.TenorBP[t]
		}
		total += interpolate(xs, ys, tenor)
	}
	return total * bp
}

// Twist pivots the curve around pivot (years): tenors below move by shortBP, the rest by
// longBP. Twist(2, 0, 50) steepens, Twist(2, 50, 0) flattens.
func Twist(pivot, shortBP, longBP float64) Shock {
	return Shock{Buckets: []Bucket{
		{MaxTenor: pivot, BP: shortBP},
		{MaxTenor: 0, BP: longBP},
	}}
}
