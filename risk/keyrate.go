package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
)

// KeyRateDuration is the price sensitivity to a bump localized at one tenor.
type KeyRateDuration struct {
	Tenor    float64 `json:"tenor"`
	Duration float64 `json:"duration"`
}

// DefaultKeyTenors are the pillars reported when the caller supplies none.
var DefaultKeyTenors = []float64{0.25, 0.5, 1, 2, 3, 5, 7, 10, 20, 30}

// KeyRateDurations bumps the curve by bumpBP at one key tenor at a time, tapering
// linearly to zero at the neighbouring key tenors, and returns −ΔP/(Δr·P) per tenor.
// The bumps add up to a parallel shift, so the durations sum to the effective duration.
// bumpBP <= 0 uses Config.KeyRateBumpBP.
func KeyRateDurations(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time, tenors []float64, bumpBP float64) ([]KeyRateDuration, error) {
	if len(tenors) == 0 {
		tenors = DefaultKeyTenors
	}
	if bumpBP <= 0 {
		bumpBP = GetConfig().KeyRateBumpBP
	}
	keys := append([]float64(nil), tenors...)
	sort.Float64s(keys)
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			return nil, fmt.Errorf("KeyRateDurations: duplicate key tenor %g", keys[i])
		}
	}

	// Pin every key tenor as a pillar at its current rate so a localized bump does not
	// leak past the neighbouring keys.
	base := crv
	for _, k := range keys {
		r, err := base.RateAt(k)
		if err != nil {
			return nil, fmt.Errorf("KeyRateDurations: %w", err)
		}
		if base, err = base.With(k, r); err != nil {
			return nil, fmt.Errorf("KeyRateDurations: %w", err)
		}
	}

	pv, err := PresentValue(cfs, base, valuation)
	if err != nil {
		return nil, err
	}
	out := make([]KeyRateDuration, 0, len(keys))
	for _, k := range keys {
		if pv == 0 {
			out = append(out, KeyRateDuration{Tenor: k})
			continue
		}
		profile := make(map[float64]float64, len(keys))
		for _, other := range keys {
			profile[other] = 0
		}
		profile[k] = bumpBP

		bumped, err := PresentValue(cfs, base.Apply(curve.Shock{TenorBP: profile}), valuation)
		if err != nil {
			return nil, fmt.Errorf("KeyRateDurations: tenor %g: %w", k, err)
		}
		out = append(out, KeyRateDuration{
			Tenor:    k,
			Duration: -(bumped - pv) / (bumpBP * bp * pv),
		})
	}
	return out, nil
}
