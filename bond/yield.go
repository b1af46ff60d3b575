package bond

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/bondrisk/utils"
)

// YieldResult is the output of YieldToMaturity.
type YieldResult struct {
	// Yield is decimal (0.05 = 5%), compounded Compounding times per year (0 = continuous).
	Yield       float64 `json:"yield"`
	Compounding int     `json:"compounding"`
	// Iterations is the number of solver steps taken, Newton and bisection combined.
	Iterations int `json:"iterations"`
}

// YieldToMaturity solves for the flat yield y such that the flows after valuation,
// discounted at (1+y/m)^(-m·t) with t in ACT/365F years, sum to dirtyPrice.
//
// The solver uses Newton-Raphson with analytic first derivative and falls back to
// bisection on [yieldFloor, yieldCeiling] when Newton stalls.
func YieldToMaturity(cfs []Cashflow, valuation time.Time, dirtyPrice float64, compounding int) (YieldResult, error) {
	if !(dirtyPrice > 0) {
		return YieldResult{}, fmt.Errorf("YieldToMaturity: price must be positive, got %g", dirtyPrice)
	}
	if compounding < 0 {
		return YieldResult{}, fmt.Errorf("YieldToMaturity: compounding must be >= 0, got %d", compounding)
	}

	times := make([]float64, 0, len(cfs))
	amounts := make([]float64, 0, len(cfs))
	for _, cf := range cfs {
		if !cf.Date.After(valuation) {
			continue
		}
		times = append(times, utils.YearFraction(valuation, cf.Date))
		amounts = append(amounts, cf.Amount())
	}
	if len(times) == 0 {
		return YieldResult{}, fmt.Errorf("YieldToMaturity: no cash flows after %s", valuation.Format(utils.DateLayout))
	}

	y, iters, err := solveYield(dirtyPrice, times, amounts, compounding)
	if err != nil {
		return YieldResult{}, err
	}
	return YieldResult{Yield: y, Compounding: compounding, Iterations: iters}, nil
}

// ---------------------------------------------------------------------------
// Newton-Raphson solver (unexported)
// ---------------------------------------------------------------------------

const (
	yieldTolerance = 1e-10
	yieldMaxIter   = 100
	yieldFloor     = -0.05
	yieldCeiling   = 0.50
)

// solveYield finds y such that priceAndDeriv(y) == target.
func solveYield(target float64, times, amounts []float64, m int) (float64, int, error) {
	// Initial guess: mid-range (5 %).
	y := clamp(0.05, yieldFloor, yieldCeiling)

	for iter := 0; iter < yieldMaxIter; iter++ {
		price, dPdy := priceAndDeriv(y, times, amounts, m)
		f := price - target

		if math.Abs(f) < yieldTolerance*target {
			return y, iter + 1, nil
		}
		if math.Abs(dPdy) < 1e-15 {
			break
		}
		y = clamp(y-f/dPdy, yieldFloor, yieldCeiling)
	}

	return bisectYield(target, times, amounts, m, yieldMaxIter)
}

// bisectYield brackets the root on [yieldFloor, yieldCeiling]. Price is decreasing in y
// for positive flows, so a root exists only if the target lies between the end prices.
func bisectYield(target float64, times, amounts []float64, m, spent int) (float64, int, error) {
	lo, hi := yieldFloor, yieldCeiling
	pLo, _ := priceAndDeriv(lo, times, amounts, m)
	pHi, _ := priceAndDeriv(hi, times, amounts, m)
	if (pLo-target)*(pHi-target) > 0 {
		return 0, spent, fmt.Errorf("YieldToMaturity: price %g outside [%g, %g] for yields in [%g, %g]",
			target, pHi, pLo, yieldFloor, yieldCeiling)
	}

	iter := 0
	for ; iter < 200; iter++ {
		mid := 0.5 * (lo + hi)
		pMid, _ := priceAndDeriv(mid, times, amounts, m)
		if math.Abs(pMid-target) < yieldTolerance*target || hi-lo < 1e-14 {
			return mid, spent + iter + 1, nil
		}
		if (pMid-target)*(pLo-target) > 0 {
			lo, pLo = mid, pMid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi), spent + iter, nil
}

// priceAndDeriv returns (price, dPrice/dy):
//
//	price = Σ CF_k · (1+y/m)^(-m·t_k)        (m > 0)
//	price = Σ CF_k · exp(-y·t_k)             (m = 0)
//	dP/dy = Σ −t_k · CF_k · (1+y/m)^(-m·t_k−1)
func priceAndDeriv(y float64, times, amounts []float64, m int) (float64, float64) {
	var price, deriv float64
	for i, t := range times {
		amt := amounts[i]
		if m == 0 {
			disc := math.Exp(-y * t)
			price += amt * disc
			deriv += -t * amt * disc
			continue
		}
		base := 1.0 + y/float64(m)
		disc := math.Pow(base, -float64(m)*t)
		price += amt * disc
		deriv += -t * amt * disc / base
	}
	return price, deriv
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
