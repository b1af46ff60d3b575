package bond_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/utils"
)

func priceAt(cfs []bond.Cashflow, valuationYear int, y float64, m int) float64 {
	val := utils.Date(valuationYear, 1, 15)
	var p float64
	for _, cf := range cfs {
		t := utils.YearFraction(val, cf.Date)
		if m == 0 {
			p += cf.Amount() * math.Exp(-y*t)
			continue
		}
		p += cf.Amount() * math.Pow(1+y/float64(m), -float64(m)*t)
	}
	return p
}

func TestYieldToMaturity_RoundTrip(t *testing.T) {
	t.Parallel()

	b, err := bond.NewFixedRate(terms("FIX10Y", utils.Date(2025, 1, 15), utils.Date(2035, 1, 15), 2), 0.045)
	require.NoError(t, err)
	cfs := b.Cashflows(nil)
	val := utils.Date(2025, 1, 15)

	for _, m := range []int{0, 1, 2} {
		for _, y := range []float64{-0.01, 0.0, 0.03, 0.045, 0.12} {
			price := priceAt(cfs, 2025, y, m)
			res, err := bond.YieldToMaturity(cfs, val, price, m)
			require.NoError(t, err, "m=%d y=%g", m, y)
			assert.InDelta(t, y, res.Yield, 1e-8, "m=%d y=%g", m, y)
			assert.Equal(t, m, res.Compounding)
			assert.Positive(t, res.Iterations)
		}
	}
}

func TestYieldToMaturity_Errors(t *testing.T) {
	t.Parallel()

	b, err := bond.NewFixedRate(terms("FIX", utils.Date(2025, 1, 15), utils.Date(2027, 1, 15), 2), 0.05)
	require.NoError(t, err)
	cfs := b.Cashflows(nil)

	_, err = bond.YieldToMaturity(cfs, utils.Date(2025, 1, 15), 0, 1)
	assert.Error(t, err)
	_, err = bond.YieldToMaturity(cfs, utils.Date(2025, 1, 15), 1000, -1)
	assert.Error(t, err)
	_, err = bond.YieldToMaturity(cfs, utils.Date(2028, 1, 1), 1000, 1)
	assert.Error(t, err, "no remaining flows")
	_, err = bond.YieldToMaturity(cfs, utils.Date(2025, 1, 15), 1e6, 1)
	assert.Error(t, err, "price implies a yield below the solver floor")
}

func TestZeroCoupon_YieldToMaturity(t *testing.T) {
	t.Parallel()

	z, err := bond.NewZeroCoupon(terms("ZC", utils.Date(2025, 1, 15), utils.Date(2027, 1, 15), 0))
	require.NoError(t, err)

	y, err := z.YieldToMaturity(utils.Date(2025, 1, 15), 100/(1.05*1.05))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, y, 1e-12)

	_, err = z.YieldToMaturity(utils.Date(2025, 1, 15), 0)
	assert.Error(t, err)
	_, err = z.YieldToMaturity(utils.Date(2027, 1, 15), 99)
	assert.Error(t, err, "matured")
}
