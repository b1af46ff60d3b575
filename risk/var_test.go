package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/risk"
)

func TestParametricVaR_IncreasesWithConfidence(t *testing.T) {
	t.Parallel()

	prev := -1.0
	for _, c := range []float64{0.5, 0.9, 0.95, 0.99, 0.999} {
		opt := risk.DefaultVaROptions
		opt.Confidence = c
		v, err := risk.ParametricVaR(1.836, 0.01, opt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Greater(t, v, prev, "confidence %g", c)
		prev = v
	}

	// 95%, 10 days, 1% vol: 1.836 · 0.01·√(10/252) · 1.6449
	v, err := risk.ParametricVaR(1.836, 0.01, risk.DefaultVaROptions)
	require.NoError(t, err)
	assert.InDelta(t, 1.836*0.01*0.199205*1.644854, v, 1e-5)

	_, err = risk.ParametricVaR(1.836, 0.01, risk.VaROptions{Confidence: 1, HorizonDays: 10})
	assert.Error(t, err)
	_, err = risk.ParametricVaR(1.836, -0.01, risk.DefaultVaROptions)
	assert.Error(t, err)
}

func TestHistoricalVaR(t *testing.T) {
	t.Parallel()

	cfs := twoYearBond(t).Cashflows(nil)
	crv := curve.Flat(0.05)
	changes := []float64{-0.0010, -0.0005, 0.0, 0.0003, 0.0005, 0.0008, 0.0010, 0.0012, 0.0015, 0.0020}

	prev := -1.0
	for _, c := range []float64{0.5, 0.8, 0.9} {
		opt := risk.DefaultVaROptions
		opt.Confidence = c
		v, err := risk.HistoricalVaR(cfs, crv, valuation, changes, opt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.GreaterOrEqual(t, v, prev, "confidence %g", c)
		prev = v
	}
	assert.Positive(t, prev)

	// rates only fall: prices only rise, nothing to lose
	v, err := risk.HistoricalVaR(cfs, crv, valuation, []float64{-0.001, -0.002}, risk.DefaultVaROptions)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = risk.HistoricalVaR(cfs, crv, valuation, nil, risk.DefaultVaROptions)
	assert.Error(t, err)
}

func TestMonteCarlo_ShortfallExceedsVaR(t *testing.T) {
	t.Parallel()

	cfs := twoYearBond(t).Cashflows(nil)
	crv := curve.Flat(0.05)
	opt := risk.DefaultVaROptions
	opt.Simulations = 2000

	v, err := risk.MonteCarloVaR(cfs, crv, valuation, 0.01, opt)
	require.NoError(t, err)
	es, err := risk.ExpectedShortfall(cfs, crv, valuation, 0.01, opt)
	require.NoError(t, err)

	assert.Positive(t, v)
	assert.GreaterOrEqual(t, es, v)

	// same seed, same answer
	again, err := risk.MonteCarloVaR(cfs, crv, valuation, 0.01, opt)
	require.NoError(t, err)
	assert.Equal(t, v, again)

	// close to the duration-normal approximation
	param, err := risk.ParametricVaR(1.836, 0.01, opt)
	require.NoError(t, err)
	assert.InEpsilon(t, param, v, 0.15)
}

func TestMonteCarlo_NoRemainingValue(t *testing.T) {
	t.Parallel()

	cfs := twoYearBond(t).Cashflows(nil)
	_, err := risk.MonteCarloVaR(cfs, curve.Flat(0.05), cfs[len(cfs)-1].Date, 0.01, risk.DefaultVaROptions)
	assert.Error(t, err)
}
