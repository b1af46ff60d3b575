package portfolio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/risk"
	"github.com/meenmo/bondrisk/utils"
)

var valuation = utils.Date(2025, 1, 15)

type flatForwards float64

func (f flatForwards) RateOn(time.Time) (float64, bool) { return float64(f), true }

func fixed(t *testing.T, id string, years int, coupon float64) bond.Bond {
	t.Helper()
	b, err := bond.NewFixedRate(bond.Terms{
		ContractID:   id,
		IssueDate:    valuation,
		MaturityDate: utils.AddMonth(valuation, 12*years),
		ParValue:     1000,
		Frequency:    2,
	}, coupon)
	require.NoError(t, err)
	return b
}

func floating(t *testing.T, id string) bond.Bond {
	t.Helper()
	b, err := bond.NewFloatingRate(bond.Terms{
		ContractID:   id,
		IssueDate:    valuation,
		MaturityDate: utils.AddMonth(valuation, 36),
		ParValue:     1000,
		Frequency:    4,
	}, 0.005, "SOFR")
	require.NoError(t, err)
	return b
}

func TestAddGetRemove(t *testing.T) {
	t.Parallel()

	p := portfolio.New()
	require.NoError(t, p.Add(fixed(t, "A", 2, 0.05), portfolio.WithQuantity(10)))
	require.NoError(t, p.Add(fixed(t, "B", 5, 0.04)))
	require.NoError(t, p.Add(floating(t, "C"), portfolio.WithForwards(flatForwards(0.04))))

	err := p.Add(fixed(t, "A", 3, 0.03))
	assert.ErrorIs(t, err, portfolio.ErrDuplicate)
	assert.Error(t, p.Add(nil))

	assert.Equal(t, 3, p.Len())
	pos, ok := p.Get("A")
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.Quantity)
	pos, _ = p.Get("B")
	assert.Equal(t, 1.0, pos.Quantity, "default quantity")

	assert.True(t, p.Remove("A"))
	assert.False(t, p.Remove("A"))
	ids := []string{}
	for _, pos := range p.Positions() {
		ids = append(ids, pos.ID())
	}
	assert.Equal(t, []string{"B", "C"}, ids)
	_, ok = p.Get("C")
	assert.True(t, ok, "index rebuilt after removal")
}

func TestGetCashFlows(t *testing.T) {
	t.Parallel()

	p := portfolio.New()
	require.NoError(t, p.Add(fixed(t, "A", 2, 0.05)))
	require.NoError(t, p.Add(floating(t, "C"), portfolio.WithForwards(flatForwards(0.04))))

	all, err := p.GetCashFlows("A", time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	rem, err := p.GetCashFlows("A", utils.Date(2026, 2, 1))
	require.NoError(t, err)
	assert.Len(t, rem, 2)

	frn, err := p.GetCashFlows("C", time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 1000*0.045/4, frn[0].Coupon, 1e-12, "forwards come from the position")

	_, err = p.GetCashFlows("missing", time.Time{})
	assert.ErrorIs(t, err, portfolio.ErrNotFound)
}

func TestComputeRisk(t *testing.T) {
	t.Parallel()

	p := portfolio.New()
	b := fixed(t, "A", 2, 0.05)
	require.NoError(t, p.Add(b, portfolio.WithQuantity(3)))

	crv := curve.Flat(0.05)
	got, err := p.ComputeRisk("A", crv, valuation)
	require.NoError(t, err)
	want, err := risk.Compute(b, nil, crv, valuation)
	require.NoError(t, err)
	assert.Equal(t, want, got, "metrics are per unit")

	_, err = p.ComputeRisk("missing", crv, valuation)
	assert.ErrorIs(t, err, portfolio.ErrNotFound)

	empty, _ := curve.New(nil)
	_, err = p.ComputeRisk("A", empty, valuation)
	var perr *portfolio.PricingError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "A", perr.ID)
	assert.ErrorIs(t, err, curve.ErrEmpty)
}

// breaksLongEnd discounts normally up to a few years and is unusable near 30y.
func breaksLongEnd() *curve.Curve {
	return curve.MustNew([]curve.Point{
		{Tenor: 1, Rate: 0.05},
		{Tenor: 30, Rate: -1.5},
	})
}

func TestValuate(t *testing.T) {
	t.Parallel()

	p := portfolio.New(portfolio.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, p.Add(fixed(t, "A", 2, 0.05), portfolio.WithQuantity(2)))
	require.NoError(t, p.Add(fixed(t, "B", 5, 0.04), portfolio.WithQuantity(-1)))
	require.NoError(t, p.Add(floating(t, "C"), portfolio.WithForwards(flatForwards(0.04))))

	crv := curve.Flat(0.045)
	v, err := p.Valuate(context.Background(), crv, valuation, portfolio.WithWorkers(2))
	require.NoError(t, err)
	require.Len(t, v.Results, 3)
	assert.False(t, v.Partial)
	assert.Empty(t, v.Failures)

	var total float64
	for i, id := range []string{"A", "B", "C"} {
		r := v.Results[i]
		assert.Equal(t, id, r.ID)
		m, err := p.ComputeRisk(id, crv, valuation)
		require.NoError(t, err)
		assert.Equal(t, m, r.Metrics)
		assert.Equal(t, r.Quantity*m.Price, r.MarketValue)
		total += r.MarketValue
	}
	assert.InDelta(t, total, v.TotalValue, 1e-9)
}

func TestValuate_IsolatesFailures(t *testing.T) {
	t.Parallel()

	p := portfolio.New()
	require.NoError(t, p.Add(fixed(t, "SHORT", 2, 0.05)))
	require.NoError(t, p.Add(fixed(t, "LONG", 30, 0.05)))

	v, err := p.Valuate(context.Background(), breaksLongEnd(), valuation)
	require.NoError(t, err)
	assert.True(t, v.Partial)
	require.Len(t, v.Results, 1)
	assert.Equal(t, "SHORT", v.Results[0].ID)
	require.Len(t, v.Failures, 1)
	assert.Equal(t, "LONG", v.Failures[0].ID)
	assert.ErrorIs(t, v.Failures[0], curve.ErrInvalidRate)
	assert.Equal(t, v.Results[0].MarketValue, v.TotalValue)
}

func TestValuate_PriceOnly(t *testing.T) {
	t.Parallel()

	p := portfolio.New()
	require.NoError(t, p.Add(fixed(t, "A", 2, 0.05)))

	v, err := p.Valuate(context.Background(), curve.Flat(0.05), valuation, portfolio.PriceOnly())
	require.NoError(t, err)
	m := v.Results[0].Metrics
	assert.InDelta(t, 1001.16, m.Price, 0.01)
	assert.Zero(t, m.MacaulayDuration)
	assert.Zero(t, m.DV01)
}

func TestValuate_Cancelled(t *testing.T) {
	t.Parallel()

	p := portfolio.New()
	require.NoError(t, p.Add(fixed(t, "A", 2, 0.05)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Valuate(ctx, curve.Flat(0.05), valuation)
	assert.ErrorIs(t, err, context.Canceled)
}
