package marketdata_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/marketdata"
	"github.com/meenmo/bondrisk/risk"
	"github.com/meenmo/bondrisk/utils"
)

func openStore(t *testing.T) *marketdata.Store {
	t.Helper()
	dsn := os.Getenv("BONDRISK_TEST_DSN")
	if dsn == "" {
		t.Skip("BONDRISK_TEST_DSN not set")
	}
	ctx := context.Background()
	store, err := marketdata.Open(ctx, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	recs, err := marketdata.ReadInstruments(strings.NewReader(instrumentsCSV))
	require.NoError(t, err)
	require.NoError(t, store.SaveInstruments(ctx, recs))

	got, err := store.LoadInstruments(ctx, "T-2027", "B-2026")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B-2026", got[0].ContractID)
	assert.Equal(t, "zero", got[0].Type)
	assert.Nil(t, got[0].ParValue)
	assert.Nil(t, got[0].PaymentFrequency)
	assert.Equal(t, "T-2027", got[1].ContractID)
	assert.Equal(t, 0.05, got[1].CouponRate)
	require.NotNil(t, got[1].PaymentFrequency)
	assert.Equal(t, 2, *got[1].PaymentFrequency)

	b, err := got[1].Build()
	require.NoError(t, err)
	cfs := b.Cashflows(nil)
	require.NoError(t, store.SaveCashflows(ctx, "T-2027", cfs))
	loaded, err := store.LoadCashflows(ctx, "T-2027")
	require.NoError(t, err)
	assert.Equal(t, cfs, loaded)

	curveDate := utils.Date(2025, 1, 15)
	points := []curve.Point{{Tenor: 1, Rate: 0.04}, {Tenor: 5, Rate: 0.045}}
	require.NoError(t, store.SaveCurve(ctx, curveDate, points))
	asOf, pts, err := store.LoadCurve(ctx, utils.Date(2025, 1, 20))
	require.NoError(t, err)
	assert.True(t, asOf.Equal(curveDate))
	assert.Equal(t, points, pts)

	_, _, err = store.LoadCurve(ctx, utils.Date(1990, 1, 1))
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	m, err := risk.Compute(b, nil, curve.MustNew(points), curveDate)
	require.NoError(t, err)
	require.NoError(t, store.SaveMetrics(ctx, curveDate, "T-2027", m))
}
