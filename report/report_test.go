package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/report"
	"github.com/meenmo/bondrisk/risk"
	"github.com/meenmo/bondrisk/stress"
	"github.com/meenmo/bondrisk/utils"
)

func usd(t *testing.T) *report.Formatter {
	t.Helper()
	f, err := report.NewFormatter("usd")
	require.NoError(t, err)
	return f
}

func TestFormatter(t *testing.T) {
	t.Parallel()
	f := usd(t)

	assert.Equal(t, "USD", f.Currency())
	assert.Equal(t, "$1,001.16", f.Amount(1001.1575))
	assert.Equal(t, "-$12.50", f.Amount(-12.5))
	assert.Equal(t, "$0.00", f.Amount(0))
	assert.Equal(t, "+$3.00", f.Signed(3))
	assert.Equal(t, "-$3.00", f.Signed(-3))
	assert.Equal(t, "-", f.Signed(0.001))
	assert.Equal(t, "21.85", f.Plain(1000.0*0.0437/2))

	jpy, err := report.NewFormatter("JPY")
	require.NoError(t, err)
	assert.Equal(t, "¥1,002", jpy.Amount(1001.6))

	_, err = report.NewFormatter("XXY")
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.23%", report.Percent(0.0123))
	assert.Equal(t, "+0.50%", report.SignedPercent(0.005))
	assert.Equal(t, "-0.50%", report.SignedPercent(-0.005))
	assert.Equal(t, "0.00%", report.SignedPercent(0))
	assert.Equal(t, "1.9279", report.Number(1.92785, 4))
}

func schedule(t *testing.T) report.Schedule {
	t.Helper()
	b, err := bond.NewFixedRate(bond.Terms{
		ContractID:   "T-2Y",
		IssueDate:    utils.Date(2025, 1, 15),
		MaturityDate: utils.Date(2027, 1, 15),
		ParValue:     1000,
		Frequency:    2,
	}, 0.05)
	require.NoError(t, err)
	return report.Schedule{ID: "T-2Y", Cashflows: b.Cashflows(nil)}
}

func TestCashflowsMarkdown(t *testing.T) {
	t.Parallel()

	s := schedule(t)
	coupon, principal := s.Total()
	assert.InDelta(t, 100, coupon, 1e-9)
	assert.InDelta(t, 1000, principal, 1e-9)

	out := report.CashflowsMarkdown([]report.Schedule{s, {ID: "OLD"}}, usd(t))
	assert.Contains(t, out, "# Cash Flows")
	assert.Contains(t, out, "## T-2Y")
	assert.Contains(t, out, "| 2025-07-15 | $25.00 | $0.00 | $25.00 |")
	assert.Contains(t, out, "| 2027-01-15 | $25.00 | $1,000.00 | $1,025.00 |")
	assert.Contains(t, out, "| **Total** | **$100.00** | **$1,000.00** | **$1,100.00** |")
	assert.Contains(t, out, "## OLD\nNo remaining cash flows.")
}

func valuation() *portfolio.Valuation {
	return &portfolio.Valuation{
		Results: []portfolio.Result{{
			ID:       "T-2Y",
			Quantity: 10,
			Metrics: risk.Metrics{
				Price: 1001.1575, PricePct: 100.11575, MacaulayDuration: 1.92785,
				ModifiedDuration: 1.83605, Convexity: 5.19192, DV01: 0.183792,
			},
			MarketValue: 10011.575,
		}},
		Failures:   []*portfolio.PricingError{{ID: "BAD", Err: curve.ErrInvalidRate}},
		TotalValue: 10011.575,
		Partial:    true,
	}
}

func TestRiskMarkdown(t *testing.T) {
	t.Parallel()

	r := &report.RiskReport{
		ValuationDate: utils.Date(2025, 1, 15),
		Valuation:     valuation(),
		KeyRates: map[string][]risk.KeyRateDuration{
			"T-2Y": {{Tenor: 1, Duration: 0.05}, {Tenor: 2, Duration: 1.78}},
		},
		VaR: []report.VaRResult{{ID: "T-2Y", Method: "parametric", Confidence: 0.95, HorizonDays: 10, VaR: 0.0123}},
	}
	out := report.RiskMarkdown(r, usd(t))

	assert.Contains(t, out, "# Risk Report 2025-01-15")
	assert.Contains(t, out, "| T-2Y | 10 | $1,001.16 | 100.116 | 1.9279 | 1.8361 | 5.1919 | 0.1838 |")
	assert.Contains(t, out, "**Market value:** $10,011.58")
	assert.Contains(t, out, "- **BAD**: "+curve.ErrInvalidRate.Error())
	assert.Contains(t, out, "| Instrument | 1.00Y | 2.00Y |")
	assert.Contains(t, out, "| T-2Y | parametric | 95.00% | 10d | 1.23% | - |")

	// failures come after the results table
	assert.Less(t, strings.Index(out, "| T-2Y | 10 |"), strings.Index(out, "Failed instruments"))
}

func stressReport() *stress.Report {
	return &stress.Report{
		ValuationDate: utils.Date(2025, 1, 15),
		BaselineValue: 2000,
		Scenarios: []stress.ScenarioResult{
			{
				Name: "parallel_up_100bp",
				Instruments: []stress.InstrumentResult{{
					ID: "T-2Y", Quantity: 2, Baseline: 1000, Stressed: 981.5, Delta: -18.5, DeltaPct: -1.85,
				}},
				PortfolioDelta: -37,
			},
			{
				Name:     "crisis_2008",
				Failures: []*portfolio.PricingError{{ID: "T-2Y", Err: errors.New("boom")}},
				Partial:  true,
			},
		},
	}
}

func TestStressMarkdown(t *testing.T) {
	t.Parallel()

	out := report.StressMarkdown(stressReport(), usd(t))
	assert.Contains(t, out, "**Baseline value:** $2,000.00")
	assert.Contains(t, out, "| parallel_up_100bp | -$37.00 | -1.85% | complete |")
	assert.Contains(t, out, "| crisis_2008 | - | 0.00% | partial (1 failed) |")
	assert.Contains(t, out, "| T-2Y | $1,000.00 | $981.50 | -$18.50 | -1.85% |")
	assert.Contains(t, out, "- **T-2Y**: boom")
}

func TestScenariosMarkdown(t *testing.T) {
	t.Parallel()

	out := report.ScenariosMarkdown(stress.Standard())
	assert.Contains(t, out, "| `parallel_up_100bp` |")
	assert.Contains(t, out, "| `financial_crisis_2008` |")
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteCashflowsCSV(&buf, []report.Schedule{schedule(t)}, usd(t)))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"T-2Y", "2027-01-15", "25.00", "1000.00", "1025.00"}, rows[4])

	buf.Reset()
	require.NoError(t, report.WriteRiskCSV(&buf, valuation()))
	rows, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1001.1575", rows[1][2])
	assert.Equal(t, "BAD", rows[2][0])
	assert.Equal(t, curve.ErrInvalidRate.Error(), rows[2][9])

	buf.Reset()
	require.NoError(t, report.WriteStressCSV(&buf, stressReport()))
	rows, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"parallel_up_100bp", "T-2Y", "2", "1000", "981.5", "-18.5", "-1.85", ""}, rows[1])
	assert.Equal(t, []string{"crisis_2008", "T-2Y", "", "", "", "", "", "boom"}, rows[2])
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf, stressReport()))

	var got struct {
		Scenarios []struct {
			Name     string   `json:"name"`
			Failures []string `json:"failures"`
		} `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Scenarios, 2)
	assert.Equal(t, []string{"price T-2Y: boom"}, got.Scenarios[1].Failures)
}
