package app_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/bondrisk/cmd/bondrisk/internal/app"
)

const book = "testdata/book.json"

// run executes one command line against a fresh commander and returns the exit
// status with everything written to stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (subcommands.ExitStatus, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	fs := flag.NewFlagSet("bondrisk", flag.ContinueOnError)
	fs.SetOutput(&stderr)
	a := app.New()
	a.Stdin = strings.NewReader(stdin)
	a.Stdout = &stdout
	a.Stderr = &stderr
	a.SetFlags(fs)

	c := subcommands.NewCommander(fs, "bondrisk")
	c.Output = &stdout
	c.Error = &stderr
	a.Register(c)

	require.NoError(t, fs.Parse(args))
	status := c.Execute(context.Background())
	return status, stdout.String(), stderr.String()
}

type riskOutput struct {
	Valuation struct {
		Results []struct {
			ID      string `json:"contract_id"`
			Metrics struct {
				Price            float64 `json:"price"`
				PricePct         float64 `json:"price_pct"`
				ModifiedDuration float64 `json:"modified_duration"`
			} `json:"metrics"`
			MarketValue float64 `json:"market_value"`
		} `json:"results"`
		Failures   []string `json:"failures"`
		TotalValue float64  `json:"total_value"`
		Partial    bool     `json:"partial"`
	} `json:"valuation"`
	KeyRates map[string][]json.RawMessage `json:"key_rates"`
	VaR      []struct {
		ID     string  `json:"contract_id"`
		Method string  `json:"method"`
		VaR    float64 `json:"var"`
	} `json:"var"`
}

func TestScenarios(t *testing.T) {
	status, out, _ := run(t, "", "scenarios")
	require.Equal(t, subcommands.ExitSuccess, status)

	var rows []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
		assert.NotEmpty(t, r.Description, r.Name)
	}
	assert.Contains(t, names, "parallel_up_100bp")
	assert.Contains(t, names, "financial_crisis_2008")

	status, out, _ = run(t, "", "-format", "markdown", "scenarios")
	require.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out, "steepening_50bp")
}

func TestCashflows(t *testing.T) {
	status, out, stderr := run(t, "", "-input", book, "-format", "markdown", "cashflows", "-id", "T-2Y")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)
	assert.Contains(t, out, "T-2Y")
	assert.Contains(t, out, "2027-01-15")
	assert.Contains(t, out, "$1,025.00")
	assert.NotContains(t, out, "Z-1Y")

	status, out, stderr = run(t, "", "-input", book, "-format", "csv", "cashflows")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	// header, 4 semiannual flows, 1 zero redemption, 12 quarterly floating flows
	assert.Len(t, rows, 1+4+1+12)
	assert.Equal(t, []string{"contract_id", "date", "coupon", "principal", "total"}, rows[0])
}

func TestCashflowsUnknownID(t *testing.T) {
	status, _, stderr := run(t, "", "-input", book, "cashflows", "-id", "NOPE")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, stderr, "NOPE")
}

func TestRisk(t *testing.T) {
	status, out, stderr := run(t, "", "-input", book, "risk", "-krd", "-vol", "0.01")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)

	var got riskOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Valuation.Results, 3)
	assert.Empty(t, got.Valuation.Failures)
	assert.False(t, got.Valuation.Partial)

	var total float64
	for _, r := range got.Valuation.Results {
		total += r.MarketValue
		if r.ID == "Z-1Y" {
			assert.InDelta(t, 1000/1.05, r.Metrics.Price, 1e-6)
			assert.InDelta(t, 100/1.05, r.Metrics.PricePct, 1e-6)
		}
		assert.Greater(t, r.Metrics.ModifiedDuration, 0.0, r.ID)
	}
	assert.InDelta(t, total, got.Valuation.TotalValue, 1e-6)

	assert.Len(t, got.KeyRates, 3)
	// parametric and Monte Carlo for each position
	assert.Len(t, got.VaR, 6)
	for _, v := range got.VaR {
		assert.Greater(t, v.VaR, 0.0, v.ID+" "+v.Method)
	}
}

func TestRiskFromCSV(t *testing.T) {
	status, out, stderr := run(t, "",
		"-instruments", "testdata/instruments.csv", "-curve", "testdata/curve.csv", "-format", "csv",
		"risk", "-history", "testdata/history.csv")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "contract_id", rows[0][0])
	assert.Equal(t, "T-2Y", rows[1][0])
	assert.Equal(t, "Z-1Y", rows[2][0])
	assert.Empty(t, rows[1][len(rows[1])-1])
}

func TestRiskUsageErrors(t *testing.T) {
	status, _, stderr := run(t, "", "-input", book, "risk", "-save")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, stderr, "-dsn")

	status, _, stderr = run(t, "", "-input", book, "risk", "-krd", "-tenors", "1,two")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, stderr, "-tenors")
}

func TestStress(t *testing.T) {
	status, out, stderr := run(t, "", "-input", book, "-format", "csv",
		"stress", "-scenario", "parallel_up_100bp,steepening_50bp")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+2*3)
	for _, row := range rows[1:] {
		if row[0] == "parallel_up_100bp" {
			delta := row[5]
			assert.True(t, strings.HasPrefix(delta, "-"), "rates up should lose value for %s: %s", row[1], delta)
		}
		assert.Empty(t, row[len(row)-1])
	}

	status, out, stderr = run(t, "", "-input", book, "-format", "markdown", "stress", "-scenario", "parallel +75bp")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)
	assert.Contains(t, out, "Portfolio P&L")
}

func TestStressUnknownScenario(t *testing.T) {
	status, _, stderr := run(t, "", "-input", book, "stress", "-scenario", "meteor_strike")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, stderr, "meteor_strike")
}

func TestYield(t *testing.T) {
	status, out, stderr := run(t, "", "-input", book, "yield", "-id", "Z-1Y", "-price", "95.238095238095")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)

	var got struct {
		ContractID  string  `json:"contract_id"`
		Yield       float64 `json:"yield"`
		Compounding int     `json:"compounding"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Z-1Y", got.ContractID)
	assert.InDelta(t, 0.05, got.Yield, 1e-9)
	assert.Equal(t, 1, got.Compounding)
}

func TestYieldTasks(t *testing.T) {
	tasks := `[
		{"task_id": "a", "contract_id": "T-2Y", "price_pct": 100},
		{"task_id": "b", "contract_id": "MISSING", "price_pct": 99}
	]`
	status, out, _ := run(t, tasks, "-input", book, "yield", "-tasks", "-")
	assert.Equal(t, subcommands.ExitFailure, status)

	var got []struct {
		TaskID      string  `json:"task_id"`
		Yield       float64 `json:"yield"`
		Compounding int     `json:"compounding"`
		Error       string  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)

	// a 5% semiannual bullet priced at par yields its coupon
	assert.Equal(t, "a", got[0].TaskID)
	assert.Empty(t, got[0].Error)
	assert.Equal(t, 2, got[0].Compounding)
	assert.InDelta(t, 0.05, got[0].Yield, 1e-4)

	assert.Equal(t, "b", got[1].TaskID)
	assert.Contains(t, got[1].Error, "MISSING")
}

func TestYieldUsage(t *testing.T) {
	status, _, stderr := run(t, "", "-input", book, "yield")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, stderr, "-tasks")
}

func TestNoBook(t *testing.T) {
	status, _, stderr := run(t, "", "risk")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, stderr, "no book given")
}

func TestBadInput(t *testing.T) {
	status, _, stderr := run(t, `{"valuation_date": "2025-01-15", "bogus": 1}`, "-input", "-", "risk")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, stderr, "parse JSON")

	status, _, stderr = run(t, "", "-input", book, "-format", "xml", "risk")
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, stderr, "config")
}

func TestImportRequiresTarget(t *testing.T) {
	status, _, stderr := run(t, "", "-input", book, "import")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Contains(t, stderr, "-to")
}

const mixedBook = `{
  "valuation_date": "2025-01-15",
  "curve": {"compounding": 1, "quotes": [{"tenor": "1Y", "rate": 0.05}, {"tenor": "5Y", "rate": 0.05}]},
  "instruments": [
    {"contract_id": "GOOD", "issue_date": "2025-01-15", "maturity_date": "2027-01-15", "coupon_rate": 0.05},
    {"contract_id": "BAD", "issue_date": "2027-01-15", "maturity_date": "2025-01-15", "coupon_rate": 0.05},
    {"contract_id": "NOPAR", "issue_date": "2025-01-15", "maturity_date": "2027-01-15", "par_value": 0}
  ]
}`

func TestInvalidInstrumentsAreReportedNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	require.NoError(t, os.WriteFile(path, []byte(mixedBook), 0o600))

	status, out, stderr := run(t, "", "-input", path, "stress", "-scenario", "parallel_up_100bp")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)

	var rep struct {
		Scenarios []struct {
			Instruments []struct {
				ID string `json:"contract_id"`
			} `json:"instruments"`
			Failures []string `json:"failures"`
			Partial  bool     `json:"partial"`
		} `json:"scenarios"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Scenarios, 1)
	s := rep.Scenarios[0]
	assert.True(t, s.Partial)
	require.Len(t, s.Instruments, 1)
	assert.Equal(t, "GOOD", s.Instruments[0].ID)
	require.Len(t, s.Failures, 2)
	assert.Contains(t, s.Failures[0], "BAD")
	assert.Contains(t, s.Failures[0], "maturity_date")
	assert.Contains(t, s.Failures[1], "NOPAR")
	assert.Contains(t, s.Failures[1], "par_value")

	status, out, stderr = run(t, "", "-input", path, "-format", "csv", "risk")
	require.Equal(t, subcommands.ExitSuccess, status, stderr)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "GOOD", rows[1][0])
	assert.Empty(t, rows[1][len(rows[1])-1])
	assert.Equal(t, "BAD", rows[2][0])
	assert.Contains(t, rows[2][len(rows[2])-1], "maturity_date")
	assert.Equal(t, "NOPAR", rows[3][0])
}
