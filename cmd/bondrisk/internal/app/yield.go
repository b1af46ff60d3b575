package app

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	md "github.com/nao1215/markdown"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/report"
)

type yieldTask struct {
	TaskID     string  `json:"task_id,omitempty"`
	ContractID string  `json:"contract_id"`
	PricePct   float64 `json:"price_pct"`
	// Compounding is periods per year; nil uses the bond's coupon frequency.
	Compounding *int `json:"compounding,omitempty"`
}

type yieldOutput struct {
	TaskID      string  `json:"task_id,omitempty"`
	ContractID  string  `json:"contract_id"`
	PricePct    float64 `json:"price_pct"`
	Yield       float64 `json:"yield"`
	Compounding int     `json:"compounding"`
	Iterations  int     `json:"iterations"`
	Error       string  `json:"error,omitempty"`
}

type yieldCmd struct {
	app         *App
	tasks       string
	id          string
	price       float64
	compounding int
}

func (*yieldCmd) Name() string     { return "yield" }
func (*yieldCmd) Synopsis() string { return "solve yield to maturity from a price" }
func (*yieldCmd) Usage() string {
	return `bondrisk [book flags] yield -id <id> -price <pct of par> [-compounding <m>]
bondrisk [book flags] yield -tasks <path|->

  Solves the flat yield that discounts the remaining cash flows to the given
  dirty price (percent of par). Task files hold one object or an array of
  {"task_id", "contract_id", "price_pct", "compounding"}. Failed tasks carry an
  error and make the command exit 1.
`
}

func (c *yieldCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tasks, "tasks", "", `JSON task file; "-" reads stdin`)
	f.StringVar(&c.id, "id", "", "contract id")
	f.Float64Var(&c.price, "price", 0, "dirty price as percent of par")
	f.IntVar(&c.compounding, "compounding", -1, "periods per year, 0 continuous (default: coupon frequency)")
}

func (c *yieldCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a := c.app
	tasks, isArray, err := c.readTasks()
	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	e, b, status := a.setup(ctx)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer e.logger.Sync()

	hadError := false
	outputs := make([]yieldOutput, 0, len(tasks))
	for _, t := range tasks {
		out, err := solve(b, t)
		if err != nil {
			hadError = true
			out = yieldOutput{TaskID: t.TaskID, ContractID: t.ContractID, PricePct: t.PricePct, Error: err.Error()}
		}
		outputs = append(outputs, out)
	}

	var v any = outputs
	if !isArray {
		v = outputs[0]
	}
	if err := a.output(e, v, func() string { return yieldMarkdown(outputs) }, nil); err != nil {
		return a.fail("%v", err)
	}
	if hadError {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *yieldCmd) readTasks() ([]yieldTask, bool, error) {
	if c.tasks == "" {
		if c.id == "" || !(c.price > 0) {
			return nil, false, fmt.Errorf("need -id and -price, or -tasks")
		}
		t := yieldTask{ContractID: c.id, PricePct: c.price}
		if c.compounding >= 0 {
			m := c.compounding
			t.Compounding = &m
		}
		return []yieldTask{t}, false, nil
	}

	var raw []byte
	var err error
	if c.tasks == "-" {
		raw, err = io.ReadAll(c.app.Stdin)
	} else {
		raw, err = os.ReadFile(c.tasks)
	}
	if err != nil {
		return nil, false, fmt.Errorf("read tasks: %w", err)
	}
	return parseTasks(raw)
}

func parseTasks(raw []byte) ([]yieldTask, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var tasks []yieldTask
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, true, err
		}
		if len(tasks) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return tasks, true, nil
	}
	var task yieldTask
	if err := json.Unmarshal(trimmed, &task); err != nil {
		return nil, false, err
	}
	return []yieldTask{task}, false, nil
}

func solve(b *book, t yieldTask) (yieldOutput, error) {
	pos, ok := b.portfolio.Get(t.ContractID)
	if !ok {
		return yieldOutput{}, fmt.Errorf("unknown contract %q", t.ContractID)
	}
	terms := pos.Bond.Terms()
	m := terms.Frequency
	if t.Compounding != nil {
		m = *t.Compounding
	}
	out := yieldOutput{TaskID: t.TaskID, ContractID: t.ContractID, PricePct: t.PricePct, Compounding: m}

	// zero coupons with annual compounding have a closed form
	if z, ok := pos.Bond.(*bond.ZeroCoupon); ok && (t.Compounding == nil || m == 1) {
		y, err := z.YieldToMaturity(b.valuation, t.PricePct)
		if err != nil {
			return yieldOutput{}, err
		}
		out.Yield, out.Compounding = y, 1
		return out, nil
	}

	cfs := pos.Bond.RemainingCashflows(b.valuation, pos.Forwards)
	res, err := bond.YieldToMaturity(cfs, b.valuation, t.PricePct/100*terms.ParValue, m)
	if err != nil {
		return yieldOutput{}, err
	}
	out.Yield, out.Iterations = res.Yield, res.Iterations
	return out, nil
}

func yieldMarkdown(outputs []yieldOutput) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Yield to Maturity")
	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight, md.AlignRight, md.AlignLeft},
		Header:    []string{"Instrument", "Price %", "Yield", "Compounding", "Error"},
	}
	for _, o := range outputs {
		y := report.Percent(o.Yield)
		if o.Error != "" {
			y = "-"
		}
		table.Rows = append(table.Rows, []string{
			o.ContractID,
			report.Number(o.PricePct, 3),
			y,
			compoundingLabel(o.Compounding),
			strings.TrimSpace(o.Error),
		})
	}
	doc.Table(table)
	return doc.String()
}

func compoundingLabel(m int) string {
	switch m {
	case 0:
		return "continuous"
	case 1:
		return "annual"
	case 2:
		return "semiannual"
	case 4:
		return "quarterly"
	case 12:
		return "monthly"
	}
	return fmt.Sprintf("%d/yr", m)
}
