// Package app implements the bondrisk subcommands.
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/config"
	"github.com/meenmo/bondrisk/report"
)

// App holds the flags shared by every subcommand and the output streams.
type App struct {
	ConfigPath     string
	Input          string
	InstrumentsCSV string
	CurveCSV       string
	Date           string
	DSN            string
	Format         string
	Currency       string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func New() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// SetFlags registers the top-level flags on fs.
func (a *App) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&a.ConfigPath, "config", "", "YAML config file; BONDRISK_* variables override it")
	fs.StringVar(&a.Input, "input", "", `JSON book (valuation date, curve, instruments, forwards); "-" reads stdin`)
	fs.StringVar(&a.InstrumentsCSV, "instruments", "", "instrument CSV, used with -curve instead of -input")
	fs.StringVar(&a.CurveCSV, "curve", "", "curve CSV (tenor, rate and optional date columns)")
	fs.StringVar(&a.Date, "date", "", "valuation date, YYYY-MM-DD or MM/DD/YYYY (default: book date or today)")
	fs.StringVar(&a.DSN, "dsn", "", "Postgres DSN to load instruments and curve from")
	fs.StringVar(&a.Format, "format", "", "output format: json, markdown or csv (default from config)")
	fs.StringVar(&a.Currency, "currency", "", "ISO currency for report amounts (default from config)")
}

// Register adds every subcommand to c.
func (a *App) Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&cashflowsCmd{app: a}, "analytics")
	c.Register(&riskCmd{app: a}, "analytics")
	c.Register(&yieldCmd{app: a}, "analytics")
	c.Register(&stressCmd{app: a}, "stress")
	c.Register(&scenariosCmd{app: a}, "stress")
	c.Register(&importCmd{app: a}, "data")
}

// env is the per-invocation runtime: resolved config, logger and output settings.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	format string
	money  *report.Formatter
}

func (a *App) env() (*env, error) {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	if a.Format != "" {
		cfg.Report.Format = a.Format
	}
	if a.Currency != "" {
		cfg.Report.Currency = a.Currency
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Apply()

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	money, err := report.NewFormatter(cfg.Report.Currency)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(cfg.Report.Format)
	if format == "md" {
		format = "markdown"
	}
	return &env{cfg: cfg, logger: logger, format: format, money: money}, nil
}

// output writes v in the selected format. csvFn may be nil when a command has no CSV form.
func (a *App) output(e *env, v any, mdFn func() string, csvFn func(io.Writer) error) error {
	switch e.format {
	case "markdown":
		_, err := fmt.Fprintln(a.Stdout, mdFn())
		return err
	case "csv":
		if csvFn == nil {
			return fmt.Errorf("csv output is not available for this command")
		}
		return csvFn(a.Stdout)
	default:
		return report.WriteJSON(a.Stdout, v)
	}
}

func (a *App) fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// setup resolves the environment and loads the book, reporting failures on Stderr.
func (a *App) setup(ctx context.Context) (*env, *book, subcommands.ExitStatus) {
	e, err := a.env()
	if err != nil {
		return nil, nil, a.fail("config: %v", err)
	}
	b, err := a.loadBook(ctx, e)
	if err != nil {
		_ = e.logger.Sync()
		return nil, nil, a.fail("load book: %v", err)
	}
	return e, b, subcommands.ExitSuccess
}
