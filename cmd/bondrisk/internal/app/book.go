package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/marketdata"
	"github.com/meenmo/bondrisk/portfolio"
	"github.com/meenmo/bondrisk/utils"
)

// bookInput is the JSON document read by -input.
type bookInput struct {
	ValuationDate string                        `json:"valuation_date"`
	Curve         curveInput                    `json:"curve"`
	Instruments   []marketdata.InstrumentRecord `json:"instruments"`
	// Forwards maps contract id to dated reference rates for floating-rate bonds.
	Forwards map[string]map[string]float64 `json:"forwards,omitempty"`
}

type curveInput struct {
	// Compounding overrides curve.compounding from config when set.
	Compounding *int          `json:"compounding,omitempty"`
	Quotes      []curve.Quote `json:"quotes"`
}

// book is a loaded portfolio with its curve and valuation date. Instruments that could
// not be constructed are kept in failures and reported next to pricing failures.
type book struct {
	valuation time.Time
	curve     *curve.Curve
	portfolio *portfolio.Portfolio
	failures  []*portfolio.PricingError
}

func (a *App) loadBook(ctx context.Context, e *env) (*book, error) {
	var (
		in   bookInput
		asOf time.Time
		pts  []curve.Point
		err  error
	)
	switch {
	case a.DSN != "":
		in, pts, asOf, err = a.readStore(ctx, e)
	case a.Input != "":
		in, err = a.readJSON()
	case a.InstrumentsCSV != "" && a.CurveCSV != "":
		in, asOf, err = a.readCSV()
	default:
		return nil, fmt.Errorf("no book given: use -input, -instruments with -curve, or -dsn")
	}
	if err != nil {
		return nil, err
	}

	valuation, err := a.valuationDate(in.ValuationDate, asOf)
	if err != nil {
		return nil, err
	}

	m := e.cfg.Curve.Compounding
	if in.Curve.Compounding != nil {
		m = *in.Curve.Compounding
	}
	var crv *curve.Curve
	if pts != nil {
		crv, err = curve.New(pts, curve.WithCompounding(m))
	} else {
		crv, err = curve.FromQuotes(valuation, in.Curve.Quotes, curve.WithCompounding(m))
	}
	if err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}

	bk := &book{valuation: valuation, curve: crv, portfolio: portfolio.New(portfolio.WithLogger(e.logger))}
	for _, rec := range in.Instruments {
		if err := bk.add(rec, in.Forwards[rec.ContractID]); err != nil {
			e.logger.Warn("instrument skipped",
				zap.String("contract_id", rec.ContractID),
				zap.Error(err),
			)
			bk.failures = append(bk.failures, &portfolio.PricingError{ID: rec.ContractID, Err: err})
		}
	}

	e.logger.Debug("book loaded",
		zap.Time("valuation", valuation),
		zap.Int("instruments", bk.portfolio.Len()),
		zap.Int("failed", len(bk.failures)),
		zap.Int("pillars", crv.Len()),
	)
	return bk, nil
}

// add builds rec and adds it to the portfolio. fwd holds the book's dated forwards for
// rec, if any.
func (bk *book) add(rec marketdata.InstrumentRecord, fwd map[string]float64) error {
	b, err := rec.Build()
	if err != nil {
		return err
	}
	opts := []portfolio.PositionOption{}
	if rec.Quantity != 0 {
		opts = append(opts, portfolio.WithQuantity(rec.Quantity))
	}
	if b.Kind() == bond.KindFloating {
		f, err := forwardsFor(fwd, bk.curve, bk.valuation, b)
		if err != nil {
			return fmt.Errorf("forwards: %w", err)
		}
		opts = append(opts, portfolio.WithForwards(f))
	}
	return bk.portfolio.Add(b, opts...)
}

// withFailures puts the construction failures ahead of failures and reports whether
// the list is non-empty.
func (bk *book) withFailures(failures []*portfolio.PricingError) ([]*portfolio.PricingError, bool) {
	if len(bk.failures) == 0 {
		return failures, len(failures) > 0
	}
	out := make([]*portfolio.PricingError, 0, len(bk.failures)+len(failures))
	out = append(out, bk.failures...)
	out = append(out, failures...)
	return out, true
}

// forwardsFor uses the supplied rates when given, otherwise projects them off crv.
func forwardsFor(rates map[string]float64, crv *curve.Curve, valuation time.Time, b bond.Bond) (bond.ForwardRates, error) {
	if len(rates) > 0 {
		return marketdata.ParseForwardRates(rates)
	}
	return marketdata.ImpliedForwards(crv, valuation, b)
}

// valuationDate picks -date, then the book's own date, then the curve sheet's, then today.
func (a *App) valuationDate(bookDate string, sheetDate time.Time) (time.Time, error) {
	switch {
	case a.Date != "":
		return utils.ParseDate(a.Date)
	case bookDate != "":
		return utils.ParseDate(bookDate)
	case !sheetDate.IsZero():
		return sheetDate, nil
	}
	return utils.Truncate(time.Now()), nil
}

func (a *App) readJSON() (bookInput, error) {
	var raw []byte
	var err error
	if a.Input == "-" {
		raw, err = io.ReadAll(a.Stdin)
	} else {
		raw, err = os.ReadFile(a.Input)
	}
	if err != nil {
		return bookInput{}, fmt.Errorf("read input: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return bookInput{}, fmt.Errorf("empty input")
	}
	var in bookInput
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return bookInput{}, fmt.Errorf("parse JSON: %w", err)
	}
	return in, nil
}

func (a *App) readCSV() (bookInput, time.Time, error) {
	f, err := os.Open(a.InstrumentsCSV)
	if err != nil {
		return bookInput{}, time.Time{}, err
	}
	defer f.Close()
	recs, err := marketdata.ReadInstruments(f)
	if err != nil {
		return bookInput{}, time.Time{}, err
	}

	g, err := os.Open(a.CurveCSV)
	if err != nil {
		return bookInput{}, time.Time{}, err
	}
	defer g.Close()
	sheet, err := marketdata.ReadCurve(g)
	if err != nil {
		return bookInput{}, time.Time{}, err
	}
	return bookInput{Instruments: recs, Curve: curveInput{Quotes: sheet.Quotes}}, sheet.Date, nil
}

func (a *App) readStore(ctx context.Context, e *env) (bookInput, []curve.Point, time.Time, error) {
	store, err := marketdata.Open(ctx, a.DSN, e.logger)
	if err != nil {
		return bookInput{}, nil, time.Time{}, err
	}
	defer store.Close()

	recs, err := store.LoadInstruments(ctx)
	if err != nil {
		return bookInput{}, nil, time.Time{}, err
	}
	on := utils.Truncate(time.Now())
	if a.Date != "" {
		if on, err = utils.ParseDate(a.Date); err != nil {
			return bookInput{}, nil, time.Time{}, err
		}
	}
	asOf, pts, err := store.LoadCurve(ctx, on)
	if err != nil {
		return bookInput{}, nil, time.Time{}, err
	}
	if a.Date != "" && !asOf.Equal(on) {
		e.logger.Warn("stored curve predates the valuation date; tenors are kept as stored",
			zap.Time("curve_date", asOf),
			zap.Time("valuation", on),
		)
	}
	return bookInput{Instruments: recs}, pts, asOf, nil
}

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
