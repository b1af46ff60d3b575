package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/bondrisk/bond"
	"github.com/meenmo/bondrisk/curve"
	"github.com/meenmo/bondrisk/utils"
)

const bp = 1e-4

// Metrics is the risk summary for one instrument at one valuation date.
type Metrics struct {
	Price            float64 `json:"price"`
	PricePct         float64 `json:"price_pct"`
	MacaulayDuration float64 `json:"macaulay_duration"`
	ModifiedDuration float64 `json:"modified_duration"`
	Convexity        float64 `json:"convexity"`
	DV01             float64 `json:"dv01"`
}

// PresentValue sums amount·DF over the flows dated strictly after valuation.
func PresentValue(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	var pv float64
	for _, cf := range cfs {
		if !cf.Date.After(valuation) {
			continue
		}
		df, err := crv.DF(valuation, cf.Date)
		if err != nil {
			return 0, fmt.Errorf("PresentValue: %s: %w", cf.Date.Format(utils.DateLayout), err)
		}
		pv += cf.Amount() * df
	}
	return pv, nil
}

// MacaulayDuration is the PV-weighted average time (years) to the remaining flows.
// Zero when nothing remains.
func MacaulayDuration(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	var pv, weighted float64
	for _, cf := range cfs {
		if !cf.Date.After(valuation) {
			continue
		}
		df, err := crv.DF(valuation, cf.Date)
		if err != nil {
			return 0, fmt.Errorf("MacaulayDuration: %s: %w", cf.Date.Format(utils.DateLayout), err)
		}
		v := cf.Amount() * df
		pv += v
		weighted += utils.YearFraction(valuation, cf.Date) * v
	}
	if pv == 0 {
		return 0, nil
	}
	return weighted / pv, nil
}

// ModifiedDuration converts Macaulay duration using the curve rate y at the last
// remaining flow: Mac/(1+y/m). Continuous compounding returns Mac unchanged.
func ModifiedDuration(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	mac, err := MacaulayDuration(cfs, crv, valuation)
	if err != nil || mac == 0 {
		return 0, err
	}
	return modifiedFromMacaulay(mac, cfs, crv, valuation)
}

func modifiedFromMacaulay(mac float64, cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	last := cfs[len(cfs)-1]
	if !last.Date.After(valuation) {
		return 0, nil
	}
	m := crv.Compounding()
	if m == curve.Continuous {
		return mac, nil
	}
	y, err := crv.RateOn(valuation, last.Date)
	if err != nil {
		return 0, fmt.Errorf("ModifiedDuration: %w", err)
	}
	return mac / (1 + y/float64(m)), nil
}

// Convexity is the second difference (PV(+ε)+PV(−ε)−2PV)/(PV·ε²) with ε from
// Config.ConvexityBumpBP.
func Convexity(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	pv, err := PresentValue(cfs, crv, valuation)
	if err != nil {
		return 0, err
	}
	return convexityAt(pv, cfs, crv, valuation)
}

func convexityAt(pv float64, cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	if pv == 0 {
		return 0, nil
	}
	bump := GetConfig().ConvexityBumpBP
	up, err := PresentValue(cfs, crv.Shift(bump), valuation)
	if err != nil {
		return 0, fmt.Errorf("Convexity: up: %w", err)
	}
	down, err := PresentValue(cfs, crv.Shift(-bump), valuation)
	if err != nil {
		return 0, fmt.Errorf("Convexity: down: %w", err)
	}
	eps := bump * bp
	return (up + down - 2*pv) / (pv * eps * eps), nil
}

// DV01 is PV minus PV on the curve shifted up by Config.DV01BumpBP. Positive for
// positive flows.
func DV01(cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	pv, err := PresentValue(cfs, crv, valuation)
	if err != nil {
		return 0, err
	}
	return dv01At(pv, cfs, crv, valuation)
}

func dv01At(pv float64, cfs []bond.Cashflow, crv *curve.Curve, valuation time.Time) (float64, error) {
	up, err := PresentValue(cfs, crv.Shift(GetConfig().DV01BumpBP), valuation)
	if err != nil {
		return 0, fmt.Errorf("DV01: %w", err)
	}
	return pv - up, nil
}

// Compute prices b on crv and returns the full metric set. fwd feeds floating coupons
// and may be nil. A bond with no flows after valuation (matured) returns the zero
// Metrics and a nil error; check RemainingCashflows to tell that apart from a zero price.
func Compute(b bond.Bond, fwd bond.ForwardRates, crv *curve.Curve, valuation time.Time) (Metrics, error) {
	cfs := b.RemainingCashflows(valuation, fwd)
	if len(cfs) == 0 {
		return Metrics{}, nil
	}

	pv, err := PresentValue(cfs, crv, valuation)
	if err != nil {
		return Metrics{}, err
	}
	mac, err := MacaulayDuration(cfs, crv, valuation)
	if err != nil {
		return Metrics{}, err
	}
	var mod float64
	if mac != 0 {
		if mod, err = modifiedFromMacaulay(mac, cfs, crv, valuation); err != nil {
			return Metrics{}, err
		}
	}
	conv, err := convexityAt(pv, cfs, crv, valuation)
	if err != nil {
		return Metrics{}, err
	}
	dv01, err := dv01At(pv, cfs, crv, valuation)
	if err != nil {
		return Metrics{}, err
	}

	var pct float64
	if par := b.Terms().ParValue; par > 0 {
		pct = pv / par * 100
	}
	m := Metrics{
		Price:            pv,
		PricePct:         pct,
		MacaulayDuration: mac,
		ModifiedDuration: mod,
		Convexity:        conv,
		DV01:             dv01,
	}
	if err := CheckFinite(b.Terms().ContractID, m); err != nil {
		return Metrics{}, fmt.Errorf("Compute: %w", err)
	}
	return m, nil
}

// ErrNonFinite marks metrics that came out NaN or infinite, typically from a
// non-finite forward rate or curve input.
var ErrNonFinite = errors.New("non-finite value")

// CheckFinite rejects m when any field is NaN or infinite.
func CheckFinite(id string, m Metrics) error {
	fields := []struct {
		name string
		v    float64
	}{
		{"price", m.Price},
		{"price_pct", m.PricePct},
		{"macaulay_duration", m.MacaulayDuration},
		{"modified_duration", m.ModifiedDuration},
		{"convexity", m.Convexity},
		{"dv01", m.DV01},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s: %s: %w", id, f.name, ErrNonFinite)
		}
	}
	return nil
}
