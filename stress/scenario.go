package stress

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/meenmo/bondrisk/curve"
)

var ErrUnknownScenario = errors.New("stress: unknown scenario")

// Scenario is a named curve shock.
type Scenario struct {
	Name        string      `json:"name" mapstructure:"name"`
	Description string      `json:"description,omitempty" mapstructure:"description"`
	Shock       curve.Shock `json:"shock" mapstructure:"shock"`
}

// Parallel returns a uniform shift scenario named like "parallel_up_100bp".
func Parallel(bp float64) Scenario {
	dir := "up"
	if bp < 0 {
		dir = "down"
	}
	mag := strconv.FormatFloat(abs(bp), 'f', -1, 64)
	return Scenario{
		Name:        fmt.Sprintf("parallel_%s_%sbp", dir, mag),
		Description: fmt.Sprintf("all tenors %+gbp", bp),
		Shock:       curve.Shock{ParallelBP: bp},
	}
}

// Custom builds a scenario from per-tenor shifts in basis points. Shifts between the
// given tenors are interpolated linearly and held flat beyond them.
func Custom(name string, tenorBP map[float64]float64) Scenario {
	shock := make(map[float64]float64, len(tenorBP))
	for k, v := range tenorBP {
		shock[k] = v
	}
	return Scenario{Name: name, Description: "custom tenor shifts", Shock: curve.Shock{TenorBP: shock}}
}

// Standard returns the built-in scenario set.
func Standard() []Scenario {
	steep := curve.Twist(2, 0, 50)
	flat := curve.Twist(2, 50, 0)
	return []Scenario{
		Parallel(50),
		Parallel(100),
		Parallel(200),
		Parallel(-50),
		Parallel(-100),
		{Name: "steepening_50bp", Description: "tenors from 2y +50bp", Shock: steep},
		{Name: "flattening_50bp", Description: "tenors under 2y +50bp", Shock: flat},
		{
			Name:        "financial_crisis_2008",
			Description: "under 1y -200bp, 1y-3y -100bp, 3y+ +50bp",
			Shock: curve.Shock{Buckets: []curve.Bucket{
				{MaxTenor: 1, BP: -200},
				{MaxTenor: 3, BP: -100},
				{MaxTenor: 0, BP: 50},
			}},
		},
		{
			Name:        "taper_tantrum_2013",
			Description: "under 1y +10bp, 1y-3y +100bp, 3y-10y +140bp, 10y+ +80bp",
			Shock: curve.Shock{Buckets: []curve.Bucket{
				{MaxTenor: 1, BP: 10},
				{MaxTenor: 3, BP: 100},
				{MaxTenor: 10, BP: 140},
				{MaxTenor: 0, BP: 80},
			}},
		},
	}
}

// parallel +100bp, parallel -25bp, parallel_up_25bp, parallel_down_25.5bp
var parallelRe = regexp.MustCompile(`^parallel[ _]*(?:(up|down)[ _]*)?([+-]?\d+(?:\.\d+)?)\s*bps?$`)

// Lookup resolves a standard scenario by name, or parses an ad-hoc parallel shift.
func Lookup(name string) (Scenario, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, s := range Standard() {
		if s.Name == key {
			return s, nil
		}
	}
	m := parallelRe.FindStringSubmatch(key)
	if m == nil {
		return Scenario{}, fmt.Errorf("Lookup: %q: %w", name, ErrUnknownScenario)
	}
	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Scenario{}, fmt.Errorf("Lookup: %q: %w", name, err)
	}
	switch m[1] {
	case "down":
		v = -abs(v)
	case "up":
		v = abs(v)
	}
	return Parallel(v), nil
}

// LookupAll resolves each name with Lookup. An empty list yields Standard().
func LookupAll(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return Standard(), nil
	}
	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		s, err := Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
