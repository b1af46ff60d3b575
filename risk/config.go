package risk

import "sync/atomic"

// Config holds the bump sizes used by the finite-difference metrics.
type Config struct {
	// ConvexityBumpBP is the symmetric rate bump for the second difference.
	ConvexityBumpBP float64 `mapstructure:"convexity_bump_bp"`

	// DV01BumpBP is the upward bump for DV01. DV01 is reported per bump, so anything
	// other than 1 changes its unit.
	DV01BumpBP float64 `mapstructure:"dv01_bump_bp"`

	// KeyRateBumpBP is the bump applied to a single pillar for key-rate durations.
	KeyRateBumpBP float64 `mapstructure:"key_rate_bump_bp"`
}

// DefaultConfig provides production-ready default values.
var DefaultConfig = Config{
	ConvexityBumpBP: 1,
	DV01BumpBP:      1,
	KeyRateBumpBP:   1,
}

// cfg is the active configuration. Defaults to DefaultConfig.
var cfg atomic.Pointer[Config]

func init() {
	c := DefaultConfig
	cfg.Store(&c)
}

// SetConfig replaces the active configuration. Non-positive bumps fall back to defaults.
func SetConfig(c Config) {
	if c.ConvexityBumpBP <= 0 {
		c.ConvexityBumpBP = DefaultConfig.ConvexityBumpBP
	}
	if c.DV01BumpBP <= 0 {
		c.DV01BumpBP = DefaultConfig.DV01BumpBP
	}
	if c.KeyRateBumpBP <= 0 {
		c.KeyRateBumpBP = DefaultConfig.KeyRateBumpBP
	}
	cfg.Store(&c)
}

// GetConfig returns the active configuration.
func GetConfig() Config {
	return *cfg.Load()
}
