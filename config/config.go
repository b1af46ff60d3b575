// Package config loads engine settings from an optional YAML file and BONDRISK_*
// environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meenmo/bondrisk/risk"
)

// EnvPrefix prefixes every environment override, e.g. BONDRISK_STRESS_WORKERS.
const EnvPrefix = "BONDRISK"

// Config holds everything the CLI needs besides its input data.
type Config struct {
	Curve   CurveConfig     `mapstructure:"curve"`
	Risk    risk.Config     `mapstructure:"risk"`
	VaR     risk.VaROptions `mapstructure:"var"`
	Stress  StressConfig    `mapstructure:"stress"`
	Report  ReportConfig    `mapstructure:"report"`
	Logging LoggingConfig   `mapstructure:"logging"`
}

type CurveConfig struct {
	// Compounding is periods per year; 0 means continuous.
	Compounding int `mapstructure:"compounding"`
}

type StressConfig struct {
	// Workers bounds concurrent repricing; 0 uses GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// Scenarios are the names run when none are given; empty means the standard set.
	Scenarios   []string `mapstructure:"scenarios"`
	FullMetrics bool     `mapstructure:"full_metrics"`
}

type ReportConfig struct {
	Currency string `mapstructure:"currency"`
	// Format is json, markdown or csv.
	Format string `mapstructure:"format"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// DefaultConfig mirrors the package defaults of curve, risk and stress.
var DefaultConfig = Config{
	Curve:   CurveConfig{Compounding: 1},
	Risk:    risk.DefaultConfig,
	VaR:     risk.DefaultVaROptions,
	Stress:  StressConfig{},
	Report:  ReportConfig{Currency: "USD", Format: "json"},
	Logging: LoggingConfig{Level: "warn", Format: "console"},
}

// Load reads path (skipped when empty) over the defaults, then applies environment
// overrides of the form BONDRISK_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig
	v.SetDefault("curve.compounding", d.Curve.Compounding)

	v.SetDefault("risk.convexity_bump_bp", d.Risk.ConvexityBumpBP)
	v.SetDefault("risk.dv01_bump_bp", d.Risk.DV01BumpBP)
	v.SetDefault("risk.key_rate_bump_bp", d.Risk.KeyRateBumpBP)

	v.SetDefault("var.confidence", d.VaR.Confidence)
	v.SetDefault("var.horizon_days", d.VaR.HorizonDays)
	v.SetDefault("var.simulations", d.VaR.Simulations)
	v.SetDefault("var.seed", d.VaR.Seed)

	v.SetDefault("stress.workers", d.Stress.Workers)
	v.SetDefault("stress.scenarios", d.Stress.Scenarios)
	v.SetDefault("stress.full_metrics", d.Stress.FullMetrics)

	v.SetDefault("report.currency", d.Report.Currency)
	v.SetDefault("report.format", d.Report.Format)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Curve.Compounding < 0 {
		return fmt.Errorf("curve.compounding %d must be >= 0", c.Curve.Compounding)
	}
	if !(c.VaR.Confidence > 0 && c.VaR.Confidence < 1) {
		return fmt.Errorf("var.confidence %g outside (0, 1)", c.VaR.Confidence)
	}
	if c.VaR.HorizonDays <= 0 {
		return fmt.Errorf("var.horizon_days %d must be positive", c.VaR.HorizonDays)
	}
	switch strings.ToLower(c.Report.Format) {
	case "json", "markdown", "md", "csv":
	default:
		return fmt.Errorf("report.format %q: want json, markdown or csv", c.Report.Format)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Apply installs the risk bump sizes process-wide.
func (c *Config) Apply() {
	risk.SetConfig(c.Risk)
}

// NewLogger builds a zap logger at the configured level. Format json gives the
// production encoder; anything else the development console encoder.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("NewLogger: %w", err)
	}
	var zc zap.Config
	if strings.EqualFold(c.Logging.Format, "json") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
