package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Output concentration unit: "ppm" divides corrected values by 1000,
	// "ppb" keeps them as-is.
	OutputUnits string `mapstructure:"output_units" yaml:"output_units"`
	// ClampNegative rewrites negative corrected values to 0.
	ClampNegative bool `mapstructure:"clamp_negative" yaml:"clamp_negative"`
	// DefaultDF applies to samples missing from the DIGEST file.
	DefaultDF float64 `mapstructure:"default_df" yaml:"default_df"`

	// QC recovery pass bands, percent, inclusive.
	ICVRecoveryLow  float64 `mapstructure:"icv_recovery_low" yaml:"icv_recovery_low"`
	ICVRecoveryHigh float64 `mapstructure:"icv_recovery_high" yaml:"icv_recovery_high"`
	RefRecoveryLow  float64 `mapstructure:"ref_recovery_low" yaml:"ref_recovery_low"`
	RefRecoveryHigh float64 `mapstructure:"ref_recovery_high" yaml:"ref_recovery_high"`
}

// UnitDivisor maps the configured output unit to the correction divisor.
func (c *Global) UnitDivisor() (float64, error) {
	switch c.OutputUnits {
	case "", "ppm":
		return 1000, nil
	case "ppb":
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported output_units %q (use ppm|ppb)", c.OutputUnits)
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is
// empty, it writes to ~/.icpbatch/config.yaml, creating the directory if
// necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".icpbatch")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("ICPBATCH")
	v.AutomaticEnv()

	v.SetDefault("output_units", "ppm")
	v.SetDefault("clamp_negative", false)
	v.SetDefault("default_df", 1.0)
	v.SetDefault("icv_recovery_low", 90.0)
	v.SetDefault("icv_recovery_high", 110.0)
	v.SetDefault("ref_recovery_low", 80.0)
	v.SetDefault("ref_recovery_high", 120.0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".icpbatch")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
