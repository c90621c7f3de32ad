package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/tracemetals/icpbatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set icpbatch configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current (or default) settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cfg
		if c == nil {
			loaded, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			c = loaded
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Println("Wrote config file")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("output_units: %s\n", cfg.OutputUnits)
		fmt.Printf("clamp_negative: %v\n", cfg.ClampNegative)
		fmt.Printf("default_df: %g\n", cfg.DefaultDF)
		fmt.Printf("icv_recovery_low: %g\n", cfg.ICVRecoveryLow)
		fmt.Printf("icv_recovery_high: %g\n", cfg.ICVRecoveryHigh)
		fmt.Printf("ref_recovery_low: %g\n", cfg.RefRecoveryLow)
		fmt.Printf("ref_recovery_high: %g\n", cfg.RefRecoveryHigh)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "output_units":
			switch val {
			case "ppm", "ppb":
				cfg.OutputUnits = val
			default:
				return fmt.Errorf("invalid output_units: %s (use ppm or ppb)", val)
			}
		case "clamp_negative":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for clamp_negative: %v", val)
			}
			cfg.ClampNegative = b
		case "default_df":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 {
				return fmt.Errorf("invalid float for default_df: %v (must be > 0)", val)
			}
			cfg.DefaultDF = f
		case "icv_recovery_low", "icv_recovery_high", "ref_recovery_low", "ref_recovery_high":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid float for %s: %v", key, val)
			}
			switch key {
			case "icv_recovery_low":
				cfg.ICVRecoveryLow = f
			case "icv_recovery_high":
				cfg.ICVRecoveryHigh = f
			case "ref_recovery_low":
				cfg.RefRecoveryLow = f
			case "ref_recovery_high":
				cfg.RefRecoveryHigh = f
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
