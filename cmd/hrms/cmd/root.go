package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "hrms",
	Short: "High-resistance measurement sweeps on a Keithley 6517A",
	Long: `Drives staircase voltage sweeps on a Keithley 6517A electrometer with
adaptive current-range selection, and records the results to CSV, a
crash-safe journal and (optionally) Postgres.

Examples:
  hrms run --config ./config.yaml              # Run a full sweep session
  hrms validate --config ./config.yaml         # Check a config without touching hardware
  hrms export --journal ./journal --out ./data # Rebuild xlsx + plots from a journal`,
	Version: "1.2.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to configuration file")
}
