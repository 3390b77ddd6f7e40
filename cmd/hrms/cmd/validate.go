package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kongfanmiao/hrms"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a config file without touching hardware",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := hrms.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		name := cfg.Sweep.MeasurementName(&cfg.Sample, cfg.Experiment)
		fmt.Printf("config %s ok\nmeasurement: %s\n", cfgPath, name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
