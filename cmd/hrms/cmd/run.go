package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kongfanmiao/hrms"
)

var simResistance float64

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full sweep session",
	Long: `Load the configuration, connect to the electrometer and run the
configured number of staircase sweeps. SIGINT or SIGTERM stops the session
after the current step; completed sweeps are still written out.

Examples:
  hrms run --config ./config.yaml
  hrms run --config ./config.yaml --simulate 1e12`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Float64Var(&simResistance, "simulate", 0,
		"replace the instrument with an ohmic simulator of this resistance")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := hrms.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var opts []hrms.Option
	if simResistance > 0 {
		opts = append(opts, hrms.WithElectrometer(hrms.NewSimulatedElectrometer(simResistance)))
	}

	rt, err := hrms.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rt.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := rt.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if result == nil {
		return err
	}

	fmt.Printf("run %s: %d sweeps", result.RunID, result.NumSweeps())
	if result.PartialSession {
		fmt.Print(" (partial)")
	}
	fmt.Printf(", data in %s\n", cfg.Data.Dir)
	return nil
}
