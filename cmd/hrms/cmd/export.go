package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kongfanmiao/hrms"
	"github.com/kongfanmiao/hrms/internal/adapters/journal"
	"github.com/kongfanmiao/hrms/internal/domain"
	"github.com/kongfanmiao/hrms/internal/export"
	"github.com/kongfanmiao/hrms/internal/plot"
)

var (
	exportJournalDir string
	exportOutDir     string
	skipPlots        bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Rebuild the Excel workbook and plots from a journal",
	Long: `Replay a sweep journal and regenerate the xlsx workbook plus the
per-sweep and averaged I-V plots. Sample and sweep metadata come from the
config file; the journal holds only the raw points.

Examples:
  hrms export --config ./config.yaml
  hrms export --config ./config.yaml --journal ./journal --out ./exports`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportJournalDir, "journal", "",
		"journal directory (defaults to the configured one)")
	exportCmd.Flags().StringVar(&exportOutDir, "out", "",
		"output directory (defaults to the configured data dir)")
	exportCmd.Flags().BoolVar(&skipPlots, "no-plots", false,
		"write only the workbook")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := hrms.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if exportJournalDir == "" {
		exportJournalDir = cfg.Journal.Dir
	}
	if exportOutDir == "" {
		exportOutDir = cfg.Data.Dir
	}

	j, err := journal.Open(exportJournalDir)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	result := &domain.SessionResult{
		Name:       cfg.Sweep.MeasurementName(&cfg.Sample, cfg.Experiment),
		Experiment: cfg.Experiment,
		Sample:     &cfg.Sample,
		Parameters: cfg.Sweep,
	}
	// the journal accumulates across runs; keep only the newest run's sweeps
	err = j.Replay(func(id journal.EntryID, e *journal.Entry) error {
		if e.RunID != result.RunID {
			result.RunID = e.RunID
			result.Records = result.Records[:0]
		}
		result.Records = append(result.Records, domain.SweepRecord{
			Voltages: journal.Floats(e.Voltages),
			Currents: journal.Floats(e.Currents),
			Times:    journal.Floats(e.Times),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	if result.NumSweeps() == 0 {
		return fmt.Errorf("journal %s holds no sweeps", exportJournalDir)
	}

	base := filepath.Join(exportOutDir, result.Name)
	if err := export.WriteWorkbook(result, base+".xlsx"); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Printf("wrote %s.xlsx (%d sweeps)\n", base, result.NumSweeps())

	if skipPlots {
		return nil
	}
	if err := plot.Session(result, base+"__sweeps.png"); err != nil {
		return fmt.Errorf("sweep plot: %w", err)
	}
	if err := plot.SessionLog(result, base+"__sweeps_log.png"); err != nil {
		return fmt.Errorf("log sweep plot: %w", err)
	}
	if err := plot.Average(result, base+"__average.png"); err != nil {
		return fmt.Errorf("average plot: %w", err)
	}
	fmt.Printf("wrote %s__{sweeps,sweeps_log,average}.png\n", base)
	return nil
}
