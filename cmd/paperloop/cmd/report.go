package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peter-kozarec/paperloop/internal/config"
	"github.com/peter-kozarec/paperloop/internal/dbg"
	"github.com/peter-kozarec/paperloop/pkg/journal"
	"github.com/peter-kozarec/paperloop/pkg/tools/metrics"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print performance statistics from the journal",
	Long: `Read the trade log and equity snapshots from the configured journal
and print drawdown, sharpe-like ratio, win rate and profit statistics.

Example:
  paperloop report -c paperloop.yaml`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := dbg.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	r, err := journal.OpenReader(cmd.Context(), cfg.Journal)
	if err != nil {
		return err
	}
	defer func(r journal.Reader) {
		_ = r.Close()
	}(r)

	audit, err := metrics.Load(cmd.Context(), r)
	if err != nil {
		return fmt.Errorf("load journal: %w", err)
	}

	report := audit.GenerateReport()
	if report.Snapshots == 0 {
		logger.Warn("journal holds no equity snapshots", zap.String("type", cfg.Journal.Type))
		return nil
	}
	report.Print(logger)
	return nil
}
