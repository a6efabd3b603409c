package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "paperloop",
	Short: "Paper trading control loop",
	Long: `paperloop runs an event driven paper trading loop: prices and target
signals come in, the risk manager sizes them into orders, a simulated executor
fills them and the ledger books cash, positions and equity into a journal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (defaults apply when empty)")
}
