// internal/cmd/root.go
package cmd

import (
	"os"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Task scheduler with dependency tracking",
	Long: `Taskflow keeps a dependency graph of tasks, detects deadlocks, and runs
ready tasks on a bounded worker pool. Tasks can be grouped into processing
queues, and users are notified about overdue and failed work.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML); TASKFLOW_* environment variables override it")
}

// loadConfig reads the configuration and builds the process logger
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format), nil
}
