// internal/cmd/task_types.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/fawad-mazhar/taskflow/internal/worker"
	"github.com/spf13/cobra"
)

var taskTypesCmd = &cobra.Command{
	Use:   "task-types",
	Short: "List the registered task types",
	RunE:  runTaskTypes,
}

func init() {
	rootCmd.AddCommand(taskTypesCmd)
}

func runTaskTypes(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := worker.NewRegistry(log)
	err = worker.RegisterBuiltins(registry, progress.NewTracker(), worker.BuiltinOptions{
		PiStepDelay: cfg.Tasks.PiStepDelay(),
		ReportDelay: cfg.Tasks.ReportDelay(),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tDESCRIPTION")
	for _, t := range registry.Types() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.Key, t.Name, t.Description)
	}
	return w.Flush()
}
