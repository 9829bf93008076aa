package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/core/domain"
)

var statusHistory int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduled task state and recent runs",
	Long: `Shows each scheduled stage with its cron expression, last and next run,
and the most recent results recorded by the scheduler.`,
	Annotations: servicesAnnotation,
	RunE:        runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusHistory, "history", "n", 5, "number of recent runs to show per task")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if taskStore == nil {
		return errors.New("scheduler store not configured")
	}
	ctx := cmd.Context()

	tasks, err := taskStore.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No scheduled tasks recorded yet. Run 'kbsync serve' to start the scheduler.")
		return nil
	}

	for _, t := range tasks {
		state := "enabled"
		if !t.Enabled {
			state = "disabled"
		}
		cmd.Printf("%s (%s) [%s]\n", t.Name, t.ID, state)
		cmd.Printf("  Schedule:     %s\n", t.Schedule)
		cmd.Printf("  Last run:     %s\n", formatTime(t.LastRun))
		cmd.Printf("  Last success: %s\n", formatTime(t.LastSuccess))
		cmd.Printf("  Next run:     %s\n", formatTime(t.NextRun))
		if t.LastError != "" {
			cmd.Printf("  Last error:   %s\n", t.LastError)
		}

		if statusHistory <= 0 {
			continue
		}
		history, err := taskStore.GetTaskHistory(ctx, t.ID, statusHistory)
		if err != nil {
			return fmt.Errorf("task history %s: %w", t.ID, err)
		}
		for _, r := range history {
			cmd.Printf("    %s\n", formatResult(r))
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

func formatResult(r domain.TaskResult) string {
	outcome := "ok"
	if !r.Success {
		outcome = "failed: " + r.Error
	}
	return fmt.Sprintf("%s  %-8s %4d records  %s",
		formatTime(r.StartedAt), r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond), r.ItemsProcessed, outcome)
}
