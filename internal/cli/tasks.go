package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/creditors/internal/records"
)

// TaskRow is one scheduled task.
type TaskRow struct {
	ID           int64            `json:"id" yaml:"id"`
	Type         records.TaskType `json:"type" yaml:"type"`
	ScheduledFor time.Time        `json:"scheduled_for" yaml:"scheduled_for"`
	Attempts     int              `json:"attempts" yaml:"attempts"`
	Target       string           `json:"target" yaml:"target"`
}

// TaskList is the output of tasks list.
type TaskList []TaskRow

func (l TaskList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No scheduled tasks.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSCHEDULED\tATTEMPTS\tTARGET")
	for _, r := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", r.ID, r.Type, r.ScheduledFor.Format(time.RFC3339), r.Attempts, r.Target)
	}
	return tw.Flush()
}

// TasksRunResult is the output of tasks run.
type TasksRunResult struct {
	Executed int `json:"executed" yaml:"executed"`
}

func (r TasksRunResult) String() string {
	return fmt.Sprintf("%d tasks executed", r.Executed)
}

// NewTasksCommand creates the tasks command group.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and run scheduled tasks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List scheduled tasks",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := commandContext(cmd)
			u, err := s.user(ctx)
			if err != nil {
				return err
			}
			defer u.Close()

			tasks, err := s.client.Store().ListTasks(ctx, u.ID)
			if err != nil {
				return s.fail("list tasks", err)
			}
			list := TaskList{}
			for _, t := range tasks {
				target := t.TransferURI
				if target == "" {
					target = t.IRI
				}
				list = append(list, TaskRow{ID: t.TaskID, Type: t.Type, ScheduledFor: t.ScheduledFor, Attempts: t.Attempts, Target: target})
			}
			return s.out.Success(list)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the tasks that are due",
		Long: `Run the scheduled tasks that are due, in batches, until none is left.
A failing task is rescheduled.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := commandContext(cmd)
			u, err := s.user(ctx)
			if err != nil {
				return err
			}
			defer u.Close()

			n, err := u.Tasks.ExecuteReady(ctx, u.ID)
			if err != nil {
				return s.fail("run tasks", err)
			}
			return s.out.Success(TasksRunResult{Executed: n})
		},
	})
	return cmd
}
