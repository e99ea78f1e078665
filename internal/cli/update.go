package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/creditors/internal/client"
	"github.com/roach88/creditors/internal/records"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Watch bool
}

// UpdateResult is the output of the update command.
type UpdateResult struct {
	UserID  int64  `json:"user_id" yaml:"user_id"`
	State   string `json:"state" yaml:"state"`
	Actions int    `json:"pending_actions" yaml:"pending_actions"`
	Tasks   int    `json:"pending_tasks" yaml:"pending_tasks"`
}

func (r UpdateResult) String() string {
	return fmt.Sprintf("User %d: %s, %d pending actions, %d pending tasks", r.UserID, r.State, r.Actions, r.Tasks)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Apply the server log stream and run due tasks",
		Long: `Bring the local replica up to date with the server, then run the
scheduled tasks that are due.

With --watch the update repeats every update.interval until interrupted.

Example:
  creditors update
  creditors update --watch --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "keep updating until interrupted")

	return cmd
}

func runUpdate(opts *UpdateOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(cmd, s.logger)
	defer cancel()

	u, err := s.user(ctx)
	if err != nil {
		return err
	}
	defer u.Close()

	if !opts.Watch {
		if err := u.Update(ctx); err != nil {
			return s.fail("update failed", err)
		}
		return s.report(ctx, u)
	}

	topic, stop, err := s.client.Store().WatchActions(ctx, u.ID)
	if err != nil {
		return s.fail("watch actions", err)
	}
	defer stop()
	unsubscribe := topic.Subscribe(func(actions []records.Action) {
		s.out.VerboseLog("%d pending actions", len(actions))
	})
	defer unsubscribe()

	s.logger.Info("watching", "user_id", u.ID, "interval", s.cfg.Update.Interval)
	u.Updater.Trigger()
	if err := u.Updater.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "update loop failed", err)
	}
	s.logger.Info("stopped watching", "passes", u.Updater.Passes())
	return s.report(context.WithoutCancel(ctx), u)
}

func (s *session) report(ctx context.Context, u *client.User) error {
	userID := u.ID
	state, err := u.State(ctx)
	if err != nil {
		return s.fail("report", err)
	}
	actions, err := s.client.Store().ListActions(ctx, userID)
	if err != nil {
		return s.fail("report", err)
	}
	tasks, err := s.client.Store().ListTasks(ctx, userID)
	if err != nil {
		return s.fail("report", err)
	}
	return s.out.Success(UpdateResult{UserID: userID, State: state.String(), Actions: len(actions), Tasks: len(tasks)})
}
