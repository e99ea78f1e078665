package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/creditors/internal/actions"
	"github.com/roach88/creditors/internal/client"
	"github.com/roach88/creditors/internal/interact"
	"github.com/roach88/creditors/internal/records"
)

// ActionRow is one pending action.
type ActionRow struct {
	ID         int64              `json:"id" yaml:"id"`
	Type       records.ActionType `json:"type" yaml:"type"`
	AccountURI string             `json:"account_uri,omitempty" yaml:"account_uri,omitempty"`
	CreatedAt  time.Time          `json:"created_at" yaml:"created_at"`
}

// ActionList is the output of actions list.
type ActionList []ActionRow

func (l ActionList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No pending actions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tACCOUNT")
	for _, r := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Type, r.CreatedAt.Format(time.RFC3339), r.AccountURI)
	}
	return tw.Flush()
}

// ActionDetail is the output of actions show.
type ActionDetail struct {
	Action   records.Action `json:"action" yaml:"action"`
	Account  *AccountRow    `json:"account,omitempty" yaml:"account,omitempty"`
	Transfer *TransferRow   `json:"transfer,omitempty" yaml:"transfer,omitempty"`
}

func (d ActionDetail) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Action %d: %s\n", d.Action.ActionID, d.Action.Type)
	fmt.Fprintf(w, "Created: %s\n", d.Action.CreatedAt.Format(time.RFC3339))
	if d.Account != nil {
		fmt.Fprintf(w, "Account: %s (%s)\n", d.Account.URI, d.Account.Name)
	}
	if d.Transfer != nil {
		fmt.Fprintf(w, "Transfer: %s (%s)\n", d.Transfer.URI, d.Transfer.Status)
	}
	return nil
}

// presenter reports interaction results through the output formatter.
type presenter struct {
	out *OutputFormatter

	mu     sync.Mutex
	failed bool
	routes []interact.Route
}

func (p *presenter) ShowWaiting(on bool) {
	if on {
		p.out.VerboseLog("waiting for the server...")
	}
}

func (p *presenter) Alert(a interact.Alert) {
	p.mu.Lock()
	p.failed = true
	p.mu.Unlock()
	_ = p.out.Error(string(a.Kind), a.Message, nil)
}

func (p *presenter) Navigate(r interact.Route) {
	p.mu.Lock()
	p.routes = append(p.routes, r)
	p.mu.Unlock()
	p.out.VerboseLog("next: %s", r.Kind)
}

// interaction runs op through a coordinator and converts an alert into a
// failing exit code.
func (s *session) interaction(ctx context.Context, name string, op func(context.Context, *client.User) (interact.Route, error)) error {
	u, err := s.user(ctx)
	if err != nil {
		return err
	}
	defer u.Close()

	p := &presenter{out: s.out}
	co := u.Coordinator(interact.NewSession(), p)
	if err := co.Do(ctx, name, func(ctx context.Context) (interact.Route, error) {
		return op(ctx, u)
	}); err != nil {
		return WrapExitError(ExitFailure, name+" failed", err)
	}
	if p.failed {
		return NewExitError(ExitFailure, name+" failed")
	}
	return nil
}

// NewActionsCommand creates the actions command group.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Inspect pending actions",
	}
	cmd.AddCommand(newActionsListCommand(rootOpts))
	cmd.AddCommand(newActionsShowCommand(rootOpts))
	cmd.AddCommand(newActionsDeleteCommand(rootOpts))
	return cmd
}

func newActionsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List pending actions",
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

			pending, err := s.client.Store().ListActions(ctx, u.ID)
			if err != nil {
				return s.fail("list actions", err)
			}
			list := ActionList{}
			for _, a := range pending {
				list = append(list, ActionRow{ID: a.ActionID, Type: a.Type, AccountURI: a.AccountURI, CreatedAt: a.CreatedAt})
			}
			return s.out.Success(list)
		},
	}
}

func parseActionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid action id %q", arg))
	}
	return id, nil
}

func newActionsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show an action and the data it is about",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.interaction(commandContext(cmd), "show action", func(ctx context.Context, u *client.User) (interact.Route, error) {
				v, err := u.Actions.ShowAction(ctx, id)
				if err != nil {
					return interact.Route{}, err
				}
				detail := ActionDetail{Action: v.Action}
				if v.Account != nil {
					row := accountRow(v.Account)
					detail.Account = &row
				}
				if t := v.Transfer; t != nil {
					detail.Transfer = &TransferRow{URI: t.URI, Recipient: t.Recipient.URI, Amount: t.Amount, Status: transferStatus(t), InitiatedAt: t.InitiatedAt}
				}
				return interact.Route{}, s.out.Success(detail)
			})
		},
	}
}

func newActionsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Dismiss a pending action",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActionID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			return s.interaction(commandContext(cmd), "delete action", func(ctx context.Context, u *client.User) (interact.Route, error) {
				if err := u.Actions.DeleteAction(ctx, id); err != nil {
					return interact.Route{}, err
				}
				return interact.Route{Kind: actions.OutcomeShowActions}, s.out.Success(fmt.Sprintf("Action %d deleted", id))
			})
		},
	}
}
