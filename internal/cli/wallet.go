package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/amount"
	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/store"
)

// AccountRow is one account in the accounts listing.
type AccountRow struct {
	URI       string `json:"uri" yaml:"uri"`
	Debtor    string `json:"debtor" yaml:"debtor"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Balance   string `json:"balance,omitempty" yaml:"balance,omitempty"`
	Unit      string `json:"unit,omitempty" yaml:"unit,omitempty"`
	PeggedTo  string `json:"pegged_to,omitempty" yaml:"pegged_to,omitempty"`
	Confirmed bool   `json:"confirmed" yaml:"confirmed"`
}

// AccountList is the output of the accounts command.
type AccountList []AccountRow

func (l AccountList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No accounts.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBALANCE\tDEBTOR\tPEGGED TO")
	for _, r := range l {
		name := r.Name
		if name == "" {
			name = "(unconfirmed)"
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", name, r.Balance, r.Unit, r.Debtor, r.PeggedTo)
	}
	return tw.Flush()
}

func accountRow(d *accounts.FullData) AccountRow {
	row := AccountRow{URI: d.URI(), Debtor: d.DebtorURI(), Name: d.DebtorName(), PeggedTo: d.PeggedAccountURI()}
	if d.Display != nil {
		row.Confirmed = d.Display.KnownDebtor
		if d.Display.Unit != nil {
			row.Unit = *d.Display.Unit
		}
		if d.Ledger != nil {
			row.Balance = amount.AmountToString(d.Ledger.Principal, d.Display.AmountDivisor, d.Display.DecimalPlaces)
		}
	}
	return row
}

// NewAccountsCommand creates the accounts command.
func NewAccountsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "accounts",
		Short:         "List the accounts in the local replica",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := s.user(commandContext(cmd))
			if err != nil {
				return err
			}
			defer u.Close()

			list := AccountList{}
			for _, d := range u.Index.List() {
				list = append(list, accountRow(d))
			}
			return s.out.Success(list)
		},
	}
}

// TransferRow is one transfer in the transfers listing.
type TransferRow struct {
	URI         string    `json:"uri" yaml:"uri"`
	Recipient   string    `json:"recipient" yaml:"recipient"`
	Amount      int64     `json:"amount" yaml:"amount"`
	Status      string    `json:"status" yaml:"status"`
	InitiatedAt time.Time `json:"initiated_at" yaml:"initiated_at"`
}

// TransferList is the output of the transfers command.
type TransferList []TransferRow

func (l TransferList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No transfers.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INITIATED\tAMOUNT\tRECIPIENT\tSTATUS")
	for _, r := range l {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.InitiatedAt.Format(time.RFC3339), r.Amount, r.Recipient, r.Status)
	}
	return tw.Flush()
}

func transferStatus(t *canonical.Transfer) string {
	switch {
	case t.Aborted:
		return "aborted"
	case t.Result == nil:
		return "pending"
	case t.Result.Error != nil:
		return "failed: " + t.Result.Error.ErrorCode
	}
	return "committed"
}

// NewTransfersCommand creates the transfers command.
func NewTransfersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "transfers",
		Short:         "List the transfers in the local replica",
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

			transfers, err := store.List[*canonical.Transfer](ctx, s.client.Store(), u.ID, canonical.TypeTransfer)
			if err != nil {
				return s.fail("list transfers", err)
			}
			list := TransferList{}
			for _, t := range transfers {
				list = append(list, TransferRow{
					URI:         t.URI,
					Recipient:   t.Recipient.URI,
					Amount:      t.Amount,
					Status:      transferStatus(t),
					InitiatedAt: t.InitiatedAt,
				})
			}
			return s.out.Success(list)
		},
	}
}
