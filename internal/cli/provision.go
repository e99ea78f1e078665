package cli

import (
	"github.com/spf13/cobra"
)

// ProvisionResult is the output of the provision command.
type ProvisionResult struct {
	UserID    int64  `json:"user_id" yaml:"user_id"`
	WalletURI string `json:"wallet_uri" yaml:"wallet_uri"`
	State     string `json:"state" yaml:"state"`
}

func (r ProvisionResult) String() string {
	return "Wallet " + r.WalletURI + " provisioned (" + r.State + ")"
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provision [wallet-uri]",
		Short: "Register a wallet and load its replica",
		Long: `Register the wallet at wallet-uri (or server_url from the config),
download the current server state and the transfers, and start following
the log stream. Provisioning an already registered wallet reuses its user.

Example:
  creditors provision https://demo.example.com/creditors/1/wallet`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(rootOpts, args, cmd)
		},
	}
}

func runProvision(opts *RootOptions, args []string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	walletURI := s.cfg.ServerURL
	if len(args) == 1 {
		walletURI = args[0]
	}
	if walletURI == "" {
		return NewExitError(ExitCommandError, "no wallet URI given and server_url is not configured")
	}

	ctx := commandContext(cmd)
	s.out.VerboseLog("provisioning %s", walletURI)
	userID, err := s.client.Provision(ctx, walletURI)
	if err != nil {
		return s.fail("provision failed", err)
	}
	u, err := s.client.User(ctx, userID)
	if err != nil {
		return s.fail("provision failed", err)
	}
	defer u.Close()
	if err := u.Update(ctx); err != nil {
		return s.fail("initial update failed", err)
	}
	state, err := u.State(ctx)
	if err != nil {
		return s.fail("provision failed", err)
	}
	return s.out.Success(ProvisionResult{UserID: userID, WalletURI: walletURI, State: state.String()})
}
