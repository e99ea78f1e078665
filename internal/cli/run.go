package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/creditors/internal/client"
	"github.com/roach88/creditors/internal/config"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/interact"
)

// session is what a command runs against: the loaded configuration, an
// open client and the output formatter.
type session struct {
	opts   *RootOptions
	cfg    config.Config
	client *client.Client
	out    *OutputFormatter
	logger *slog.Logger
}

func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	// Configure logging based on config and verbose flag
	logLevel := cfg.SlogLevel()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	clientOpts := append([]client.Option{client.WithLogger(logger)}, opts.ClientOptions...)
	c, err := client.Open(cfg, clientOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open wallet", err)
	}
	logger.Debug("database ready", "path", cfg.Database)

	return &session{
		opts:   opts,
		cfg:    cfg,
		client: c,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// user opens the selected user, or the only provisioned one.
func (s *session) user(ctx context.Context) (*client.User, error) {
	userID := s.opts.User
	if userID == 0 {
		id, err := s.client.DefaultUser(ctx)
		if err != nil {
			return nil, s.fail("select user", err)
		}
		userID = id
	}
	u, err := s.client.User(ctx, userID)
	if err != nil {
		return nil, s.fail("open user", err)
	}
	return u, nil
}

// fail reports err in the configured format and returns the error the
// command exits with.
func (s *session) fail(message string, err error) error {
	code := string(fault.KindOf(err))
	if code == string(fault.KindUnknown) {
		code = "E001"
	}
	text := err.Error()
	if alert, ok := interact.AlertFor(err); ok {
		text = alert.Message
	}
	var details any
	if s.out.Verbose {
		details = err.Error()
	}
	if outErr := s.out.Error(code, text, details); outErr != nil {
		s.logger.Error("error writing output", "error", outErr)
	}
	return WrapExitError(ExitFailure, message, err)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
