package cli

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"versync/internal/peer"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured remote store to peers over gRPC",
		Long: `Expose the configured remote store so that machines whose remote.type is
"peer" can exchange history files through this one.

Example:
  versync serve --listen 0.0.0.0:7420`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default: listen from the config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, log, err := opts.loadConfig(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	backend, err := newBackend(cmd.Context(), cfg.Remote)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	defer backend.Close()

	addr := cfg.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log = log.WithField("remote", cfg.Remote.Type)
	if err := peer.NewServer(backend, log).Serve(ctx, lis); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	return nil
}
