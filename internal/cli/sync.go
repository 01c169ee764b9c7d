package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"versync/internal/reconcile"
	"versync/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Once bool
}

// SyncOutput is the result of a single cycle.
type SyncOutput struct {
	Cycle    string   `json:"cycle"`
	Action   string   `json:"action"`
	Target   string   `json:"target,omitempty"`
	Demoted  []string `json:"demoted,omitempty"`
	Adopted  []string `json:"adopted,omitempty"`
	Uploaded string   `json:"uploaded,omitempty"`
	Headers  int      `json:"headers"`
}

func (o SyncOutput) String() string {
	s := fmt.Sprintf("cycle %s: %s", o.Cycle, o.Action)
	if o.Action == "ADOPT" {
		s += fmt.Sprintf(", demoted %d, adopted %d", len(o.Demoted), len(o.Adopted))
	}
	if o.Uploaded != "" {
		s += fmt.Sprintf(", uploaded %d version(s) to %s", o.Headers, o.Uploaded)
	}
	return s
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local branch with the remote store",
		Long: `Download every machine's history, adopt the winning branch and upload the
local versions the remote store has not seen yet. Without --once the cycle
repeats every sync.interval until interrupted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single cycle and exit")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	r, err := opts.openRepo(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	defer r.Close()

	if opts.Once {
		report, err := r.syncer.Cycle(cmd.Context())
		if err != nil {
			return formatter.Fail(ExitFailure, errorCode(err), err)
		}
		return formatter.Success(syncOutput(report))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.log.WithField("interval", r.cfg.Sync.Interval).Info("Starting sync loop")
	if err := r.syncer.Run(ctx, r.cfg.Sync.Interval); err != nil {
		code := ErrCodeGeneric
		if reconcile.IsTransient(err) {
			code = ErrCodeUnresolvable
		}
		return formatter.Fail(ExitFailure, code, err)
	}
	r.log.Info("Sync loop stopped")
	return nil
}

func syncOutput(report syncer.Report) SyncOutput {
	out := SyncOutput{
		Cycle:    report.ID.String(),
		Action:   report.Plan.Action.String(),
		Demoted:  headerStrings(report.Plan.Demote),
		Adopted:  headerStrings(report.Plan.Adopt),
		Uploaded: report.Uploaded,
		Headers:  report.Headers,
	}
	if report.Plan.Target != nil {
		out.Target = report.Plan.Target.String()
	}
	return out
}

