package cli

import (
	"github.com/spf13/cobra"
)

// CommitOutput is the commit command's result.
type CommitOutput struct {
	Version string `json:"version"`
}

func (o CommitOutput) String() string {
	return "committed " + o.Version
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Record a new local version",
		Long: `Append a new version to the local branch. Its clock is the branch head's
clock with this machine's counter advanced.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(rootOpts, cmd)
		},
	}
}

func runCommit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	r, err := opts.openRepo(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	defer r.Close()

	h, err := r.syncer.Commit(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	return formatter.Success(CommitOutput{Version: h.String()})
}
