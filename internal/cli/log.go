package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// LogOutput lists the local version log.
type LogOutput struct {
	Machine string   `json:"machine"`
	Branch  []string `json:"branch"`
	Dirty   []string `json:"dirty"`
}

func (o LogOutput) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "machine: %s\n", o.Machine)
	section := func(label string, items []string) {
		fmt.Fprintf(&sb, "%s (%d):\n", label, len(items))
		for _, item := range items {
			fmt.Fprintf(&sb, "  %s\n", item)
		}
	}
	section("branch", o.Branch)
	section("dirty", o.Dirty)
	return strings.TrimSuffix(sb.String(), "\n")
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "log",
		Short:         "Print the local branch and the demoted versions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(rootOpts, cmd)
		},
	}
}

func runLog(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	r, err := opts.openRepo(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	defer r.Close()

	branch, err := r.store.Branch(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}
	dirty, err := r.store.Dirty(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	return formatter.Success(LogOutput{
		Machine: r.cfg.Machine,
		Branch:  branch.Strings(),
		Dirty:   dirty.Strings(),
	})
}
