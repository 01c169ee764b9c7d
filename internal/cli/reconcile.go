package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"versync/internal/config"
	"versync/internal/history"
	"versync/internal/reconcile"
	"versync/internal/repair"
	"versync/internal/scenario"
	"versync/internal/version"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Sources string
	Local   string
}

// ReconcileOutput is the reconcile command's result.
type ReconcileOutput struct {
	Scenario         string            `json:"scenario,omitempty"`
	Local            string            `json:"local"`
	LastCommon       string            `json:"last_common,omitempty"`
	FirstConflicting map[string]string `json:"first_conflicting,omitempty"`
	Winner           string            `json:"winner,omitempty"`
	Winners          []string          `json:"winners,omitempty"`
	WinnersLast      string            `json:"winners_last,omitempty"`
	Action           string            `json:"action"`
	Demote           []string          `json:"demote,omitempty"`
	Adopt            []string          `json:"adopt,omitempty"`

	// Expectations is "ok" when the scenario's expectations were checked.
	Expectations string `json:"expectations,omitempty"`

	// Error is the expected reconciliation error, if the scenario wanted one.
	Error string `json:"error,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile [scenario.yaml]",
		Short: "Reconcile branches and print the winning version",
		Long: `Run the reconciliation of a set of branches without touching any repository.

Branches come either from a scenario file or from one text file per
machine, one header per line ("A/(A3,B2,C4)/T=18"). When the scenario
lists expectations they are checked and any mismatch fails the command.

Example:
  versync reconcile testdata/single_divergence.yaml
  versync reconcile --sources A=a.txt,B=b.txt --local A`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sources, "sources", "", "branch files as machine=path,... instead of a scenario")
	cmd.Flags().StringVar(&opts.Local, "local", "", "local machine for --sources (default: first source)")

	return cmd
}

func runReconcile(opts *ReconcileOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if (len(args) == 1) == (opts.Sources != "") {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput,
			errors.New("pass either a scenario file or --sources"))
	}

	var sc *scenario.Scenario
	var err error
	if len(args) == 1 {
		sc, err = scenario.Load(args[0])
	} else {
		sc, err = scenarioFromSources(opts.Sources, opts.Local)
	}
	if err != nil {
		code := ErrCodeInvalidInput
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return formatter.Fail(ExitCommandError, code, err)
	}

	log, err := opts.logger(config.Default().Log, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	formatter.VerboseLog("Reconciling %d branch(es) as %s", len(sc.Branches), sc.Local)
	res, runErr := sc.Run(reconcile.New(log))

	if checkErr := sc.Check(res, runErr); checkErr != nil {
		if runErr != nil && errors.Is(checkErr, runErr) {
			return formatter.Fail(ExitFailure, errorCode(runErr), runErr)
		}
		return formatter.Fail(ExitFailure, ErrCodeExpectation, fmt.Errorf("expectations not met: %w", checkErr))
	}

	out := ReconcileOutput{Scenario: sc.Name, Local: sc.Local}
	if sc.Expect != nil {
		out.Expectations = "ok"
	}
	if runErr != nil {
		out.Action = "FAILED"
		out.Error = runErr.Error()
		return formatter.Success(out)
	}

	// Branches given partially are planned from their stitched form.
	fillResult(&out, res, repair.NewPlan(res.Stitched[sc.Local], res))
	return formatter.Success(out)
}

// scenarioFromSources reads one text branch file per machine.
func scenarioFromSources(list, local string) (*scenario.Scenario, error) {
	sources, err := config.ParseSources(list)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("no sources given")
	}

	sc := &scenario.Scenario{Branches: map[string][]string{}}
	for _, src := range sources {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, err
		}
		b, err := history.ReadText(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Path, err)
		}
		sc.Branches[src.Machine] = b.Strings()
	}

	sc.Local = sources[0].Machine
	if local != "" {
		if sc.Local, err = config.NormalizeMachine(local); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

func fillResult(out *ReconcileOutput, res *reconcile.Result, plan repair.Plan) {
	if res.LastCommon != nil {
		out.LastCommon = res.LastCommon.String()
	}
	if len(res.FirstConflicting) > 0 {
		out.FirstConflicting = make(map[string]string, len(res.FirstConflicting))
		for machine, h := range res.FirstConflicting {
			out.FirstConflicting[machine] = h.String()
		}
	}
	if res.Winner != nil {
		out.Winner = res.Winner.String()
		for machine := range res.WinningFirstConflicting {
			out.Winners = append(out.Winners, machine)
		}
		sort.Strings(out.Winners)
	}
	if res.WinnersLast != nil {
		out.WinnersLast = res.WinnersLast.String()
	}
	out.Action = plan.Action.String()
	out.Demote = headerStrings(plan.Demote)
	out.Adopt = headerStrings(plan.Adopt)
}

func headerStrings(b version.Branch) []string {
	if len(b) == 0 {
		return nil
	}
	return b.Strings()
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrUnresolvableBranch):
		return ErrCodeUnresolvable
	case errors.Is(err, reconcile.ErrDegenerateTie):
		return ErrCodeDegenerateTie
	default:
		return ErrCodeGeneric
	}
}

// String renders the text output.
func (o ReconcileOutput) String() string {
	var sb strings.Builder
	line := func(label, value string) {
		if value == "" {
			value = "none"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, value)
	}
	list := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s:\n", label)
		for _, item := range items {
			fmt.Fprintf(&sb, "  %s\n", item)
		}
	}

	if o.Scenario != "" {
		line("scenario", o.Scenario)
	}
	line("local", o.Local)
	if o.Error != "" {
		line("error", o.Error)
	} else {
		line("last common", o.LastCommon)
		if len(o.FirstConflicting) == 0 {
			line("first conflicting", "")
		} else {
			machines := make([]string, 0, len(o.FirstConflicting))
			for machine := range o.FirstConflicting {
				machines = append(machines, machine)
			}
			sort.Strings(machines)
			items := make([]string, len(machines))
			for i, machine := range machines {
				items[i] = machine + ": " + o.FirstConflicting[machine]
			}
			list("first conflicting", items)
		}
		line("winner", o.Winner)
		if len(o.Winners) > 0 {
			line("co-winners", strings.Join(o.Winners, ", "))
		}
		line("winners' last", o.WinnersLast)
		line("action", o.Action)
		list("demote", o.Demote)
		list("adopt", o.Adopt)
	}
	if o.Expectations != "" {
		line("expectations", o.Expectations)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
