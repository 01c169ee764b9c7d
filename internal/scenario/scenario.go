package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"versync/internal/reconcile"
	"versync/internal/version"
)

// Scenario is one reconciliation fixture.
type Scenario struct {
	// Name identifies the scenario in test output.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	// Local is the machine running the reconciliation.
	Local string `yaml:"local"`

	// Branches maps each machine to its branch, oldest header first.
	Branches map[string][]string `yaml:"branches"`

	// Expect is checked by Check when present.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the outcome of a scenario. Empty fields are not checked.
type Expect struct {
	// LastCommon is the expected last common header.
	LastCommon string `yaml:"last_common,omitempty"`

	// FirstConflicting maps machines to their expected first-conflicting header.
	FirstConflicting map[string]string `yaml:"first_conflicting,omitempty"`

	// Winners lists the machines sharing the winning first-conflicting header.
	Winners []string `yaml:"winners,omitempty"`

	// WinnersLast is the expected target as "<machine>:<header>".
	WinnersLast string `yaml:"winners_last,omitempty"`

	// Error is "unresolvable" or "degenerate_tie" when reconciliation must fail.
	Error string `yaml:"error,omitempty"`
}

// Expected error names.
const (
	ErrorUnresolvable  = "unresolvable"
	ErrorDegenerateTie = "degenerate_tie"
)

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Local == "" {
		return errors.New("local is required")
	}
	if _, err := s.BranchSet(); err != nil {
		return err
	}
	if s.Expect == nil {
		return nil
	}
	switch s.Expect.Error {
	case "", ErrorUnresolvable, ErrorDegenerateTie:
	default:
		return fmt.Errorf("expect.error: unknown error %q", s.Expect.Error)
	}
	return nil
}

// BranchSet parses every branch of the scenario.
func (s *Scenario) BranchSet() (version.BranchSet, error) {
	set := make(version.BranchSet, len(s.Branches))
	for machine, lines := range s.Branches {
		b, err := version.ParseBranch(lines)
		if err != nil {
			return nil, fmt.Errorf("branches[%s]: %w", machine, err)
		}
		set[machine] = b
	}
	return set, nil
}

// Run reconciles the scenario from the local machine's point of view.
func (s *Scenario) Run(r *reconcile.Reconciler) (*reconcile.Result, error) {
	set, err := s.BranchSet()
	if err != nil {
		return nil, err
	}
	local := set[s.Local]
	delete(set, s.Local)
	return r.Reconcile(s.Local, local, set)
}

// Check compares a run against the expectation and returns every mismatch.
// A scenario without expectations always passes.
func (s *Scenario) Check(res *reconcile.Result, runErr error) error {
	e := s.Expect
	if e == nil {
		return runErr
	}

	switch e.Error {
	case ErrorUnresolvable:
		if !errors.Is(runErr, reconcile.ErrUnresolvableBranch) {
			return fmt.Errorf("error: got %v, want %s", runErr, e.Error)
		}
		return nil
	case ErrorDegenerateTie:
		if !errors.Is(runErr, reconcile.ErrDegenerateTie) {
			return fmt.Errorf("error: got %v, want %s", runErr, e.Error)
		}
		return nil
	}
	if runErr != nil {
		return runErr
	}

	var err error
	if e.LastCommon != "" {
		got := "<none>"
		if res.LastCommon != nil {
			got = res.LastCommon.String()
		}
		err = multierr.Append(err, compare("last_common", got, e.LastCommon))
	}
	for _, machine := range sortedKeys(e.FirstConflicting) {
		got := "<none>"
		if h, ok := res.FirstConflicting[machine]; ok {
			got = h.String()
		}
		err = multierr.Append(err, compare("first_conflicting["+machine+"]", got, e.FirstConflicting[machine]))
	}
	if len(res.FirstConflicting) > len(e.FirstConflicting) && len(e.FirstConflicting) > 0 {
		err = multierr.Append(err, fmt.Errorf("first_conflicting: got %d machines, want %d",
			len(res.FirstConflicting), len(e.FirstConflicting)))
	}
	if len(e.Winners) > 0 {
		want := append([]string(nil), e.Winners...)
		sort.Strings(want)
		got := sortedKeys(res.WinningFirstConflicting)
		err = multierr.Append(err, compare("winners", fmt.Sprint(got), fmt.Sprint(want)))
	}
	if e.WinnersLast != "" {
		got := "<none>"
		if res.WinnersLast != nil {
			got = res.WinnersLast.String()
		}
		err = multierr.Append(err, compare("winners_last", got, e.WinnersLast))
	}
	return err
}

func compare(field, got, want string) error {
	if got == want {
		return nil
	}
	return fmt.Errorf("%s: got %s, want %s", field, got, want)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
