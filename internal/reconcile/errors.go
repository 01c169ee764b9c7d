package reconcile

import (
	"errors"
	"fmt"

	"versync/internal/version"
)

var (
	// ErrUnresolvableBranch indicates that a branch's missing prefix could not
	// be found in any known branch. Usually a peer is mid-upload; retry later.
	ErrUnresolvableBranch = errors.New("unresolvable branch")

	// ErrDegenerateTie indicates two different versions with the same owner
	// and timestamp. The model does not allow this, so the data is corrupt.
	ErrDegenerateTie = errors.New("degenerate tie")
)

// BranchError reports a reconciliation failure tied to a machine's branch.
type BranchError struct {
	// Machine owns the offending branch.
	Machine string

	// Header is the version the failure was detected at.
	Header version.Header

	// Conflict is the other machine involved, for degenerate ties.
	Conflict string

	// ConflictHeader is the other machine's version, for degenerate ties.
	ConflictHeader version.Header

	Err error
}

func (e *BranchError) Error() string {
	if e.Conflict != "" {
		return fmt.Sprintf("%v: %s (machine=%s) vs %s (machine=%s)",
			e.Err, e.Header, e.Machine, e.ConflictHeader, e.Conflict)
	}
	return fmt.Sprintf("%v: machine %s starts at %s", e.Err, e.Machine, e.Header)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}

// IsTransient returns true if the error may go away once more remote data
// is available.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnresolvableBranch)
}
