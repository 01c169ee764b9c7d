package repair

import (
	"versync/internal/reconcile"
	"versync/internal/version"
)

// Action is what a machine has to do after reconciliation.
type Action int

const (
	// UpToDate means the local branch already ends at the target version.
	UpToDate Action = iota
	// Adopt means the local branch must switch to the winning branch.
	Adopt
)

func (a Action) String() string {
	if a == Adopt {
		return "ADOPT"
	}
	return "UP_TO_DATE"
}

// Plan lists the local changes needed to reach the target version.
type Plan struct {
	Action Action

	// Target is the version the local branch must end at; nil when nothing
	// is known anywhere.
	Target *reconcile.Winner

	// Demote holds local versions that are not on the winning branch, oldest
	// first.
	Demote version.Branch

	// Adopt holds winning versions the local branch lacks, oldest first.
	Adopt version.Branch
}

// NewPlan compares the local branch with the winning branch of res. The two
// branches share a prefix up to their divergence point, which is never before
// the last common version: local versions past it are demoted and the
// winning branch's versions past it are adopted.
func NewPlan(local version.Branch, res *reconcile.Result) Plan {
	if res == nil || res.WinnersLast == nil || res.UpToDate(local) {
		p := Plan{Action: UpToDate}
		if res != nil {
			p.Target = res.WinnersLast
		}
		return p
	}

	winning := res.WinnerBranch
	shared := 0
	for shared < len(local) && shared < len(winning) && local[shared].Same(winning[shared]) {
		shared++
	}

	return Plan{
		Action: Adopt,
		Target: res.WinnersLast,
		Demote: local.Suffix(shared).Copy(),
		Adopt:  winning.Suffix(shared).Copy(),
	}
}

// Empty reports whether applying the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Demote) == 0 && len(p.Adopt) == 0
}
