package reconcile

import (
	"github.com/sirupsen/logrus"

	"versync/internal/version"
)

// Result is the outcome of one reconciliation round.
type Result struct {
	// Local is the local machine ID.
	Local string

	// Stitched holds every non-empty branch, local included, after stitching.
	Stitched version.BranchSet

	// LastCommon is the newest version shared by all machines; nil if none.
	LastCommon *version.Header

	// FirstConflicting maps each machine to its first version past LastCommon.
	FirstConflicting map[string]version.Header

	// Winner is the earliest first-conflicting version; nil if nobody diverged.
	Winner *Winner

	// WinningFirstConflicting maps each co-winner to the winning version.
	WinningFirstConflicting map[string]version.Header

	// WinnersLast is the version every machine must end up at; nil if no
	// branches were known at all.
	WinnersLast *Winner

	// WinnerBranch is the stitched branch of WinnersLast.Machine.
	WinnerBranch version.Branch

	// Rounds traces the winners' resolution.
	Rounds []Round
}

// UpToDate reports whether the local branch already ends at the target.
func (r *Result) UpToDate(local version.Branch) bool {
	if r.WinnersLast == nil {
		return true
	}
	last, ok := local.Last()
	return ok && last.Same(r.WinnersLast.Header)
}

// Reconciler runs the reconciliation pipeline and traces it to a logger.
// It holds no state between calls.
type Reconciler struct {
	log *logrus.Entry
}

// New creates a reconciler. A nil logger uses the logrus standard logger.
func New(log *logrus.Entry) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{log: log.WithField("component", "reconciler")}
}

// Reconcile runs the pipeline with the standard logger.
func Reconcile(local string, localBranch version.Branch, remote version.BranchSet) (*Result, error) {
	return New(nil).Reconcile(local, localBranch, remote)
}

// Reconcile stitches the local branch together with the remote branches and
// resolves them to a single target version. The local branch replaces any
// remote entry for the local machine. Inputs are not modified.
func (r *Reconciler) Reconcile(local string, localBranch version.Branch, remote version.BranchSet) (*Result, error) {
	all := remote.Copy()
	all[local] = localBranch.Copy()

	stitched, err := Stitch(all)
	if err != nil {
		r.log.WithError(err).Debug("Stitching failed")
		return nil, err
	}

	res := &Result{
		Local:                   local,
		Stitched:                stitched,
		FirstConflicting:        map[string]version.Header{},
		WinningFirstConflicting: map[string]version.Header{},
	}
	if len(stitched) == 0 {
		return res, nil
	}

	reference := local
	if _, ok := stitched[local]; !ok {
		reference = longest(stitched)
	}

	target, rounds, err := WinnersLast(reference, stitched)
	if err != nil {
		r.log.WithError(err).Warn("Winner selection failed")
		return nil, err
	}

	top := rounds[0]
	res.Rounds = rounds
	res.LastCommon = top.LastCommon
	res.FirstConflicting = top.FirstConflicting
	if top.Winner != nil {
		res.Winner = top.Winner
		res.WinningFirstConflicting = top.CoWinners
	}
	res.WinnersLast = &target
	res.WinnerBranch = stitched[target.Machine]

	for i, round := range rounds {
		fields := logrus.Fields{
			"round":        i,
			"reference":    round.Reference,
			"participants": len(round.Participants),
			"candidates":   len(round.FirstConflicting),
		}
		if round.LastCommon != nil {
			fields["last_common"] = round.LastCommon.String()
		}
		if round.Winner != nil {
			fields["winner"] = round.Winner.String()
			fields["co_winners"] = len(round.CoWinners)
		}
		r.log.WithFields(fields).Debug("Resolution round")
	}
	r.log.WithFields(logrus.Fields{
		"local":        local,
		"winners_last": target.String(),
	}).Debug("Reconciliation finished")

	return res, nil
}
