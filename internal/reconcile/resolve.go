package reconcile

import (
	"versync/internal/version"
)

// Round records one step of the winners' resolution.
type Round struct {
	// Reference is the machine whose branch is scanned for the common header.
	Reference string

	// Participants are the branches (or branch suffixes) taking part.
	Participants version.BranchSet

	// LastCommon is the newest header shared by all participants, if any.
	LastCommon *version.Header

	// FirstConflicting maps each participant to its first header past LastCommon.
	FirstConflicting map[string]version.Header

	// Winner is the earliest first-conflicting header; nil if none.
	Winner *Winner

	// CoWinners are the participants whose first-conflicting header is Winner's.
	CoWinners map[string]version.Header
}

// WinnersLast resolves set down to a single branch and returns that branch's
// machine and last header, plus every round taken to get there.
//
// Each round runs LastCommon over the reference branch, then FirstConflicting
// and WinningFirstConflicting. With a single co-winner the answer is its last
// header. With several, the participants shrink to the co-winners' suffixes
// starting at the winning header, and the co-winner with the longest suffix
// (lowest ID on ties) becomes the next reference. When no participant has
// anything past the common header, the reference's last header is the answer.
//
// Every round strictly shortens all suffixes, so the loop terminates.
func WinnersLast(reference string, set version.BranchSet) (Winner, []Round, error) {
	participants := set
	var rounds []Round

	for {
		round := Round{
			Reference:    reference,
			Participants: participants,
		}

		ref := participants[reference]
		if common, ok := LastCommon(ref, participants); ok {
			round.LastCommon = &common
		}
		round.FirstConflicting = FirstConflicting(round.LastCommon, participants)

		if len(round.FirstConflicting) == 0 {
			rounds = append(rounds, round)
			last, _ := ref.Last()
			return Winner{Machine: reference, Header: last}, rounds, nil
		}

		winner, coWinners, err := WinningFirstConflicting(round.FirstConflicting)
		if err != nil {
			return Winner{}, rounds, err
		}
		round.Winner = &winner
		round.CoWinners = coWinners
		rounds = append(rounds, round)

		if len(coWinners) == 1 {
			last, _ := participants[winner.Machine].Last()
			return Winner{Machine: winner.Machine, Header: last}, rounds, nil
		}

		next := make(version.BranchSet, len(coWinners))
		for machine := range coWinners {
			b := participants[machine]
			next[machine] = b.Suffix(b.IndexOf(winner.Header))
		}
		participants = next
		reference = longest(next)
	}
}

// longest returns the machine with the longest branch, lowest ID on ties.
func longest(set version.BranchSet) string {
	best := ""
	bestLen := -1
	for _, machine := range set.Machines() {
		if n := len(set[machine]); n > bestLen {
			best, bestLen = machine, n
		}
	}
	return best
}
