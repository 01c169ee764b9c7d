package reconcile

import (
	"versync/internal/version"
)

var branch = version.MustParseBranch

var header = version.MustParseHeader

var commonC = []string{
	"C/(C1)/T=1",
	"C/(C2)/T=2",
	"C/(C3)/T=3",
}

func with(prefix []string, rest ...string) version.Branch {
	lines := append(append([]string{}, prefix...), rest...)
	return branch(lines...)
}

// scenarioSingleDivergence: A and C continue via C4@5, B via (B1,C3)@7.
func scenarioSingleDivergence() version.BranchSet {
	return version.BranchSet{
		"A": with(commonC,
			"C/(C4)/T=5",
			"A/(A1,C4)/T=8",
			"A/(A2,C4)/T=9",
			"A/(A3,C4)/T=10",
		),
		"B": with(commonC,
			"B/(B1,C3)/T=7",
		),
		"C": with(commonC,
			"C/(C4)/T=5",
		),
	}
}

// scenarioRecursive: A and B share (A2,C4)@9 and then diverge again.
func scenarioRecursive() version.BranchSet {
	shared := append(append([]string{}, commonC...), "C/(C4)/T=5", "A/(A1,C4)/T=8")
	return version.BranchSet{
		"A": with(shared,
			"A/(A2,C4)/T=9",
			"A/(A3,C4)/T=10",
			"A/(A4,C4)/T=11",
		),
		"B": with(shared,
			"A/(A2,C4)/T=9",
			"A/(A3,C4)/T=10",
			"B/(A3,B1,C4)/T=12",
		),
		"C": with(shared,
			"C/(A1,C5)/T=10",
		),
	}
}

func split(set version.BranchSet, local string) (version.Branch, version.BranchSet) {
	remote := set.Copy()
	delete(remote, local)
	return set[local].Copy(), remote
}
