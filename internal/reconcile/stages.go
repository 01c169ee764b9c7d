package reconcile

import (
	"sort"

	"versync/internal/version"
)

// Winner names a machine together with one of its versions.
type Winner struct {
	Machine string
	Header  version.Header
}

// String renders "<machine>:<header>".
func (w Winner) String() string {
	return w.Machine + ":" + w.Header.String()
}

// LastCommon scans reference from its newest header to its oldest and returns
// the first one that every branch in set contains. It returns false when the
// branches share no known version.
func LastCommon(reference version.Branch, set version.BranchSet) (version.Header, bool) {
	for i := len(reference) - 1; i >= 0; i-- {
		if inAll(reference[i], set) {
			return reference[i], true
		}
	}
	return version.Header{}, false
}

func inAll(h version.Header, set version.BranchSet) bool {
	for _, b := range set {
		if !b.Contains(h) {
			return false
		}
	}
	return true
}

// FirstConflicting returns, per machine, the header right after common. With
// a nil common every branch's first header is returned. Branches that end at
// common contribute no entry.
func FirstConflicting(common *version.Header, set version.BranchSet) map[string]version.Header {
	out := make(map[string]version.Header, len(set))
	for machine, b := range set {
		next := 0
		if common != nil {
			idx := b.IndexOf(*common)
			if idx < 0 {
				continue
			}
			next = idx + 1
		}
		if next < len(b) {
			out[machine] = b[next]
		}
	}
	return out
}

// WinningFirstConflicting picks the earliest candidate: ascending timestamp,
// then ascending owner ID, then ascending machine ID. Every machine whose
// candidate is the same version as the winner is a co-winner. The result does
// not depend on map iteration order.
//
// An empty candidate map yields a zero Winner and no co-winners. Two
// candidates with equal timestamp and owner but different clocks return
// ErrDegenerateTie.
func WinningFirstConflicting(candidates map[string]version.Header) (Winner, map[string]version.Header, error) {
	if len(candidates) == 0 {
		return Winner{}, map[string]version.Header{}, nil
	}

	sorted := make([]Winner, 0, len(candidates))
	for machine, h := range candidates {
		sorted = append(sorted, Winner{Machine: machine, Header: h})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return before(sorted[i], sorted[j])
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Header.Timestamp == cur.Header.Timestamp &&
			prev.Header.Owner == cur.Header.Owner &&
			!prev.Header.Same(cur.Header) {
			return Winner{}, nil, &BranchError{
				Machine:        prev.Machine,
				Header:         prev.Header,
				Conflict:       cur.Machine,
				ConflictHeader: cur.Header,
				Err:            ErrDegenerateTie,
			}
		}
	}

	winner := sorted[0]
	coWinners := make(map[string]version.Header)
	for _, c := range sorted {
		if c.Header.Same(winner.Header) {
			coWinners[c.Machine] = c.Header
		}
	}

	return winner, coWinners, nil
}

func before(a, b Winner) bool {
	if a.Header.Timestamp != b.Header.Timestamp {
		return a.Header.Timestamp < b.Header.Timestamp
	}
	if a.Header.Owner != b.Header.Owner {
		return a.Header.Owner < b.Header.Owner
	}
	return a.Machine < b.Machine
}
