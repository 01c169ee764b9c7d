package reconcile

import (
	"versync/internal/clock"
	"versync/internal/version"
)

// Stitch returns a copy of set in which every branch reaches back to the root
// of the history. A branch whose first header is not a root gets the prefix
// of another branch spliced in front of it: the other branch is searched from
// its end for the last header H <= first; if H equals first, everything before
// H is prepended, otherwise everything up to and including H. A prefix only
// qualifies if H already carries every other machine's counter from first's
// clock; otherwise an ancestor that first refers to is missing from every
// known branch and splicing would hide the gap. When several branches qualify, the prefix ending in the causally greatest header wins;
// prefixes ending in the same (or a simultaneous) header are ranked by length,
// then by lower machine ID.
//
// Machines are processed in ascending ID order and passes repeat until no
// branch changes, so gaps that must be closed through more than one other
// branch are filled too. Running Stitch on its own output is a no-op.
//
// Empty branches are dropped. A branch that still does not start at a root
// returns ErrUnresolvableBranch.
func Stitch(set version.BranchSet) (version.BranchSet, error) {
	stitched := set.NonEmpty()
	machines := stitched.Machines()

	maxPasses := 1
	for _, b := range stitched {
		maxPasses += len(b)
	}

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, machine := range machines {
			if extended, ok := extend(machine, stitched, machines); ok {
				stitched[machine] = extended
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, machine := range machines {
		first := stitched[machine][0]
		if !first.IsRoot() {
			return nil, &BranchError{Machine: machine, Header: first, Err: ErrUnresolvableBranch}
		}
	}

	return stitched, nil
}

// extend returns the machine's branch with the best available prefix
// prepended, or false if no other branch can make it longer.
func extend(machine string, set version.BranchSet, machines []string) (version.Branch, bool) {
	b := set[machine]
	first := b[0]
	if first.IsRoot() {
		return nil, false
	}

	var best version.Branch
	for _, other := range machines {
		if other == machine {
			continue
		}
		prefix := prefixBefore(first, set[other])
		if len(prefix) == 0 || !covers(prefix[len(prefix)-1], first) {
			continue
		}
		if better(prefix, best) {
			best = prefix
		}
	}
	if len(best) == 0 {
		return nil, false
	}

	out := make(version.Branch, 0, len(best)+len(b))
	out = append(out, best.Copy()...)
	out = append(out, b...)
	return out, true
}

// better reports whether candidate is a closer prefix than best.
func better(candidate, best version.Branch) bool {
	if len(candidate) == 0 {
		return false
	}
	if len(best) == 0 {
		return true
	}
	anchor := candidate[len(candidate)-1]
	switch anchor.Compare(best[len(best)-1]) {
	case clock.Greater:
		return true
	case clock.Smaller:
		return false
	default:
		return len(candidate) > len(best)
	}
}

// prefixBefore returns the part of c that causally precedes first.
func prefixBefore(first version.Header, c version.Branch) version.Branch {
	for j := len(c) - 1; j >= 0; j-- {
		switch c[j].Compare(first) {
		case clock.Equal:
			return c[:j]
		case clock.Smaller:
			return c[:j+1]
		}
	}
	return nil
}

// covers reports whether h holds every counter of first's clock except the
// owner's own, which may have advanced by more than one.
func covers(h, first version.Header) bool {
	for _, k := range first.Clock.Keys() {
		if k == first.Owner {
			continue
		}
		if h.Clock.Get(k) < first.Clock.Get(k) {
			return false
		}
	}
	return true
}
