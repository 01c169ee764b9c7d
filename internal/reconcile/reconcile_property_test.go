package reconcile

import (
	"math/rand"
	"testing"

	"versync/internal/version"
)

// simulate builds a random but well-formed history: machines commit on top of
// their own branch or fast-forward to another machine's branch that already
// contains their last version. Timestamps grow monotonically so no degenerate
// ties appear.
func simulate(seed int64, machines []string, steps int) version.BranchSet {
	rng := rand.New(rand.NewSource(seed))
	set := make(version.BranchSet, len(machines))

	root := header(machines[0] + "/(" + machines[0] + "1)/T=1")
	for _, m := range machines {
		set[m] = version.Branch{root}
	}

	ts := int64(1)
	for i := 0; i < steps; i++ {
		m := machines[rng.Intn(len(machines))]
		if rng.Intn(3) == 0 {
			other := machines[rng.Intn(len(machines))]
			last, _ := set[m].Last()
			if set[other].Contains(last) {
				set[m] = set[other].Copy()
				continue
			}
		}
		ts += int64(1 + rng.Intn(3))
		last, _ := set[m].Last()
		vc := last.Clock.Copy()
		vc.Increment(m)
		set[m] = append(set[m].Copy(), version.NewHeader(m, vc, ts))
	}
	return set
}

// truncate drops a random prefix from non-local branches. A branch is only
// cut right after a header the local branch also holds.
func truncate(seed int64, set version.BranchSet, local string) version.BranchSet {
	rng := rand.New(rand.NewSource(seed))
	out := set.Copy()
	for _, m := range out.Machines() {
		b := out[m]
		if m == local || len(b) < 2 {
			continue
		}
		i := 1 + rng.Intn(len(b)-1)
		if set[local].Contains(b[i-1]) {
			out[m] = b.Suffix(i).Copy()
		}
	}
	return out
}

var propertyMachines = []string{"A", "B", "C", "D"}

// TestReconcile_Property_StitchIdempotent tests that stitching a stitched set changes nothing
func TestReconcile_Property_StitchIdempotent(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		set := simulate(seed, propertyMachines, 30)
		once, err := Stitch(set)
		if err != nil {
			t.Fatalf("seed %d: stitch failed: %v", seed, err)
		}
		twice, err := Stitch(once)
		if err != nil {
			t.Fatalf("seed %d: second stitch failed: %v", seed, err)
		}
		if !once.Equal(twice) {
			t.Errorf("seed %d: stitch is not idempotent", seed)
		}
	}
}

// TestReconcile_Property_LastCommonInEveryBranch tests that the last common header is contained in all branches
func TestReconcile_Property_LastCommonInEveryBranch(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		set := simulate(seed, propertyMachines, 30)
		local, remote := split(set, "A")

		res, err := Reconcile("A", local, remote)
		if err != nil {
			t.Fatalf("seed %d: reconcile failed: %v", seed, err)
		}
		if res.LastCommon == nil {
			t.Errorf("seed %d: histories share a root but no common header was found", seed)
			continue
		}
		for _, m := range res.Stitched.Machines() {
			if !res.Stitched[m].Contains(*res.LastCommon) {
				t.Errorf("seed %d: last common %s missing from %s", seed, res.LastCommon, m)
			}
		}
	}
}

// TestReconcile_Property_TargetEndsAStitchedBranch tests that the target is the last header of the winner's branch
func TestReconcile_Property_TargetEndsAStitchedBranch(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		set := simulate(seed, propertyMachines, 30)
		local, remote := split(set, "B")

		res, err := Reconcile("B", local, remote)
		if err != nil {
			t.Fatalf("seed %d: reconcile failed: %v", seed, err)
		}
		last, _ := res.Stitched[res.WinnersLast.Machine].Last()
		if !last.Same(res.WinnersLast.Header) {
			t.Errorf("seed %d: target %s is not the end of %s's branch", seed, res.WinnersLast, res.WinnersLast.Machine)
		}
	}
}

// TestReconcile_Property_SameTargetFromEveryMachine tests that all machines agree on the target version
func TestReconcile_Property_SameTargetFromEveryMachine(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		set := simulate(seed, propertyMachines, 30)

		var want *version.Header
		for _, m := range propertyMachines {
			local, remote := split(set, m)
			res, err := Reconcile(m, local, remote)
			if err != nil {
				t.Fatalf("seed %d machine %s: reconcile failed: %v", seed, m, err)
			}
			if want == nil {
				h := res.WinnersLast.Header
				want = &h
				continue
			}
			if !res.WinnersLast.Header.Same(*want) {
				t.Errorf("seed %d: machine %s targets %s, want %s", seed, m, res.WinnersLast.Header, want)
			}
		}
	}
}

// TestReconcile_Property_TruncationStitchesBack tests that dropped prefixes are recovered from other branches
func TestReconcile_Property_TruncationStitchesBack(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		set := simulate(seed, propertyMachines, 30)
		full, err := Reconcile("A", set["A"], set)
		if err != nil {
			t.Fatalf("seed %d: reconcile failed: %v", seed, err)
		}

		cut := truncate(seed+1000, set, "A")
		partial, err := Reconcile("A", set["A"], cut)
		if err != nil {
			t.Fatalf("seed %d: reconcile of truncated set failed: %v", seed, err)
		}
		if !partial.Stitched.Equal(full.Stitched) {
			t.Errorf("seed %d: truncated branches were not stitched back", seed)
		}
		if !partial.WinnersLast.Header.Same(full.WinnersLast.Header) {
			t.Errorf("seed %d: truncated target %s, full target %s", seed, partial.WinnersLast, full.WinnersLast)
		}
	}
}

// TestReconcile_Property_Deterministic tests that repeated runs give the same answer
func TestReconcile_Property_Deterministic(t *testing.T) {
	set := simulate(7, propertyMachines, 40)
	local, remote := split(set, "C")
	before := remote.Copy()

	first, err := Reconcile("C", local, remote)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		res, err := Reconcile("C", local, remote)
		if err != nil {
			t.Fatalf("run %d: reconcile failed: %v", i, err)
		}
		if res.WinnersLast.String() != first.WinnersLast.String() {
			t.Errorf("run %d: got %s, want %s", i, res.WinnersLast, first.WinnersLast)
		}
	}
	if !remote.Equal(before) {
		t.Error("remote branches were modified")
	}
}
