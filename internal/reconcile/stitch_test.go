package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versync/internal/version"
)

func TestStitch_CompleteBranchesUnchanged(t *testing.T) {
	set := scenarioSingleDivergence()

	stitched, err := Stitch(set)
	require.NoError(t, err)
	assert.True(t, stitched.Equal(set))
}

func TestStitch_FillsMissingPrefix(t *testing.T) {
	set := version.BranchSet{
		"A": scenarioSingleDivergence()["A"],
		"B": branch("B/(B1,C3)/T=7"),
		"C": branch("C/(C4)/T=5"),
	}

	stitched, err := Stitch(set)
	require.NoError(t, err)

	assert.Equal(t, []string{"C/(C1)/T=1", "C/(C2)/T=2", "C/(C3)/T=3", "B/(B1,C3)/T=7"}, stitched["B"].Strings())
	assert.Equal(t, []string{"C/(C1)/T=1", "C/(C2)/T=2", "C/(C3)/T=3", "C/(C4)/T=5"}, stitched["C"].Strings())
	assert.True(t, stitched["A"].Equal(set["A"]))
}

func TestStitch_MultiHop(t *testing.T) {
	set := version.BranchSet{
		"A": branch("A/(A1,B1,C2)/T=4"),
		"B": branch("B/(B1,C2)/T=3"),
		"C": branch("C/(C1)/T=1", "C/(C2)/T=2"),
	}

	stitched, err := Stitch(set)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"C/(C1)/T=1",
		"C/(C2)/T=2",
		"B/(B1,C2)/T=3",
		"A/(A1,B1,C2)/T=4",
	}, stitched["A"].Strings())
	assert.Equal(t, []string{
		"C/(C1)/T=1",
		"C/(C2)/T=2",
		"B/(B1,C2)/T=3",
	}, stitched["B"].Strings())
}

func TestStitch_PrefersClosestPredecessor(t *testing.T) {
	// C's prefix is longer, but B's ends closer to A's first header.
	set := version.BranchSet{
		"A": branch("A/(A1,B1,C3)/T=9"),
		"B": branch("C/(C1)/T=1", "B/(B1,C1)/T=4", "C/(B1,C3)/T=6"),
		"C": branch("C/(C1)/T=1", "C/(C2)/T=2", "C/(C3)/T=3", "C/(C4)/T=5"),
	}

	stitched, err := Stitch(set)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"C/(C1)/T=1",
		"B/(B1,C1)/T=4",
		"C/(B1,C3)/T=6",
		"A/(A1,B1,C3)/T=9",
	}, stitched["A"].Strings())
}

func TestStitch_Idempotent(t *testing.T) {
	sets := []version.BranchSet{
		scenarioSingleDivergence(),
		scenarioRecursive(),
		{
			"A": branch("A/(A1,B1,C2)/T=4"),
			"B": branch("B/(B1,C2)/T=3"),
			"C": branch("C/(C1)/T=1", "C/(C2)/T=2"),
		},
		{
			"A": scenarioSingleDivergence()["A"],
			"B": branch("B/(B1,C3)/T=7"),
		},
	}

	for _, set := range sets {
		once, err := Stitch(set)
		require.NoError(t, err)
		twice, err := Stitch(once)
		require.NoError(t, err)
		assert.True(t, once.Equal(twice), "stitch(stitch(S)) != stitch(S) for %v", set)
	}
}

func TestStitch_DoesNotModifyInput(t *testing.T) {
	set := version.BranchSet{
		"A": scenarioSingleDivergence()["A"],
		"B": branch("B/(B1,C3)/T=7"),
	}
	before := set.Copy()

	_, err := Stitch(set)
	require.NoError(t, err)
	assert.True(t, set.Equal(before))
}

func TestStitch_DropsEmptyBranches(t *testing.T) {
	set := version.BranchSet{
		"A": branch("A/(A1)/T=1"),
		"B": {},
		"C": nil,
	}

	stitched, err := Stitch(set)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, stitched.Machines())
}

func TestStitch_Unresolvable(t *testing.T) {
	set := version.BranchSet{
		"A": branch("A/(A1)/T=1"),
		"B": branch("B/(B2,C1)/T=7"),
	}

	_, err := Stitch(set)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvableBranch))
	assert.True(t, IsTransient(err))

	var be *BranchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "B", be.Machine)
	assert.Equal(t, "B/(B2,C1)/T=7", be.Header.String())
}

func TestStitch_MissingReferencedAncestor(t *testing.T) {
	// B's first version was made on top of C3, but nobody holds C3 yet.
	set := version.BranchSet{
		"A": branch("C/(C1)/T=1", "C/(C2)/T=2"),
		"B": branch("B/(B1,C3)/T=7"),
		"C": branch("C/(C1)/T=1", "C/(C2)/T=2"),
	}

	_, err := Stitch(set)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvableBranch))

	var be *BranchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "B", be.Machine)
	assert.Equal(t, "B/(B1,C3)/T=7", be.Header.String())
}

func TestStitch_OwnerCounterMayJump(t *testing.T) {
	// A2 was demoted on A, so A's next version on top of B's skips to A3.
	set := version.BranchSet{
		"A": branch("A/(A3,B1)/T=4"),
		"B": branch("A/(A1)/T=1", "B/(A1,B1)/T=2"),
	}

	stitched, err := Stitch(set)
	require.NoError(t, err)
	assert.Equal(t, []string{"A/(A1)/T=1", "B/(A1,B1)/T=2", "A/(A3,B1)/T=4"}, stitched["A"].Strings())
}
