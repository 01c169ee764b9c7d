package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versync/internal/version"
)

func TestLastCommon(t *testing.T) {
	set := scenarioSingleDivergence()

	common, ok := LastCommon(set["A"], set)
	require.True(t, ok)
	assert.Equal(t, "C/(C3)/T=3", common.String())

	common, ok = LastCommon(set["C"], set)
	require.True(t, ok)
	assert.Equal(t, "C/(C3)/T=3", common.String())
}

func TestLastCommon_IdentityIsClockOnly(t *testing.T) {
	// Same clock reported with a different timestamp is still the same version.
	set := version.BranchSet{
		"A": branch("C/(C1)/T=1", "C/(C2)/T=2"),
		"B": branch("C/(C1)/T=1", "C/(C2)/T=99"),
	}

	common, ok := LastCommon(set["A"], set)
	require.True(t, ok)
	assert.Equal(t, "C/(C2)/T=2", common.String())
}

func TestLastCommon_None(t *testing.T) {
	set := version.BranchSet{
		"A": branch("A/(A1)/T=1"),
		"B": branch("B/(B1)/T=2"),
	}

	_, ok := LastCommon(set["A"], set)
	assert.False(t, ok)
}

func TestFirstConflicting(t *testing.T) {
	set := scenarioSingleDivergence()
	common := header("C/(C3)/T=3")

	got := FirstConflicting(&common, set)
	require.Len(t, got, 3)
	assert.Equal(t, "C/(C4)/T=5", got["A"].String())
	assert.Equal(t, "B/(B1,C3)/T=7", got["B"].String())
	assert.Equal(t, "C/(C4)/T=5", got["C"].String())
}

func TestFirstConflicting_BranchEndsAtCommon(t *testing.T) {
	set := version.BranchSet{
		"A": branch("C/(C1)/T=1", "C/(C2)/T=2", "A/(A1,C2)/T=3"),
		"C": branch("C/(C1)/T=1", "C/(C2)/T=2"),
	}
	common := header("C/(C2)/T=2")

	got := FirstConflicting(&common, set)
	assert.Len(t, got, 1)
	assert.Equal(t, "A/(A1,C2)/T=3", got["A"].String())
}

func TestFirstConflicting_NoCommonUsesFirstHeader(t *testing.T) {
	set := version.BranchSet{
		"A": branch("A/(A1)/T=1", "A/(A2)/T=2"),
		"B": branch("B/(B1)/T=3"),
	}

	got := FirstConflicting(nil, set)
	assert.Equal(t, "A/(A1)/T=1", got["A"].String())
	assert.Equal(t, "B/(B1)/T=3", got["B"].String())
}

func TestWinningFirstConflicting(t *testing.T) {
	candidates := map[string]version.Header{
		"A": header("C/(C4)/T=5"),
		"B": header("B/(B1,C3)/T=7"),
		"C": header("C/(C4)/T=5"),
	}

	winner, coWinners, err := WinningFirstConflicting(candidates)
	require.NoError(t, err)
	assert.Equal(t, "A:C/(C4)/T=5", winner.String())
	assert.Len(t, coWinners, 2)
	assert.Contains(t, coWinners, "A")
	assert.Contains(t, coWinners, "C")
}

func TestWinningFirstConflicting_TieBreaks(t *testing.T) {
	tests := []struct {
		name       string
		candidates map[string]version.Header
		want       string
	}{
		{
			name: "earlier timestamp wins",
			candidates: map[string]version.Header{
				"A": header("A/(A1,C1)/T=9"),
				"B": header("B/(B1,C1)/T=8"),
			},
			want: "B",
		},
		{
			name: "lower owner on equal timestamp",
			candidates: map[string]version.Header{
				"A": header("B/(B1,C1)/T=9999999999999"),
				"B": header("A/(A1,C1)/T=9999999999999"),
			},
			want: "B",
		},
		{
			name: "lower machine on identical versions",
			candidates: map[string]version.Header{
				"D": header("A/(A1,C1)/T=5"),
				"B": header("A/(A1,C1)/T=5"),
				"C": header("A/(A1,C1)/T=5"),
			},
			want: "B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				winner, _, err := WinningFirstConflicting(tt.candidates)
				require.NoError(t, err)
				assert.Equal(t, tt.want, winner.Machine)
			}
		})
	}
}

func TestWinningFirstConflicting_DegenerateTie(t *testing.T) {
	candidates := map[string]version.Header{
		"A": header("A/(A1,C1)/T=5"),
		"B": header("A/(A2,C1)/T=5"),
	}

	_, _, err := WinningFirstConflicting(candidates)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDegenerateTie))
	assert.False(t, IsTransient(err))

	var be *BranchError
	require.True(t, errors.As(err, &be))
	assert.ElementsMatch(t, []string{"A", "B"}, []string{be.Machine, be.Conflict})
}

func TestWinningFirstConflicting_Empty(t *testing.T) {
	winner, coWinners, err := WinningFirstConflicting(nil)
	require.NoError(t, err)
	assert.Equal(t, Winner{}, winner)
	assert.Empty(t, coWinners)
}

func TestWinnersLast_SingleBranch(t *testing.T) {
	set := version.BranchSet{
		"A": branch("C/(C1)/T=1", "C/(C2)/T=2"),
	}

	winner, rounds, err := WinnersLast("A", set)
	require.NoError(t, err)
	assert.Equal(t, "A:C/(C2)/T=2", winner.String())
	require.Len(t, rounds, 1)
	assert.Nil(t, rounds[0].Winner)
}

func TestWinnersLast_IdenticalCoWinners(t *testing.T) {
	set := version.BranchSet{
		"A": branch("C/(C1)/T=1", "C/(C2)/T=2", "A/(A1,C2)/T=5"),
		"B": branch("C/(C1)/T=1", "C/(C2)/T=2", "A/(A1,C2)/T=5"),
		"C": branch("C/(C1)/T=1", "C/(C2)/T=2", "C/(C3)/T=6"),
	}

	winner, rounds, err := WinnersLast("C", set)
	require.NoError(t, err)
	assert.Equal(t, "A:A/(A1,C2)/T=5", winner.String())
	require.Len(t, rounds, 2)
	assert.Equal(t, "A", rounds[1].Reference)
	assert.Empty(t, rounds[1].FirstConflicting)
}

func TestWinnersLast_Recursive(t *testing.T) {
	set := scenarioRecursive()

	winner, rounds, err := WinnersLast("C", set)
	require.NoError(t, err)
	assert.Equal(t, "A:A/(A4,C4)/T=11", winner.String())
	require.Len(t, rounds, 2)

	assert.Equal(t, "A/(A1,C4)/T=8", rounds[0].LastCommon.String())
	assert.Equal(t, "A/(A2,C4)/T=9", rounds[0].Winner.Header.String())
	assert.Len(t, rounds[0].CoWinners, 2)

	require.NotNil(t, rounds[1].LastCommon)
	assert.Equal(t, "A/(A3,C4)/T=10", rounds[1].LastCommon.String())
	assert.Equal(t, []string{"A", "B"}, rounds[1].Participants.Machines())
}

func TestLongest(t *testing.T) {
	set := version.BranchSet{
		"B": branch("C/(C1)/T=1", "C/(C2)/T=2"),
		"A": branch("C/(C1)/T=1", "C/(C2)/T=2"),
		"C": branch("C/(C1)/T=1"),
	}
	assert.Equal(t, "A", longest(set))
	assert.Equal(t, "", longest(version.BranchSet{}))
}
