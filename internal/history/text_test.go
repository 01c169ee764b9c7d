package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"versync/internal/version"
)

func TestText_RoundTrip(t *testing.T) {
	b := version.MustParseBranch("C/(C1)/T=1", "A/(A1,C1)/T=4")

	got, err := ReadText(strings.NewReader(string(MarshalText(b))))
	require.NoError(t, err)
	assert.True(t, got.Equal(b))
	assert.Equal(t, "C/(C1)/T=1\nA/(A1,C1)/T=4\n", string(MarshalText(b)))
}

func TestReadText_CommentsAndBlankLines(t *testing.T) {
	input := `# branch of machine A

C/(C1)/T=1
   A/(A1,C1)/T=4
`
	got, err := ReadText(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"C/(C1)/T=1", "A/(A1,C1)/T=4"}, got.Strings())
}

func TestReadText_ReportsLine(t *testing.T) {
	_, err := ReadText(strings.NewReader("C/(C1)/T=1\n\nbroken\n"))
	assert.ErrorContains(t, err, "line 3")
}

func TestName(t *testing.T) {
	assert.Equal(t, "history-A-0000000042", Name("A", 42))

	machine, seq, err := ParseName("history-AB-0000000042")
	require.NoError(t, err)
	assert.Equal(t, "AB", machine)
	assert.Equal(t, uint64(42), seq)

	for _, bad := range []string{"other-A-1", "history-A", "history--1", "history-A-x"} {
		_, _, err := ParseName(bad)
		assert.Error(t, err, bad)
	}
}
