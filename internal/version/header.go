package version

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"versync/internal/clock"
)

// Header identifies one database version: the machine that created it, the
// vector clock at creation and a wall-clock timestamp in milliseconds.
// The timestamp only breaks ties; it carries no causal meaning.
type Header struct {
	Owner     string
	Clock     clock.VectorClock
	Timestamp int64
}

// NewHeader creates a header, copying the clock.
func NewHeader(owner string, vc clock.VectorClock, timestamp int64) Header {
	return Header{Owner: owner, Clock: vc.Copy(), Timestamp: timestamp}
}

// Same reports whether both headers denote the same version. Identity is the
// clock content alone, regardless of which machine reports it.
func (h Header) Same(other Header) bool {
	return h.Clock.Equal(other.Clock)
}

// Compare compares the clocks of two headers.
func (h Header) Compare(other Header) clock.Comparison {
	return h.Clock.Compare(other.Clock)
}

// IsRoot reports whether the header is the first version of a history, i.e.
// its clock is exactly {owner: 1}.
func (h Header) IsRoot() bool {
	keys := h.Clock.Keys()
	return len(keys) == 1 && keys[0] == h.Owner && h.Clock.Get(h.Owner) == 1
}

// Time returns the timestamp as a time.Time.
func (h Header) Time() time.Time {
	return time.UnixMilli(h.Timestamp)
}

// Copy returns a header with its own clock.
func (h Header) Copy() Header {
	return NewHeader(h.Owner, h.Clock, h.Timestamp)
}

// String renders "<owner>/(<k1><v1>,...)/T=<timestamp>", e.g. "A/(A3,B2,C4)/T=18".
func (h Header) String() string {
	return h.Owner + "/" + h.Clock.String() + "/T=" + strconv.FormatInt(h.Timestamp, 10)
}

// ParseHeader parses the textual form produced by String.
func ParseHeader(s string) (Header, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Header{}, fmt.Errorf("invalid header %q: expected <owner>/(<clock>)/T=<timestamp>", s)
	}

	owner := parts[0]
	if owner == "" {
		return Header{}, fmt.Errorf("invalid header %q: empty owner", s)
	}

	vc, err := clock.Parse(parts[1])
	if err != nil {
		return Header{}, fmt.Errorf("invalid header %q: %w", s, err)
	}

	ts, ok := strings.CutPrefix(parts[2], "T=")
	if !ok {
		return Header{}, fmt.Errorf("invalid header %q: timestamp must start with T=", s)
	}
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Header{}, fmt.Errorf("invalid header %q: %w", s, err)
	}

	return Header{Owner: owner, Clock: vc, Timestamp: timestamp}, nil
}

// MustParseHeader is like ParseHeader but panics on error. Intended for fixtures.
func MustParseHeader(s string) Header {
	h, err := ParseHeader(s)
	if err != nil {
		panic(err)
	}
	return h
}
