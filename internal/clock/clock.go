package clock

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// VectorClock represents a vector clock as a map from machine ID to counter.
// A missing machine reads as 0. Thread-safe operations should be handled by
// the caller.
type VectorClock map[string]int64

// New creates a new empty vector clock.
func New() VectorClock {
	return make(VectorClock)
}

// Increment increments the counter for the given machine ID.
// If the machine ID doesn't exist, it's initialized to 1.
func (vc VectorClock) Increment(machineID string) {
	vc[machineID]++
}

// Get returns the counter value for the given machine ID, or 0 if not present.
func (vc VectorClock) Get(machineID string) int64 {
	return vc[machineID]
}

// Set sets the counter for the given machine ID.
func (vc VectorClock) Set(machineID string, value int64) {
	vc[machineID] = value
}

// Merge returns a new clock holding the maximum counter of each machine ID
// present in either clock. Neither input is modified.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := vc.Copy()
	for machineID, counter := range other {
		if merged[machineID] < counter {
			merged[machineID] = counter
		}
	}
	return merged
}

// Copy creates a deep copy of the vector clock.
func (vc VectorClock) Copy() VectorClock {
	copy := make(VectorClock, len(vc))
	for k, v := range vc {
		copy[k] = v
	}
	return copy
}

// Comparison represents the causal relationship between two vector clocks.
type Comparison int

const (
	// Equal indicates both clocks carry the same counters.
	Equal Comparison = iota
	// Smaller indicates this clock happened before the other.
	Smaller
	// Greater indicates this clock happened after the other.
	Greater
	// Simultaneous indicates neither clock dominates (a conflict).
	Simultaneous
)

// String returns the upper-case name of the comparison.
func (c Comparison) String() string {
	switch c {
	case Equal:
		return "EQUAL"
	case Smaller:
		return "SMALLER"
	case Greater:
		return "GREATER"
	case Simultaneous:
		return "SIMULTANEOUS"
	default:
		return "UNKNOWN"
	}
}

// Invert returns the comparison seen from the other side.
func (c Comparison) Invert() Comparison {
	switch c {
	case Smaller:
		return Greater
	case Greater:
		return Smaller
	default:
		return c
	}
}

// Compare compares two vector clocks over the union of their keys.
// Returns:
//   - Equal: if all counters are equal
//   - Smaller: if this clock happened before other (all counters <=, at least one <)
//   - Greater: if this clock happened after other (all counters >=, at least one >)
//   - Simultaneous: if neither dominates
func (vc VectorClock) Compare(other VectorClock) Comparison {
	var thisLess, thisGreater bool

	for machineID, thisVal := range vc {
		otherVal := other[machineID]
		if thisVal < otherVal {
			thisLess = true
		} else if thisVal > otherVal {
			thisGreater = true
		}
	}
	for machineID, otherVal := range other {
		if _, seen := vc[machineID]; seen {
			continue
		}
		if otherVal > 0 {
			thisLess = true
		} else if otherVal < 0 {
			thisGreater = true
		}
	}

	switch {
	case !thisLess && !thisGreater:
		return Equal
	case thisLess && !thisGreater:
		return Smaller
	case thisGreater && !thisLess:
		return Greater
	default:
		return Simultaneous
	}
}

// Equal checks if two vector clocks carry the same counters.
// Explicit zero entries are equal to missing ones.
func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.Compare(other) == Equal
}

// Dominates returns true if this clock happened after the other.
func (vc VectorClock) Dominates(other VectorClock) bool {
	return vc.Compare(other) == Greater
}

// IsSimultaneous returns true if this clock is concurrent with the other.
func (vc VectorClock) IsSimultaneous(other VectorClock) bool {
	return vc.Compare(other) == Simultaneous
}

// Keys returns the machine IDs with a non-zero counter, sorted ascending.
func (vc VectorClock) Keys() []string {
	keys := make([]string, 0, len(vc))
	for k, v := range vc {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Sum returns the total of all counters.
func (vc VectorClock) Sum() int64 {
	var sum int64
	for _, v := range vc {
		sum += v
	}
	return sum
}

// String returns the canonical form of the clock, e.g. "(A4,B5)".
// Keys are sorted ascending and zero counters are omitted.
func (vc VectorClock) String() string {
	keys := vc.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+strconv.FormatInt(vc[k], 10))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Parse parses the canonical form produced by String. Counters must be
// positive, since String omits zero counters and the result has to round-trip.
func Parse(s string) (VectorClock, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("invalid vector clock %q: expected (<id><counter>,...)", s)
	}

	vc := New()
	body := s[1 : len(s)-1]
	if body == "" {
		return vc, nil
	}

	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		split := strings.IndexFunc(part, unicode.IsDigit)
		if split <= 0 {
			return nil, fmt.Errorf("invalid vector clock entry %q in %q", part, s)
		}

		machineID := part[:split]
		counter, err := strconv.ParseInt(part[split:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter in entry %q: %w", part, err)
		}
		if counter <= 0 {
			return nil, fmt.Errorf("invalid counter in entry %q: must be positive", part)
		}
		if _, dup := vc[machineID]; dup {
			return nil, fmt.Errorf("duplicate machine %q in %q", machineID, s)
		}
		vc[machineID] = counter
	}

	return vc, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures.
func MustParse(s string) VectorClock {
	vc, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return vc
}
