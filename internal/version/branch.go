package version

import (
	"fmt"
	"sort"
	"strings"
)

// Branch is an ordered, append-only sequence of headers as seen by one
// machine. Insertion order is the ground truth; a Branch is never re-sorted
// by clock.
type Branch []Header

// ParseBranch parses one header string per element.
func ParseBranch(lines []string) (Branch, error) {
	b := make(Branch, 0, len(lines))
	for i, line := range lines {
		h, err := ParseHeader(line)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", i, err)
		}
		b = append(b, h)
	}
	return b, nil
}

// MustParseBranch is like ParseBranch but panics on error.
func MustParseBranch(lines ...string) Branch {
	b, err := ParseBranch(lines)
	if err != nil {
		panic(err)
	}
	return b
}

// Last returns the most recent header, or false if the branch is empty.
func (b Branch) Last() (Header, bool) {
	if len(b) == 0 {
		return Header{}, false
	}
	return b[len(b)-1], true
}

// First returns the oldest header, or false if the branch is empty.
func (b Branch) First() (Header, bool) {
	if len(b) == 0 {
		return Header{}, false
	}
	return b[0], true
}

// IndexOf returns the position of the header with the same clock, or -1.
func (b Branch) IndexOf(h Header) int {
	for i := range b {
		if b[i].Same(h) {
			return i
		}
	}
	return -1
}

// Contains reports whether a header with the same clock is in the branch.
func (b Branch) Contains(h Header) bool {
	return b.IndexOf(h) >= 0
}

// Suffix returns the headers from index i on. The result shares storage.
func (b Branch) Suffix(i int) Branch {
	if i >= len(b) {
		return Branch{}
	}
	if i < 0 {
		i = 0
	}
	return b[i:]
}

// After returns the headers strictly after h. If h is not in the branch the
// whole branch is returned.
func (b Branch) After(h Header) Branch {
	return b.Suffix(b.IndexOf(h) + 1)
}

// Copy returns a deep copy of the branch.
func (b Branch) Copy() Branch {
	if b == nil {
		return nil
	}
	c := make(Branch, len(b))
	for i := range b {
		c[i] = b[i].Copy()
	}
	return c
}

// Equal reports whether both branches hold the same versions in the same order.
func (b Branch) Equal(other Branch) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if !b[i].Same(other[i]) {
			return false
		}
	}
	return true
}

// Strings renders every header in its textual form.
func (b Branch) Strings() []string {
	out := make([]string, len(b))
	for i := range b {
		out[i] = b[i].String()
	}
	return out
}

// String joins the headers with ", ".
func (b Branch) String() string {
	return "[" + strings.Join(b.Strings(), ", ") + "]"
}

// BranchSet maps a machine ID to that machine's branch.
type BranchSet map[string]Branch

// Machines returns the machine IDs sorted ascending.
func (s BranchSet) Machines() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the branch for a machine; absent machines yield an empty branch.
func (s BranchSet) Get(machine string) Branch {
	return s[machine]
}

// Copy returns a deep copy of the set.
func (s BranchSet) Copy() BranchSet {
	c := make(BranchSet, len(s))
	for id, b := range s {
		c[id] = b.Copy()
	}
	return c
}

// NonEmpty returns a copy without empty branches. An absent machine and a
// machine with an empty branch are treated the same way.
func (s BranchSet) NonEmpty() BranchSet {
	c := make(BranchSet, len(s))
	for id, b := range s {
		if len(b) > 0 {
			c[id] = b.Copy()
		}
	}
	return c
}

// Equal reports whether both sets hold equal branches for the same machines.
func (s BranchSet) Equal(other BranchSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id, b := range s {
		ob, ok := other[id]
		if !ok || !b.Equal(ob) {
			return false
		}
	}
	return true
}
