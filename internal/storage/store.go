package storage

import (
	"context"
	"errors"

	"versync/internal/clock"
	"versync/internal/version"
)

// Status is the state of a stored version.
type Status string

const (
	// StatusMaster marks versions on the current branch.
	StatusMaster Status = "MASTER"
	// StatusDirty marks versions that were demoted off the branch.
	StatusDirty Status = "DIRTY"
)

var (
	// ErrDuplicate is returned when appending a version already on the branch.
	ErrDuplicate = errors.New("version already on branch")

	// ErrNotOnBranch is returned when demoting a version that is not MASTER.
	ErrNotOnBranch = errors.New("version not on branch")

	// ErrStale is returned when appending a version that does not descend from
	// the current last version.
	ErrStale = errors.New("version does not descend from branch head")
)

// Store defines the interface for the local version log.
type Store interface {
	// Append adds h at the end of the branch. A DIRTY row with the same clock
	// is promoted back to MASTER.
	Append(ctx context.Context, h version.Header) error

	// Branch returns the MASTER versions in append order.
	Branch(ctx context.Context) (version.Branch, error)

	// Last returns the newest MASTER version, or false if there is none.
	Last(ctx context.Context) (version.Header, bool, error)

	// Dirty returns the DIRTY versions in the order they were demoted.
	Dirty(ctx context.Context) (version.Branch, error)

	// Rebase demotes every version in demote to DIRTY and then appends adopt.
	// Either all of it happens or nothing does.
	Rebase(ctx context.Context, demote, adopt version.Branch) error

	// Pending returns the MASTER versions not uploaded yet, together with the
	// MASTER version right before the first of them (nil if there is none).
	Pending(ctx context.Context) (*version.Header, version.Branch, error)

	// MarkUploaded flags the given MASTER versions as uploaded.
	MarkUploaded(ctx context.Context, headers version.Branch) error

	// NextClock returns the clock for a new version created by machine: the
	// newest MASTER clock with the machine's counter set one past the highest
	// it ever used, DIRTY rows included.
	NextClock(ctx context.Context, machine string) (clock.VectorClock, error)

	// Close releases resources held by the store.
	Close() error
}

// nextClock derives the clock of a new version from the branch head and the
// highest counter the machine already used.
func nextClock(head *version.Header, machine string, used int64) clock.VectorClock {
	vc := clock.New()
	if head != nil {
		vc = head.Clock.Copy()
	}
	if cur := vc.Get(machine); cur > used {
		used = cur
	}
	vc.Set(machine, used+1)
	return vc
}

// checkAppend validates that h can follow head.
func checkAppend(head *version.Header, h version.Header) error {
	if head == nil {
		return nil
	}
	switch h.Compare(*head) {
	case clock.Greater:
		return nil
	case clock.Equal:
		return ErrDuplicate
	default:
		return ErrStale
	}
}
