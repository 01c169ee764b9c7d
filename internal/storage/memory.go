package storage

import (
	"context"
	"fmt"
	"sync"

	"versync/internal/clock"
	"versync/internal/version"
)

type record struct {
	header   version.Header
	status   Status
	uploaded bool
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe and returns copies, never its own records.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*record // promoted and demoted rows move to the end
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds h at the end of the branch.
func (s *InMemoryStore) Append(_ context.Context, h version.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := appendRecord(s.records, h)
	if err != nil {
		return err
	}
	s.records = records
	return nil
}

// Branch returns the MASTER versions in append order.
func (s *InMemoryStore) Branch(_ context.Context) (version.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.records, StatusMaster), nil
}

// Last returns the newest MASTER version.
func (s *InMemoryStore) Last(_ context.Context) (version.Header, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if head := head(s.records); head != nil {
		return head.header.Copy(), true, nil
	}
	return version.Header{}, false, nil
}

// Dirty returns the DIRTY versions.
func (s *InMemoryStore) Dirty(_ context.Context) (version.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.records, StatusDirty), nil
}

// Rebase demotes and appends on a copy of the log and swaps it in only when
// every step succeeded.
func (s *InMemoryStore) Rebase(_ context.Context, demote, adopt version.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*record, len(s.records))
	for i, r := range s.records {
		cp := *r
		records[i] = &cp
	}

	for _, h := range demote {
		r := find(records, h)
		if r == nil || r.status != StatusMaster {
			return fmt.Errorf("demote %s: %w", h, ErrNotOnBranch)
		}
		r.status = StatusDirty
		records = moveToEnd(records, r)
	}

	var err error
	for _, h := range adopt {
		if records, err = appendRecord(records, h); err != nil {
			return fmt.Errorf("adopt %s: %w", h, err)
		}
	}

	s.records = records
	return nil
}

// Pending returns the MASTER versions not uploaded yet and their base.
func (s *InMemoryStore) Pending(_ context.Context) (*version.Header, version.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base, pending := pending(filterRecords(s.records, StatusMaster))
	return base, pending, nil
}

// MarkUploaded flags MASTER versions as uploaded. Unknown versions are ignored.
func (s *InMemoryStore) MarkUploaded(_ context.Context, headers version.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range headers {
		if r := find(s.records, h); r != nil && r.status == StatusMaster {
			r.uploaded = true
		}
	}
	return nil
}

// NextClock returns the clock for the machine's next version.
func (s *InMemoryStore) NextClock(_ context.Context, machine string) (clock.VectorClock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var used int64
	for _, r := range s.records {
		if c := r.header.Clock.Get(machine); c > used {
			used = c
		}
	}
	var last *version.Header
	if h := head(s.records); h != nil {
		last = &h.header
	}
	return nextClock(last, machine, used), nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}

func appendRecord(records []*record, h version.Header) ([]*record, error) {
	var last *version.Header
	if hd := head(records); hd != nil {
		last = &hd.header
	}
	if err := checkAppend(last, h); err != nil {
		return nil, err
	}

	if r := find(records, h); r != nil {
		if r.status == StatusMaster {
			return nil, ErrDuplicate
		}
		r.status = StatusMaster
		return moveToEnd(records, r), nil
	}

	return append(records, &record{header: h.Copy(), status: StatusMaster}), nil
}

func moveToEnd(records []*record, r *record) []*record {
	out := make([]*record, 0, len(records))
	for _, other := range records {
		if other != r {
			out = append(out, other)
		}
	}
	return append(out, r)
}

func head(records []*record) *record {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].status == StatusMaster {
			return records[i]
		}
	}
	return nil
}

func find(records []*record, h version.Header) *record {
	for _, r := range records {
		if r.header.Same(h) {
			return r
		}
	}
	return nil
}

func filterRecords(records []*record, status Status) []*record {
	var out []*record
	for _, r := range records {
		if r.status == status {
			out = append(out, r)
		}
	}
	return out
}

func filter(records []*record, status Status) version.Branch {
	out := version.Branch{}
	for _, r := range filterRecords(records, status) {
		out = append(out, r.header.Copy())
	}
	return out
}

// pending splits a MASTER branch into the base and the versions after it
// that are not uploaded.
func pending(master []*record) (*version.Header, version.Branch) {
	first := -1
	for i, r := range master {
		if !r.uploaded {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, version.Branch{}
	}

	var base *version.Header
	if first > 0 {
		h := master[first-1].header.Copy()
		base = &h
	}
	out := make(version.Branch, 0, len(master)-first)
	for _, r := range master[first:] {
		out = append(out, r.header.Copy())
	}
	return base, out
}
