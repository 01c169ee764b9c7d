package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"versync/internal/fanout"
	"versync/internal/transfer"
	"versync/internal/version"
)

// LoaderOptions tune a Loader.
type LoaderOptions struct {
	// Window replays only the newest N files per machine; 0 replays all.
	// Branches built from a window may not reach a root and rely on stitching.
	Window int

	// Fetch tunes the parallel download. With Fetch.Required below the file
	// count, machines whose files could not all be fetched are skipped.
	Fetch fanout.Options
}

// Loader rebuilds every machine's branch from the remote store.
type Loader struct {
	backend transfer.Backend
	opts    LoaderOptions
	log     *logrus.Entry
}

// NewLoader creates a loader. A nil logger uses the logrus standard logger.
func NewLoader(backend transfer.Backend, opts LoaderOptions, log *logrus.Entry) *Loader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Loader{
		backend: backend,
		opts:    opts,
		log:     log.WithField("component", "loader"),
	}
}

type fileRef struct {
	key     string
	machine string
	seq     uint64
}

// Load downloads and replays all history files.
func (l *Loader) Load(ctx context.Context) (version.BranchSet, error) {
	keys, err := l.backend.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	byMachine := make(map[string][]fileRef)
	for _, key := range keys {
		machine, seq, err := ParseName(key)
		if err != nil {
			l.log.WithField("key", key).Debug("Skipping foreign file")
			continue
		}
		byMachine[machine] = append(byMachine[machine], fileRef{key: key, machine: machine, seq: seq})
	}

	var selected []fileRef
	for _, refs := range byMachine {
		sort.Slice(refs, func(i, j int) bool { return refs[i].seq < refs[j].seq })
		if l.opts.Window > 0 && len(refs) > l.opts.Window {
			refs = refs[len(refs)-l.opts.Window:]
		}
		selected = append(selected, refs...)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].key < selected[j].key })

	fetchKeys := make([]string, len(selected))
	for i, ref := range selected {
		fetchKeys[i] = ref.key
	}
	res := fanout.Fetch(ctx, fetchKeys, l.opts.Fetch, func(ctx context.Context, key string) (File, error) {
		data, err := l.backend.Read(ctx, key)
		if err != nil {
			return File{}, err
		}
		return Decode(data)
	})
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if len(res.Errors) > 0 {
		l.log.WithError(multierr.Combine(res.Errors...)).Warn("Some history files could not be fetched")
	}

	files := make(map[string]File, len(res.Values))
	for _, item := range res.Values {
		files[item.Key] = item.Value
	}

	// A machine with a missing file cannot be replayed; leave it out of this
	// round rather than rebuild a branch with a hole in it.
	incomplete := make(map[string]bool)
	for _, ref := range selected {
		if _, ok := files[ref.key]; !ok {
			incomplete[ref.machine] = true
		}
	}
	for machine := range incomplete {
		l.log.WithField("machine", machine).Warn("Skipping machine with unfetched history")
	}

	set := make(version.BranchSet, len(byMachine))
	var errs error
	for _, ref := range selected {
		if incomplete[ref.machine] {
			continue
		}
		f := files[ref.key]
		if f.Machine != ref.machine {
			errs = multierr.Append(errs, fmt.Errorf("%s: file belongs to machine %q", ref.key, f.Machine))
			continue
		}
		set[ref.machine] = Replay(set[ref.machine], f)
	}
	if errs != nil {
		return nil, errs
	}

	l.log.WithFields(logrus.Fields{
		"files":    len(selected),
		"machines": len(set),
	}).Debug("Loaded remote history")
	return set, nil
}

// Replay applies one file to a branch rebuilt from earlier files.
func Replay(b version.Branch, f File) version.Branch {
	out := version.Branch{}
	if f.Base != nil {
		if idx := b.IndexOf(*f.Base); idx >= 0 {
			out = append(out, b[:idx+1]...)
		} else {
			out = append(out, f.Base.Copy())
		}
	}
	return append(out, f.Headers...)
}
