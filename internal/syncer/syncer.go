package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"versync/internal/history"
	"versync/internal/reconcile"
	"versync/internal/repair"
	"versync/internal/storage"
	"versync/internal/transfer"
	"versync/internal/version"
)

// Options configure a Syncer.
type Options struct {
	// Machine is the local machine ID.
	Machine string

	// History tunes loading of remote history.
	History history.LoaderOptions

	// Timeout bounds one cycle; 0 means no limit.
	Timeout time.Duration

	// Now returns the wall clock used for new versions. Defaults to time.Now.
	Now func() time.Time
}

// Report describes one completed cycle.
type Report struct {
	ID uuid.UUID

	// Plan is what the down phase applied.
	Plan repair.Plan

	// Uploaded is the key of the history file written by the up phase, or
	// empty when nothing was pending.
	Uploaded string

	// Headers is the number of versions uploaded.
	Headers int
}

// Syncer keeps one repository in sync with the remote store.
type Syncer struct {
	machine    string
	store      storage.Store
	loader     *history.Loader
	uploader   *history.Uploader
	reconciler *reconcile.Reconciler
	repairer   *repair.Repairer
	timeout    time.Duration
	now        func() time.Time
	log        *logrus.Entry

	mu sync.Mutex // one cycle or commit at a time
}

// New creates a syncer over a local store and a remote backend.
func New(store storage.Store, backend transfer.Backend, opts Options, log *logrus.Entry) (*Syncer, error) {
	if opts.Machine == "" {
		return nil, errors.New("machine ID is required")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log = log.WithField("machine", opts.Machine)
	return &Syncer{
		machine:    opts.Machine,
		store:      store,
		loader:     history.NewLoader(backend, opts.History, log),
		uploader:   history.NewUploader(backend, opts.Machine, log),
		reconciler: reconcile.New(log),
		repairer:   repair.NewRepairer(log, opts.Timeout),
		timeout:    opts.Timeout,
		now:        opts.Now,
		log:        log.WithField("component", "syncer"),
	}, nil
}

// Commit records a new local version on top of the branch. Timestamps never
// go backwards on the branch, so one machine cannot produce two versions
// with the same owner and timestamp.
func (s *Syncer) Commit(ctx context.Context) (version.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vc, err := s.store.NextClock(ctx, s.machine)
	if err != nil {
		return version.Header{}, fmt.Errorf("next clock: %w", err)
	}

	ts := s.now().UnixMilli()
	if last, ok, err := s.store.Last(ctx); err != nil {
		return version.Header{}, fmt.Errorf("last version: %w", err)
	} else if ok && ts <= last.Timestamp {
		ts = last.Timestamp + 1
	}

	h := version.NewHeader(s.machine, vc, ts)
	if err := s.store.Append(ctx, h); err != nil {
		return version.Header{}, fmt.Errorf("commit %s: %w", h, err)
	}

	s.log.WithField("version", h.String()).Info("Committed version")
	return h, nil
}

// Down reconciles the local branch with the remote history and applies the
// resulting plan.
func (s *Syncer) Down(ctx context.Context) (repair.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down(ctx, s.log)
}

// Up uploads the local versions the remote store has not seen yet.
func (s *Syncer) Up(ctx context.Context) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up(ctx, s.log)
}

// Cycle runs down then up.
func (s *Syncer) Cycle(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report := Report{ID: uuid.Must(uuid.NewV7())}
	log := s.log.WithField("cycle", report.ID.String())
	start := time.Now()

	plan, err := s.down(ctx, log)
	if err != nil {
		return report, err
	}
	report.Plan = plan

	key, n, err := s.up(ctx, log)
	if err != nil {
		return report, err
	}
	report.Uploaded, report.Headers = key, n

	fields := logrus.Fields{
		"action":   plan.Action.String(),
		"uploaded": n,
		"duration": time.Since(start),
	}
	if plan.Target != nil {
		fields["target"] = plan.Target.Header.String()
	}
	log.WithFields(fields).Debug("Cycle finished")
	return report, nil
}

// Run cycles immediately and then on every tick until ctx is cancelled.
// Transient failures are retried on the next tick; any other failure stops
// the loop and is returned. Cancellation returns nil.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid sync interval %v", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Cycle(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case reconcile.IsTransient(err):
				s.log.WithError(err).Info("Remote history incomplete, retrying")
			default:
				s.log.WithError(err).Error("Sync failed")
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Syncer) down(ctx context.Context, log *logrus.Entry) (repair.Plan, error) {
	remote, err := s.loader.Load(ctx)
	if err != nil {
		return repair.Plan{}, fmt.Errorf("load remote history: %w", err)
	}
	local, err := s.store.Branch(ctx)
	if err != nil {
		return repair.Plan{}, fmt.Errorf("read local branch: %w", err)
	}

	res, err := s.reconciler.Reconcile(s.machine, local, remote)
	if err != nil {
		return repair.Plan{}, fmt.Errorf("reconcile: %w", err)
	}

	plan := repair.NewPlan(local, res)
	if err := s.repairer.Apply(ctx, s.store, plan); err != nil {
		return repair.Plan{}, err
	}
	if plan.Action == repair.Adopt {
		log.WithFields(logrus.Fields{
			"demoted": len(plan.Demote),
			"adopted": len(plan.Adopt),
		}).Debug("Local branch replaced")
	}
	return plan, nil
}

func (s *Syncer) up(ctx context.Context, log *logrus.Entry) (string, int, error) {
	base, pending, err := s.store.Pending(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("pending versions: %w", err)
	}
	if len(pending) == 0 {
		return "", 0, nil
	}

	key, err := s.uploader.Upload(ctx, base, pending)
	if err != nil {
		return "", 0, err
	}
	if err := s.store.MarkUploaded(ctx, pending); err != nil {
		// The file is already remote. A retry uploads the same versions on
		// the same base again.
		return "", 0, fmt.Errorf("mark uploaded: %w", err)
	}

	log.WithField("key", key).Debug("Pending versions uploaded")
	return key, len(pending), nil
}
