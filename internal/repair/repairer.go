package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"versync/internal/storage"
)

// Repairer applies plans to the local version log.
type Repairer struct {
	log     *logrus.Entry
	timeout time.Duration
}

// NewRepairer creates a repairer. A non-positive timeout defaults to 2s.
func NewRepairer(log *logrus.Entry, timeout time.Duration) *Repairer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Repairer{
		log:     log.WithField("component", "repair"),
		timeout: timeout,
	}
}

// Apply demotes and adopts in a single store rebase. On error the store is
// left as it was.
func (r *Repairer) Apply(ctx context.Context, store storage.Store, plan Plan) error {
	if plan.Action == UpToDate || plan.Empty() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields := logrus.Fields{
		"demote": len(plan.Demote),
		"adopt":  len(plan.Adopt),
	}
	if plan.Target != nil {
		fields["target"] = plan.Target.String()
	}

	if err := store.Rebase(ctx, plan.Demote, plan.Adopt); err != nil {
		r.log.WithFields(fields).WithError(err).Warn("Repair failed")
		return fmt.Errorf("apply plan: %w", err)
	}

	r.log.WithFields(fields).Info("Adopted winning branch")
	return nil
}
