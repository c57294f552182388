package jobs

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/lock"
)

// DefaultListLimit caps ListAll when no limit is given.
const DefaultListLimit = 50

// Tracker owns job lifecycle transitions on top of a Store. Every
// read-modify-write of a job is serialised through the lock primitive, since
// external cancellation can land at any time.
type Tracker struct {
	store  Store
	locker *lock.Locker
	now    func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(store Store, locker *lock.Locker) *Tracker {
	return &Tracker{store: store, locker: locker, now: time.Now}
}

// GenerateID returns a unique id of the form <type>_<unix millis>_<random>.
func (t *Tracker) GenerateID(typ Type) string {
	return fmt.Sprintf("%s_%d_%s", typ, t.now().UnixMilli(), uuid.NewString()[:8])
}

// Create submits a new pending job.
func (t *Tracker) Create(ctx context.Context, typ Type, total int, metadata map[string]any) (*Job, error) {
	now := t.now().UTC()
	job := &Job{
		ID:        t.GenerateID(typ),
		Type:      typ,
		Status:    StatusPending,
		Progress:  NewProgress(0, total),
		StartedAt: now,
		UpdatedAt: now,
	}
	job.mergeMetadata(metadata)
	if err := t.store.Put(ctx, job); err != nil {
		return nil, eris.Wrap(err, "jobs: create")
	}
	zap.L().Info("jobs: created", zap.String("job_id", job.ID), zap.String("type", string(typ)), zap.Int("total", total))
	return job, nil
}

// Save stamps UpdatedAt and writes job as-is.
func (t *Tracker) Save(ctx context.Context, job *Job) error {
	job.UpdatedAt = t.now().UTC()
	return t.store.Put(ctx, job)
}

// Get returns the job or nil when it does not exist.
func (t *Tracker) Get(ctx context.Context, id string) (*Job, error) {
	return t.store.Get(ctx, id)
}

func (t *Tracker) mustGet(ctx context.Context, id string) (*Job, error) {
	job, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, eris.Wrapf(ErrNotFound, "jobs: %s", id)
	}
	return job, nil
}

// ListActive returns pending and running jobs, newest first.
func (t *Tracker) ListActive(ctx context.Context) ([]*Job, error) {
	all, err := t.valid(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Job
	for _, j := range all {
		if j.Status.IsActive() {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out, nil
}

// ListAll returns jobs of every status ordered by most recent update. A
// non-positive limit uses DefaultListLimit.
func (t *Tracker) ListAll(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	all, err := t.valid(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].UpdatedAt.After(all[b].UpdatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (t *Tracker) valid(ctx context.Context) ([]*Job, error) {
	entries, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(entries))
	for _, e := range entries {
		if e.Err != nil {
			zap.L().Debug("jobs: skipping unreadable record", zap.String("job_id", e.ID), zap.Error(e.Err))
			continue
		}
		out = append(out, e.Job)
	}
	return out, nil
}

// UpdateProgress records progress and promotes a pending job to running.
// Updates to finished jobs are ignored. The read and write share the job's
// lock with the terminal transitions, so a concurrent Cancel is never
// overwritten by a stale running record.
func (t *Tracker) UpdateProgress(ctx context.Context, id string, current, total int) error {
	return t.locker.WithLock(ctx, path.Join(jobsDir, id), 0, func() error {
		job, err := t.mustGet(ctx, id)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return nil
		}
		job.Progress = NewProgress(current, total)
		if job.Status == StatusPending {
			job.Status = StatusRunning
		}
		return t.Save(ctx, job)
	})
}

// Complete marks the job completed and merges metadata into it.
func (t *Tracker) Complete(ctx context.Context, id string, metadata map[string]any) error {
	return t.finish(ctx, id, func(j *Job) {
		j.Status = StatusCompleted
		j.mergeMetadata(metadata)
	})
}

// Fail marks the job failed with msg.
func (t *Tracker) Fail(ctx context.Context, id, msg string) error {
	return t.finish(ctx, id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = msg
	})
}

// Cancel marks the job cancelled. A running pipeline observes this between
// leads via IsCancelled.
func (t *Tracker) Cancel(ctx context.Context, id, reason string) error {
	return t.finish(ctx, id, func(j *Job) {
		j.Status = StatusCancelled
		if reason != "" {
			j.Error = reason
		}
	})
}

func (t *Tracker) finish(ctx context.Context, id string, apply func(*Job)) error {
	return t.locker.WithLock(ctx, path.Join(jobsDir, id), 0, func() error {
		job, err := t.mustGet(ctx, id)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return eris.Wrapf(ErrTerminal, "jobs: %s is %s", id, job.Status)
		}
		apply(job)
		now := t.now().UTC()
		job.CompletedAt = &now
		if err := t.Save(ctx, job); err != nil {
			return err
		}
		zap.L().Info("jobs: finished", zap.String("job_id", id), zap.String("status", string(job.Status)))
		return nil
	})
}

// IsCancelled reports whether the job was cancelled.
func (t *Tracker) IsCancelled(ctx context.Context, id string) (bool, error) {
	job, err := t.mustGet(ctx, id)
	if err != nil {
		return false, err
	}
	return job.Status == StatusCancelled, nil
}

// CleanupResult counts what CleanupOld removed.
type CleanupResult struct {
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

// CleanupOld deletes finished jobs whose completion is older than
// daysToKeep days. Unreadable records are deleted outright.
func (t *Tracker) CleanupOld(ctx context.Context, daysToKeep int) (CleanupResult, error) {
	var res CleanupResult
	entries, err := t.store.List(ctx)
	if err != nil {
		return res, err
	}
	cutoff := t.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	for _, e := range entries {
		if e.Err == nil {
			if !e.Job.Status.IsTerminal() {
				continue
			}
			finished := e.Job.UpdatedAt
			if e.Job.CompletedAt != nil {
				finished = *e.Job.CompletedAt
			}
			if !finished.Before(cutoff) {
				continue
			}
		}
		if err := t.store.Delete(ctx, e.ID); err != nil {
			zap.L().Warn("jobs: cleanup delete failed", zap.String("job_id", e.ID), zap.Error(err))
			res.Errors++
			continue
		}
		res.Deleted++
	}
	return res, nil
}
