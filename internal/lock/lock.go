// Package lock implements cooperative, cross-process mutual exclusion over a
// named resource using a sentinel marker file in the shared file store.
//
// A marker younger than the staleness threshold blocks other acquirers; an
// older one is assumed abandoned by a crashed owner and is removed before a
// fresh acquisition is attempted.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/filestore"
)

// Suffix is appended to a resource path to name its marker.
const Suffix = ".lock"

var (
	// ErrBusy is returned by Acquire when a live marker is present.
	ErrBusy = eris.New("lock: resource is busy")
	// ErrLockTimeout is returned by WithLock when the lock could not be
	// acquired in time. Callers should treat it as retryable.
	ErrLockTimeout = eris.New("lock: timed out waiting for lock")
)

// Config controls staleness and polling.
type Config struct {
	// StaleAfter is the age at which a marker is considered abandoned. Default: 30s.
	StaleAfter time.Duration
	// PollInterval is the WithLock retry interval. Default: 100ms.
	PollInterval time.Duration
	// Timeout is the WithLock default when the caller passes zero. Default: 10s.
	Timeout time.Duration
}

// DefaultConfig returns the standard lock timings.
func DefaultConfig() Config {
	return Config{
		StaleAfter:   30 * time.Second,
		PollInterval: 100 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Marker is the content of a lock file.
type Marker struct {
	PID        int       `json:"pid"`
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Handle identifies a held lock.
type Handle struct {
	Resource string
	Owner    string
}

// Locker acquires and releases markers in a file store.
type Locker struct {
	store *filestore.Store
	cfg   Config

	nowFunc func() time.Time
}

// New creates a Locker over store.
func New(store *filestore.Store, cfg Config) *Locker {
	def := DefaultConfig()
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Locker{store: store, cfg: cfg, nowFunc: time.Now}
}

func markerPath(resource string) string {
	return resource + Suffix
}

// Acquire tries once to take the lock on resource. It returns ErrBusy when a
// live marker exists.
func (l *Locker) Acquire(resource string) (*Handle, error) {
	h, err := l.tryCreate(resource)
	if !errors.Is(err, filestore.ErrExist) {
		return h, err
	}

	stale, err := l.isStale(resource)
	if err != nil {
		return nil, err
	}
	if !stale {
		return nil, ErrBusy
	}

	zap.L().Warn("lock: removing stale marker", zap.String("resource", resource))
	if err := l.store.Remove(markerPath(resource)); err != nil {
		return nil, eris.Wrap(err, "lock: remove stale marker")
	}

	h, err = l.tryCreate(resource)
	if errors.Is(err, filestore.ErrExist) {
		// Another process won the race after the stale marker was removed.
		return nil, ErrBusy
	}
	return h, err
}

func (l *Locker) tryCreate(resource string) (*Handle, error) {
	m := Marker{
		PID:        os.Getpid(),
		Owner:      uuid.NewString(),
		AcquiredAt: l.nowFunc().UTC(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "lock: encode marker")
	}
	if err := l.store.CreateExclusive(markerPath(resource), data); err != nil {
		if errors.Is(err, filestore.ErrExist) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "lock: create marker for %s", resource)
	}
	return &Handle{Resource: resource, Owner: m.Owner}, nil
}

// isStale reports whether the marker for resource is older than StaleAfter.
// A marker whose content cannot be decoded is aged by its modification time.
// A marker that vanished in the meantime counts as stale so the caller retries.
func (l *Locker) isStale(resource string) (bool, error) {
	var m Marker
	err := l.store.ReadJSON(markerPath(resource), &m)
	if errors.Is(err, filestore.ErrNotExist) {
		return true, nil
	}
	acquired := m.AcquiredAt
	if err != nil || acquired.IsZero() {
		mt, mtErr := l.store.ModTime(markerPath(resource))
		if errors.Is(mtErr, filestore.ErrNotExist) {
			return true, nil
		}
		if mtErr != nil {
			return false, eris.Wrap(mtErr, "lock: stat marker")
		}
		acquired = mt
	}
	return l.nowFunc().Sub(acquired) > l.cfg.StaleAfter, nil
}

// Release removes the marker if it is still owned by h. Releasing a lock
// that was taken over after going stale leaves the new owner's marker alone.
func (l *Locker) Release(h *Handle) error {
	if h == nil {
		return nil
	}
	var m Marker
	err := l.store.ReadJSON(markerPath(h.Resource), &m)
	if errors.Is(err, filestore.ErrNotExist) {
		return nil
	}
	if err == nil && m.Owner != "" && m.Owner != h.Owner {
		zap.L().Warn("lock: marker owned by another process, not releasing",
			zap.String("resource", h.Resource),
		)
		return nil
	}
	return eris.Wrap(l.store.Remove(markerPath(h.Resource)), "lock: release")
}

// WithLock polls for the lock on resource until it is acquired or timeout
// elapses, runs fn, and always releases the lock afterwards, including when
// fn panics. A zero timeout uses the configured default.
func (l *Locker) WithLock(ctx context.Context, resource string, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = l.cfg.Timeout
	}
	h, err := l.wait(ctx, resource, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := l.Release(h); relErr != nil {
			zap.L().Error("lock: release failed", zap.String("resource", resource), zap.Error(relErr))
		}
	}()
	return fn()
}

func (l *Locker) wait(ctx context.Context, resource string, timeout time.Duration) (*Handle, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		h, err := l.Acquire(resource)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrBusy) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "lock: waiting for %s", resource)
		case <-deadline.C:
			return nil, eris.Wrapf(ErrLockTimeout, "lock: %s after %s", resource, timeout)
		case <-ticker.C:
		}
	}
}
