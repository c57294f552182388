package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/filestore"
	"github.com/sells-group/lead-enrichment/internal/lock"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestTracker(t *testing.T) (*Tracker, *filestore.Store, *fakeClock) {
	t.Helper()
	files := filestore.NewMemory()
	tr := NewTracker(NewFileStore(files), lock.New(files, lock.DefaultConfig()))
	c := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	tr.now = c.now
	return tr, files, c
}

func TestNewProgress(t *testing.T) {
	tests := []struct {
		current, total int
		want           Progress
	}{
		{0, 0, Progress{0, 0, 0}},
		{1, 3, Progress{1, 3, 33}},
		{2, 3, Progress{2, 3, 67}},
		{3, 3, Progress{3, 3, 100}},
		{5, 3, Progress{3, 3, 100}},
		{-1, 3, Progress{0, 3, 0}},
		{1, 8, Progress{1, 8, 13}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewProgress(tt.current, tt.total))
	}
}

func TestGenerateID(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	a := tr.GenerateID(TypeEnrichment)
	b := tr.GenerateID(TypeEnrichment)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "enrichment_1777636800000_"), a)
	assert.True(t, strings.HasPrefix(tr.GenerateID(TypeScraping), "scraping_"))
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)

	job, err := tr.Create(ctx, TypeEnrichment, 10, map[string]any{"source": "test.json"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 10, job.Progress.Total)

	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "test.json", got.Metadata["source"])

	missing, err := tr.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateProgress_PromotesToRunning(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)
	job, err := tr.Create(ctx, TypeEnrichment, 4, nil)
	require.NoError(t, err)

	require.NoError(t, tr.UpdateProgress(ctx, job.ID, 1, 4))
	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, Progress{1, 4, 25}, got.Progress)

	require.NoError(t, tr.UpdateProgress(ctx, job.ID, 9, 4))
	got, err = tr.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, Progress{4, 4, 100}, got.Progress)
}

func TestUpdateProgress_Missing(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	err := tr.UpdateProgress(context.Background(), "missing", 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProgress_IgnoredAfterCancel(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)
	job, err := tr.Create(ctx, TypeEnrichment, 4, nil)
	require.NoError(t, err)

	require.NoError(t, tr.Cancel(ctx, job.ID, "stopped by user"))
	require.NoError(t, tr.UpdateProgress(ctx, job.ID, 2, 4))

	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 0, got.Progress.Current)
	assert.Equal(t, "stopped by user", got.Error)

	cancelled, err := tr.IsCancelled(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

// cancelOnGet cancels the job from another goroutine the first time the
// tracker reads it, then gives that cancel time to contend for the lock.
type cancelOnGet struct {
	Store
	tr   *Tracker
	once sync.Once
	done chan error
}

func (s *cancelOnGet) Get(ctx context.Context, id string) (*Job, error) {
	job, err := s.Store.Get(ctx, id)
	s.once.Do(func() {
		go func() { s.done <- s.tr.Cancel(context.Background(), id, "stopped by user") }()
		time.Sleep(30 * time.Millisecond)
	})
	return job, err
}

func TestUpdateProgress_ConcurrentCancelWins(t *testing.T) {
	ctx := context.Background()
	files := filestore.NewMemory()
	locker := lock.New(files, lock.Config{PollInterval: time.Millisecond, Timeout: time.Second})
	inner := NewFileStore(files)

	setup := NewTracker(inner, locker)
	job, err := setup.Create(ctx, TypeEnrichment, 4, nil)
	require.NoError(t, err)

	store := &cancelOnGet{Store: inner, done: make(chan error, 1)}
	tr := NewTracker(store, locker)
	store.tr = tr

	require.NoError(t, tr.UpdateProgress(ctx, job.ID, 2, 4))
	require.NoError(t, <-store.done)

	got, err := inner.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "stopped by user", got.Error)
	assert.Equal(t, 2, got.Progress.Current)

	cancelled, err := tr.IsCancelled(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestComplete_MergesMetadata(t *testing.T) {
	ctx := context.Background()
	tr, _, c := newTestTracker(t)
	job, err := tr.Create(ctx, TypeEnrichment, 2, map[string]any{"source": "a.json"})
	require.NoError(t, err)

	c.t = c.t.Add(time.Minute)
	require.NoError(t, tr.Complete(ctx, job.ID, map[string]any{"processed": 2}))

	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "a.json", got.Metadata["source"])
	assert.EqualValues(t, 2, got.Metadata["processed"])
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, time.Minute, got.Duration(c.t))
}

func TestFail(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)
	job, err := tr.Create(ctx, TypeEnrichment, 2, nil)
	require.NoError(t, err)

	require.NoError(t, tr.Fail(ctx, job.ID, "could not read input"))
	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "could not read input", got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestTerminalTransitions_Rejected(t *testing.T) {
	ctx := context.Background()
	tr, _, _ := newTestTracker(t)
	job, err := tr.Create(ctx, TypeEnrichment, 2, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Cancel(ctx, job.ID, ""))

	assert.ErrorIs(t, tr.Complete(ctx, job.ID, nil), ErrTerminal)
	assert.ErrorIs(t, tr.Fail(ctx, job.ID, "x"), ErrTerminal)
	assert.ErrorIs(t, tr.Cancel(ctx, job.ID, ""), ErrTerminal)
	assert.ErrorIs(t, tr.Complete(ctx, "missing", nil), ErrNotFound)
}

func TestFinish_LockTimeout(t *testing.T) {
	ctx := context.Background()
	files := filestore.NewMemory()
	locker := lock.New(files, lock.Config{PollInterval: time.Millisecond, Timeout: 10 * time.Millisecond})
	tr := NewTracker(NewFileStore(files), locker)
	job, err := tr.Create(ctx, TypeEnrichment, 1, nil)
	require.NoError(t, err)

	h, err := locker.Acquire("jobs/" + job.ID)
	require.NoError(t, err)
	defer func() { _ = locker.Release(h) }()

	assert.ErrorIs(t, tr.Complete(ctx, job.ID, nil), lock.ErrLockTimeout)
}

func TestListActiveAndAll(t *testing.T) {
	ctx := context.Background()
	tr, files, c := newTestTracker(t)

	first, err := tr.Create(ctx, TypeEnrichment, 1, nil)
	require.NoError(t, err)
	c.t = c.t.Add(time.Second)
	second, err := tr.Create(ctx, TypeScraping, 1, nil)
	require.NoError(t, err)
	c.t = c.t.Add(time.Second)
	third, err := tr.Create(ctx, TypeEnrichment, 1, nil)
	require.NoError(t, err)
	c.t = c.t.Add(time.Second)
	require.NoError(t, tr.Complete(ctx, second.ID, nil))
	require.NoError(t, files.WriteFile("jobs/corrupt.json", []byte("{")))

	active, err := tr.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, third.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)

	all, err := tr.ListAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, second.ID, all[0].ID)

	limited, err := tr.ListAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCleanupOld(t *testing.T) {
	ctx := context.Background()
	tr, files, c := newTestTracker(t)

	old, err := tr.Create(ctx, TypeEnrichment, 1, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Complete(ctx, old.ID, nil))
	stillRunning, err := tr.Create(ctx, TypeEnrichment, 1, nil)
	require.NoError(t, err)

	c.t = c.t.Add(10 * 24 * time.Hour)
	recent, err := tr.Create(ctx, TypeEnrichment, 1, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Fail(ctx, recent.ID, "boom"))
	require.NoError(t, files.WriteFile("jobs/garbage.json", []byte("not json")))

	res, err := tr.CleanupOld(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Deleted: 2}, res)

	got, err := tr.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	for _, id := range []string{stillRunning.ID, recent.ID} {
		got, err := tr.Get(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got, id)
	}
	ok, err := files.Exists("jobs/garbage.json")
	require.NoError(t, err)
	assert.False(t, ok)
}
