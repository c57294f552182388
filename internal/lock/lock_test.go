package lock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/filestore"
)

func newTestLocker(t *testing.T) (*Locker, *filestore.Store) {
	t.Helper()
	fs := filestore.NewMemory()
	return New(fs, Config{
		StaleAfter:   30 * time.Second,
		PollInterval: 5 * time.Millisecond,
		Timeout:      200 * time.Millisecond,
	}), fs
}

func writeMarker(t *testing.T, fs *filestore.Store, resource string, age time.Duration) {
	t.Helper()
	data, err := json.Marshal(Marker{PID: 999, Owner: "other", AcquiredAt: time.Now().Add(-age)})
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(resource+Suffix, data))
}

func TestAcquireRelease(t *testing.T) {
	l, fs := newTestLocker(t)

	h, err := l.Acquire("checkpoint/processed.json")
	require.NoError(t, err)
	require.NotNil(t, h)

	ok, err := fs.Exists("checkpoint/processed.json.lock")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = l.Acquire("checkpoint/processed.json")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, l.Release(h))
	ok, err = fs.Exists("checkpoint/processed.json.lock")
	require.NoError(t, err)
	assert.False(t, ok)

	h2, err := l.Acquire("checkpoint/processed.json")
	require.NoError(t, err)
	assert.NotEqual(t, h.Owner, h2.Owner)
}

func TestAcquire_FreshMarkerBlocks(t *testing.T) {
	l, fs := newTestLocker(t)
	writeMarker(t, fs, "res", 5*time.Second)

	_, err := l.Acquire("res")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestAcquire_StaleMarkerIsTakenOver(t *testing.T) {
	l, fs := newTestLocker(t)
	writeMarker(t, fs, "res", 31*time.Second)

	h, err := l.Acquire("res")
	require.NoError(t, err)

	var m Marker
	require.NoError(t, fs.ReadJSON("res"+Suffix, &m))
	assert.Equal(t, h.Owner, m.Owner)
}

func TestAcquire_UnreadableMarkerUsesModTime(t *testing.T) {
	l, fs := newTestLocker(t)
	require.NoError(t, fs.WriteFile("res"+Suffix, []byte("garbage")))

	_, err := l.Acquire("res")
	assert.ErrorIs(t, err, ErrBusy, "freshly written marker is live even if unreadable")

	l.nowFunc = func() time.Time { return time.Now().Add(time.Minute) }
	_, err = l.Acquire("res")
	assert.NoError(t, err)
}

func TestRelease_DoesNotRemoveForeignMarker(t *testing.T) {
	l, fs := newTestLocker(t)

	h, err := l.Acquire("res")
	require.NoError(t, err)

	// Simulate our marker going stale and another process taking over.
	writeMarker(t, fs, "res", 0)

	require.NoError(t, l.Release(h))
	ok, err := fs.Exists("res" + Suffix)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_Nil(t *testing.T) {
	l, _ := newTestLocker(t)
	assert.NoError(t, l.Release(nil))
}

func TestWithLock_RunsAndReleases(t *testing.T) {
	l, fs := newTestLocker(t)

	called := false
	err := l.WithLock(context.Background(), "res", 0, func() error {
		called = true
		ok, err := fs.Exists("res" + Suffix)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	ok, err := fs.Exists("res" + Suffix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	l, fs := newTestLocker(t)

	boom := errors.New("boom")
	err := l.WithLock(context.Background(), "res", 0, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	ok, err := fs.Exists("res" + Suffix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithLock_ReleasesOnPanic(t *testing.T) {
	l, fs := newTestLocker(t)

	assert.Panics(t, func() {
		_ = l.WithLock(context.Background(), "res", 0, func() error { panic("bad") })
	})

	ok, err := fs.Exists("res" + Suffix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithLock_Timeout(t *testing.T) {
	l, fs := newTestLocker(t)
	writeMarker(t, fs, "res", 0)

	start := time.Now()
	err := l.WithLock(context.Background(), "res", 50*time.Millisecond, func() error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWithLock_WaitsForRelease(t *testing.T) {
	l, _ := newTestLocker(t)

	h, err := l.Acquire("res")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = l.Release(h)
	}()

	err = l.WithLock(context.Background(), "res", time.Second, func() error { return nil })
	assert.NoError(t, err)
}

func TestWithLock_ContextCancelled(t *testing.T) {
	l, fs := newTestLocker(t)
	writeMarker(t, fs, "res", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.WithLock(ctx, "res", time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithLock_SerializesWriters(t *testing.T) {
	fs, err := filestore.NewOS(t.TempDir())
	require.NoError(t, err)
	l := New(fs, Config{PollInterval: time.Millisecond, Timeout: 2 * time.Second})

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "res", 2*time.Second, func() error {
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}
