package workers

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/staffbook/internal/storage"
)

type stubRemover struct {
	err     error
	removed []string
}

func (s *stubRemover) Delete(ctx context.Context, storedPath string) error {
	s.removed = append(s.removed, storedPath)
	return s.err
}

func testPool(files storage.Remover) *CleanupWorkerPool {
	l := logrus.New()
	l.SetOutput(io.Discard)
	p := &CleanupWorkerPool{Files: files, Logger: l}
	p.defaults()
	return p
}

func TestHandleMsg(t *testing.T) {
	msg := func(path any) redis.XMessage {
		return redis.XMessage{ID: "1-0", Values: map[string]any{"path": path}}
	}

	t.Run("deletes and acks", func(t *testing.T) {
		files := &stubRemover{}
		assert.True(t, testPool(files).handleMsg(context.Background(), msg("uploads/1.png")))
		assert.Equal(t, []string{"uploads/1.png"}, files.removed)
	})

	t.Run("already gone is done", func(t *testing.T) {
		files := &stubRemover{err: storage.ErrNotExist}
		assert.True(t, testPool(files).handleMsg(context.Background(), msg("uploads/1.png")))
	})

	t.Run("invalid path is dropped", func(t *testing.T) {
		files := &stubRemover{err: storage.ErrInvalidPath}
		assert.True(t, testPool(files).handleMsg(context.Background(), msg("../etc/passwd")))
	})

	t.Run("transient failure stays pending", func(t *testing.T) {
		files := &stubRemover{err: errors.New("io timeout")}
		assert.False(t, testPool(files).handleMsg(context.Background(), msg("uploads/1.png")))
	})

	t.Run("missing path", func(t *testing.T) {
		files := &stubRemover{}
		assert.True(t, testPool(files).handleMsg(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{}}))
		assert.Empty(t, files.removed)
	})
}

func TestDirectReaper(t *testing.T) {
	assert.NoError(t, DirectReaper{Files: &stubRemover{err: storage.ErrNotExist}}.Reap(context.Background(), "uploads/x.png"))

	boom := errors.New("boom")
	assert.ErrorIs(t, DirectReaper{Files: &stubRemover{err: boom}}.Reap(context.Background(), "uploads/x.png"), boom)
}

func TestPoolDefaults(t *testing.T) {
	p := testPool(&stubRemover{})
	assert.Equal(t, DefaultCleanupStream, p.Stream)
	assert.Equal(t, DefaultCleanupGroup, p.Group)
	assert.Equal(t, 2, p.NumWorkers)
	assert.Equal(t, 5*time.Second, p.Block)
	assert.Equal(t, time.Minute, p.ReclaimIdle)

	assert.Error(t, (&CleanupWorkerPool{}).Start(context.Background()))
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("ERR")))
}

// flakyRemover fails the first n deletes, then passes through.
type flakyRemover struct {
	mu    sync.Mutex
	n     int
	calls int
	next  storage.Remover
}

func (f *flakyRemover) Delete(ctx context.Context, storedPath string) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.n
	f.mu.Unlock()
	if fail {
		return errors.New("io timeout")
	}
	return f.next.Delete(ctx, storedPath)
}

func (f *flakyRemover) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func storedImage(t *testing.T) (*storage.LocalStore, string) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	p, err := store.Upload(context.Background(), "old.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	return store, p
}

func gone(store storage.Opener, p string) bool {
	obj, err := store.Open(context.Background(), p)
	if err == nil {
		obj.Body.Close()
	}
	return errors.Is(err, storage.ErrNotExist)
}

func pending(rdb *redis.Client) int64 {
	res, err := rdb.XPending(context.Background(), DefaultCleanupStream, DefaultCleanupGroup).Result()
	if err != nil {
		return -1
	}
	return res.Count
}

func TestCleanupPoolReapsQueuedImage(t *testing.T) {
	rdb := newRedis(t)
	store, p := storedImage(t)
	ctx := context.Background()

	pool := testPool(store)
	pool.Redis = rdb
	pool.NumWorkers = 1
	pool.Block = 20 * time.Millisecond
	require.NoError(t, pool.Start(ctx))
	t.Cleanup(pool.Stop)

	require.NoError(t, StreamReaper{Redis: rdb}.Reap(ctx, p))

	require.Eventually(t, func() bool {
		return gone(store, p) && pending(rdb) == 0
	}, 3*time.Second, 10*time.Millisecond)

	n, err := rdb.XLen(ctx, DefaultCleanupStream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	t.Run("existing group is reused", func(t *testing.T) {
		again := testPool(store)
		again.Redis = rdb
		again.Block = 20 * time.Millisecond
		require.NoError(t, again.Start(ctx))
		again.Stop()
	})
}

func TestCleanupPoolReclaimsFailedDelete(t *testing.T) {
	rdb := newRedis(t)
	store, p := storedImage(t)
	files := &flakyRemover{n: 1, next: store}
	ctx := context.Background()

	pool := testPool(files)
	pool.Redis = rdb
	pool.NumWorkers = 1
	pool.Block = 20 * time.Millisecond
	pool.ReclaimIdle = 50 * time.Millisecond
	require.NoError(t, pool.Start(ctx))
	t.Cleanup(pool.Stop)

	require.NoError(t, StreamReaper{Redis: rdb}.Reap(ctx, p))

	require.Eventually(t, func() bool {
		return gone(store, p) && pending(rdb) == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, files.Calls(), 2)
}

func TestCleanupPoolStopWaitsForConsumers(t *testing.T) {
	rdb := newRedis(t)
	store, _ := storedImage(t)

	pool := testPool(store)
	pool.Redis = rdb
	pool.Block = 20 * time.Millisecond
	require.NoError(t, pool.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	(&CleanupWorkerPool{}).Stop()
}
