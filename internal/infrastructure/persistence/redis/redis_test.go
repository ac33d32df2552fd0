package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/devpath/progression-engine/pkg/circuitbreaker"
)

// mapStore is a valueStore kept in process, encoding like Cache does.
type mapStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	down  bool
	calls int
}

func newMapStore() *mapStore { return &mapStore{data: make(map[string][]byte)} }

func (m *mapStore) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.down {
		return errors.New("connection refused")
	}
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mapStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.down {
		return errors.New("connection refused")
	}
	m.data[key] = b
	return nil
}

func (m *mapStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// countingCatalog counts inner lookups.
type countingCatalog struct {
	content.Catalog
	courseLoads atomic.Int32
}

func (c *countingCatalog) GetCourse(ctx context.Context, id content.CourseID) (*content.Course, error) {
	c.courseLoads.Add(1)
	return c.Catalog.GetCourse(ctx, id)
}

func seededCatalog() *countingCatalog {
	cat := memory.NewCatalog()
	cat.PutCourse(&content.Course{
		ID: "c1", Slug: "go-basics", Title: "Go Basics",
		Lessons: []content.Lesson{
			{ID: "l2", Title: "Two", Position: 2, Status: content.LessonPublished},
			{ID: "l1", Title: "One", Position: 1, Status: content.LessonPublished},
		},
	})
	cat.PutProblem(&content.Problem{ID: "p1", Title: "Hello", Published: true, ExpectedOutput: "hi"})
	return &countingCatalog{Catalog: cat}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "content:course:c1", ContentKey("course", "c1"))
	assert.Equal(t, "lock:streak:u1", LockKey("u1"))
}

func TestConfig_Options(t *testing.T) {
	opts, err := DefaultConfig("redis://localhost:6379/2").Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)

	_, err = DefaultConfig("http://nope").Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestCachedCatalog_ReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := seededCatalog()
	kv := newMapStore()
	cat := newCachedCatalog(inner, kv, time.Minute, nil)

	first, err := cat.GetCourse(ctx, "c1")
	require.NoError(t, err)
	second, err := cat.GetCourse(ctx, "c1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, inner.courseLoads.Load())
	assert.Equal(t, first.Slug, second.Slug)
	require.Len(t, second.Lessons, 2)
	assert.Equal(t, content.LessonID("l1"), second.Lessons[0].ID)

	p, err := cat.GetProblem(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "hi", p.ExpectedOutput)
}

func TestCachedCatalog_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := seededCatalog()
	kv := newMapStore()
	cat := newCachedCatalog(inner, kv, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := cat.GetCourse(ctx, "missing")
		assert.True(t, shared.IsNotFound(err))
	}
	assert.EqualValues(t, 2, inner.courseLoads.Load())
	assert.Empty(t, kv.data)
}

func TestCachedCatalog_DegradesWhenCacheFails(t *testing.T) {
	ctx := context.Background()
	inner := seededCatalog()
	kv := newMapStore()
	kv.down = true
	cat := newCachedCatalog(inner, kv, time.Minute, nil)

	c, err := cat.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "go-basics", c.Slug)
}

func TestCachedCatalog_BreakerSkipsDeadCache(t *testing.T) {
	ctx := context.Background()
	inner := seededCatalog()
	kv := newMapStore()
	kv.down = true
	cat := newCachedCatalog(inner, kv, time.Minute, nil)

	for i := 0; i < 5; i++ {
		_, err := cat.GetCourse(ctx, "c1")
		require.NoError(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cat.BreakerState())
	assert.EqualValues(t, 5, inner.courseLoads.Load())

	// Three failing calls opened the circuit; later reads never reached the store.
	kv.mu.Lock()
	defer kv.mu.Unlock()
	assert.Equal(t, 3, kv.calls)
}

func TestCachedCatalog_Invalidate(t *testing.T) {
	ctx := context.Background()
	inner := seededCatalog()
	kv := newMapStore()
	cat := newCachedCatalog(inner, kv, time.Minute, nil)

	_, err := cat.GetCourse(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, cat.Invalidate(ctx, ContentKey("course", "c1")))
	_, err = cat.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.courseLoads.Load())
}

func TestStreakLocker_Integration(t *testing.T) {
	url := os.Getenv("REDIS_INTEGRATION_URL")
	if url == "" {
		t.Skip("set REDIS_INTEGRATION_URL to run Redis integration tests")
	}
	ctx := context.Background()
	cache, err := NewCache(ctx, DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	locker := NewStreakLocker(cache, 2*time.Second, nil)
	id := shared.LearnerID("it-" + uuid.NewString())

	unlock, err := locker.Lock(ctx, id)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, id)
	assert.ErrorIs(t, err, shared.ErrTimeout)

	unlock()
	unlock2, err := locker.Lock(ctx, id)
	require.NoError(t, err)
	unlock2()
}
