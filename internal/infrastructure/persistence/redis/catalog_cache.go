package redis

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/pkg/circuitbreaker"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// valueStore is the slice of Cache the catalog decorator needs.
type valueStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedCatalog is a read-through content.Catalog. Concurrent misses on
// one key share a single load. Lookup failures are never cached, and a
// failing cache degrades to direct catalog reads; after repeated cache
// failures a circuit breaker skips the cache until it answers again.
//
// Returned values may be shared between callers and must not be mutated.
type CachedCatalog struct {
	inner   content.Catalog
	kv      valueStore
	ttl     time.Duration
	group   singleflight.Group
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

var _ content.Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps inner. ttl <= 0 selects TTLContentCache.
func NewCachedCatalog(inner content.Catalog, cache *Cache, ttl time.Duration, log *logger.Logger) *CachedCatalog {
	return newCachedCatalog(inner, cache, ttl, log)
}

func newCachedCatalog(inner content.Catalog, kv valueStore, ttl time.Duration, log *logger.Logger) *CachedCatalog {
	if ttl <= 0 {
		ttl = TTLContentCache
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("content_cache"))
	return &CachedCatalog{
		inner: inner,
		kv:    kv,
		ttl:   ttl,
		log:   log,
		breaker: circuitbreaker.CacheBreaker("content-cache",
			func(err error) bool { return !errors.Is(err, ErrCacheMiss) },
			func(name string, from, to circuitbreaker.State) {
				log.Warn("cache circuit state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			},
		),
	}
}

func (c *CachedCatalog) GetCourse(ctx context.Context, id content.CourseID) (*content.Course, error) {
	return readThrough(ctx, c, ContentKey("course", id.String()), func(ctx context.Context) (*content.Course, error) {
		return c.inner.GetCourse(ctx, id)
	})
}

func (c *CachedCatalog) GetCourseBySlug(ctx context.Context, slug string) (*content.Course, error) {
	return readThrough(ctx, c, ContentKey("course-slug", slug), func(ctx context.Context) (*content.Course, error) {
		return c.inner.GetCourseBySlug(ctx, slug)
	})
}

func (c *CachedCatalog) ListCourses(ctx context.Context) ([]*content.Course, error) {
	return readThrough(ctx, c, ContentKey("courses", "all"), c.inner.ListCourses)
}

func (c *CachedCatalog) GetCareer(ctx context.Context, id content.CareerID) (*content.CareerPath, error) {
	return readThrough(ctx, c, ContentKey("career", id.String()), func(ctx context.Context) (*content.CareerPath, error) {
		return c.inner.GetCareer(ctx, id)
	})
}

func (c *CachedCatalog) ListCareers(ctx context.Context) ([]*content.CareerPath, error) {
	return readThrough(ctx, c, ContentKey("careers", "all"), c.inner.ListCareers)
}

func (c *CachedCatalog) GetProblem(ctx context.Context, id content.ProblemID) (*content.Problem, error) {
	return readThrough(ctx, c, ContentKey("problem", id.String()), func(ctx context.Context) (*content.Problem, error) {
		return c.inner.GetProblem(ctx, id)
	})
}

// Invalidate drops cached entries, e.g. after a content re-seed.
func (c *CachedCatalog) Invalidate(ctx context.Context, keys ...string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.kv.Delete(ctx, keys...)
	})
}

// BreakerState reports whether the cache is currently bypassed.
func (c *CachedCatalog) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func readThrough[T any](ctx context.Context, c *CachedCatalog, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.kv.Get(ctx, key, &out)
	})
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrCacheMiss) && !circuitbreaker.Rejected(err) {
		c.log.Debug("content cache read failed", logger.String("key", key), logger.Err(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		err = c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.kv.Set(ctx, key, val, c.ttl)
		})
		if err != nil && !circuitbreaker.Rejected(err) {
			c.log.Debug("content cache write failed", logger.String("key", key), logger.Err(err))
		}
		return val, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}
