package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK LOCK
// ══════════════════════════════════════════════════════════════════════════════

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StreakLocker implements learner.Locker with SET NX PX and a per-holder
// token. A holder that outlives the TTL loses the lock silently; the row
// lock in the repository still keeps the write atomic.
type StreakLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
	log    *logger.Logger
}

var _ learner.Locker = (*StreakLocker)(nil)

// NewStreakLocker creates a locker. ttl <= 0 selects TTLStreakLock.
func NewStreakLocker(cache *Cache, ttl time.Duration, log *logger.Logger) *StreakLocker {
	if ttl <= 0 {
		ttl = TTLStreakLock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StreakLocker{
		client: cache.Client(),
		ttl:    ttl,
		poll:   25 * time.Millisecond,
		log:    log.With(logger.Component("streak_lock")),
	}
}

// Lock polls until the key is free or ctx is done.
func (l *StreakLocker) Lock(ctx context.Context, id shared.LearnerID) (func(), error) {
	key := LockKey(id.String())
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, lockError(err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, lockError(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *StreakLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.log.Warn("failed to release streak lock", logger.String("key", key), logger.Err(err))
	}
}

func lockError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapError("redis", "Lock", shared.ErrTimeout, "streak lock wait timed out", err)
	}
	return shared.WrapError("redis", "Lock", shared.ErrStorageUnavailable, "streak lock unavailable", err)
}
