// README: Per-user booking lock shared across processes through Redis.
package ride

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fareway/internal/types"
)

const (
	lockKeyPrefix = "fareway:book_lock:%s"
	// Poll interval while another holder owns the key.
	lockRetry = 25 * time.Millisecond
	// Budget for the release and refresh round trips.
	lockOpTimeout = 2 * time.Second
)

// Only the holder that set the token may delete the key.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Only the holder that set the token may push the expiry out.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewRedisLocker returns a locker whose keys expire after ttl unless renewed.
// A held lock is renewed every ttl/3 until released, so a live holder keeps
// exclusivity however long the booking takes. A holder that dies or loses
// Redis for longer than ttl loses the lock; the booking ledger still has to
// tolerate that window.
func NewRedisLocker(redis *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisLocker{redis: redis, ttl: ttl, log: log}
}

func (l *RedisLocker) Lock(ctx context.Context, key types.ID) (func(), error) {
	redisKey := lockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetry)
	defer ticker.Stop()
	for {
		ok, err := l.redis.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire booking lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(redisKey, token)
		})
	}, nil
}

// keepAlive renews the key until stop is closed or the token no longer owns it.
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
		n, err := refreshScript.Run(ctx, l.redis, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			l.log.WithError(err).WithField("key", redisKey).Warn("refresh booking lock")
			continue
		}
		if n == 0 {
			l.log.WithField("key", redisKey).Warn("booking lock expired before release")
			return
		}
	}
}

// release deletes the key if token still owns it. Failures are logged since
// the caller has already finished its critical section.
func (l *RedisLocker) release(redisKey, token string) {
	// Release even if the caller's ctx was cancelled mid-booking.
	ctx, cancel := context.WithTimeout(context.Background(), lockOpTimeout)
	defer cancel()

	n, err := unlockScript.Run(ctx, l.redis, []string{redisKey}, token).Int64()
	if err != nil {
		l.log.WithError(err).WithField("key", redisKey).Warn("release booking lock")
		return
	}
	if n == 0 {
		l.log.WithField("key", redisKey).Warn("booking lock expired before release")
	}
}

func lockKey(key types.ID) string {
	return fmt.Sprintf(lockKeyPrefix, string(key))
}
