/*
Package redislock provides a Redis-backed generic.Locker.

PURPOSE:
  The in-process KeyedMutex serializes one server. When several server
  processes share one database, admission control and ledger updates must
  be serialized across all of them; this locker does that with a single
  Redis key per lock.

PROTOCOL:
  Acquire: SET <prefix><key> <token> NX PX <ttl>, retried every RetryEvery
           until the context ends.
  Release: Lua compare-and-delete so only the holder's token is removed.

  The TTL bounds how long a crashed holder can block others. Critical
  sections here are a handful of statements, so the default TTL is generous.

SEE ALSO:
  - generic/lock.go: Locker interface and the in-process KeyedMutex
*/
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/warp/studio-engine/generic"
)

const (
	DefaultPrefix     = "studio:lock:"
	DefaultTTL        = 10 * time.Second
	DefaultRetryEvery = 25 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Options configures a Locker. Zero values take the defaults.
type Options struct {
	Prefix     string
	TTL        time.Duration
	RetryEvery time.Duration
}

// Locker implements generic.Locker on a Redis client.
type Locker struct {
	client redis.UniversalClient
	opts   Options
	logger zerolog.Logger
}

// New creates a Redis locker.
func New(client redis.UniversalClient, opts Options, logger zerolog.Logger) *Locker {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = DefaultRetryEvery
	}
	return &Locker{client: client, opts: opts, logger: logger}
}

// Lock blocks until key is held or ctx ends.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.opts.RetryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.opts.TTL).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, generic.Storage("acquire lock "+key, fmt.Errorf("redis: %w", err))
		}
		if ok {
			return func() { l.release(name, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release runs detached from the caller's context so a cancelled request
// still frees its lock.
func (l *Locker) release(name, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn().Err(err).Str("lock", name).Msg("lock release failed; it will expire by TTL")
	}
}

// Ping checks the Redis connection.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ generic.Locker = (*Locker)(nil)
