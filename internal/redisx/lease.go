package redisx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Lease is a best-effort mutual exclusion across processes. A nil *Lease
// always grants.
type Lease struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewLease(rdb *redis.Client, key string, ttl time.Duration) *Lease {
	if rdb == nil {
		return nil
	}
	return &Lease{rdb: rdb, key: key, ttl: ttl}
}

// Acquire reports whether the caller now holds the lease. While held, the
// lease is extended every third of its TTL so long batches keep it. The
// returned release func is safe to call when ok is false.
func (l *Lease) Acquire(ctx context.Context) (release func(), ok bool, err error) {
	if l == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keep(context.WithoutCancel(ctx), token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = releaseScript.Run(context.WithoutCancel(ctx), l.rdb, []string{l.key}, token).Err()
		})
	}, true, nil
}

func (l *Lease) keep(ctx context.Context, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := l.ttl / 3
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			n, err := extendScript.Run(ctx, l.rdb, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				// taken over after expiry
				return
			}
		}
	}
}
