package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TTLKit        = 10 * time.Minute
	TTLEmailLease = 2 * time.Minute
)

// New returns nil for an empty address; callers treat a nil client as
// "no Redis" and fall back to uncached behavior.
func New(addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Ping(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	return rdb.Ping(ctx).Err()
}
