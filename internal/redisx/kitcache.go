package redisx

import (
	"context"
	"encoding/json"
	"time"

	"tfsrentals/internal/domain"

	"github.com/redis/go-redis/v9"
)

// KitCache keeps resolved kits keyed by anchor product and language.
// A nil *KitCache is valid and never hits.
type KitCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewKitCache(rdb *redis.Client, ttl time.Duration) *KitCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = TTLKit
	}
	return &KitCache{rdb: rdb, ttl: ttl}
}

func kitKey(productID, lang string) string { return "kit:" + lang + ":" + productID }

func (c *KitCache) Get(ctx context.Context, productID, lang string) (domain.ResolvedKit, bool, error) {
	var kit domain.ResolvedKit
	if c == nil {
		return kit, false, nil
	}
	b, err := c.rdb.Get(ctx, kitKey(productID, lang)).Bytes()
	if err == redis.Nil {
		return kit, false, nil
	}
	if err != nil {
		return kit, false, err
	}
	if err := json.Unmarshal(b, &kit); err != nil {
		return kit, false, err
	}
	return kit, true, nil
}

func (c *KitCache) Put(ctx context.Context, productID, lang string, kit domain.ResolvedKit) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(kit)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, kitKey(productID, lang), b, c.ttl).Err()
}

func (c *KitCache) Invalidate(ctx context.Context, productID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, kitKey(productID, "en"), kitKey(productID, "fr")).Err()
}
