package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/diewo77/nimblestore/internal/models"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
)

const activeProductsKey = "catalog:active"

// Cache is a cache-aside layer over the active-product listing.
// A nil *Cache or a Cache without a redis client degrades to calling the
// ledger directly, so the server runs fine without redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

// ActiveProducts returns the cached active-product listing, loading and
// storing it on a miss. Concurrent misses share a single load.
func (c *Cache) ActiveProducts(ctx context.Context, load func(context.Context) ([]models.Product, error)) ([]models.Product, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}

	payload, err := c.client.Get(ctx, activeProductsKey).Result()
	if err == nil {
		var products []models.Product
		if jsonErr := json.Unmarshal([]byte(payload), &products); jsonErr == nil {
			return products, nil
		}
		// corrupt entry: fall through and reload
	} else if err != redis.Nil {
		// redis down is not fatal for reads
		return load(ctx)
	}

	v, err, _ := c.group.Do(activeProductsKey, func() (any, error) {
		products, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if data, jsonErr := json.Marshal(products); jsonErr == nil {
			c.client.Set(ctx, activeProductsKey, data, c.ttl)
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Product), nil
}

// Invalidate drops the cached listing. Called after any stock or catalog
// mutation; losing the delete only shortens freshness to the TTL.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, activeProductsKey)
}
