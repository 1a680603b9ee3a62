package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/types"
)

// RecommendationCache is the ephemeral tier of the recommendation store.
// It is best effort: lookups report a miss on any backend failure and
// writes are fire-and-forget, so the waterfall degrades to the durable
// store instead of surfacing cache errors.
type RecommendationCache interface {
	GetUserProducts(ctx context.Context, userID uuid.UUID) ([]*types.Product, bool)
	SetUserProducts(ctx context.Context, userID uuid.UUID, products []*types.Product, ttl time.Duration)
	DeleteUser(ctx context.Context, userID uuid.UUID)

	GetSimilarProducts(ctx context.Context, productID uuid.UUID, limit int) ([]*types.Product, bool)
	SetSimilarProducts(ctx context.Context, productID uuid.UUID, limit int, products []*types.Product, ttl time.Duration)
	DeleteSimilarProducts(ctx context.Context, productID uuid.UUID)

	GetNeighborIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, bool)
	SetNeighborIDs(ctx context.Context, userID uuid.UUID, neighborIDs []uuid.UUID, ttl time.Duration)

	Close() error
}

type recommendationCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRecommendationCache(log *logger.Logger) (RecommendationCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &recommendationCache{
		log: log.With("service", "RecommendationCache"),
		rdb: rdb,
	}, nil
}

func userKey(userID uuid.UUID) string {
	return fmt.Sprintf("rec:user:%s", userID)
}

func similarKey(productID uuid.UUID, limit int) string {
	return fmt.Sprintf("rec:similar:%s:%d", productID, limit)
}

func neighborKey(userID uuid.UUID) string {
	return fmt.Sprintf("rec:neighbors:%s", userID)
}

func (c *recommendationCache) GetUserProducts(ctx context.Context, userID uuid.UUID) ([]*types.Product, bool) {
	return c.getProducts(ctx, userKey(userID))
}

func (c *recommendationCache) SetUserProducts(ctx context.Context, userID uuid.UUID, products []*types.Product, ttl time.Duration) {
	c.setJSON(ctx, userKey(userID), products, ttl)
}

func (c *recommendationCache) DeleteUser(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, userKey(userID)).Err(); err != nil {
		c.log.Warn("cache delete failed", "key", userKey(userID), "error", err)
	}
}

func (c *recommendationCache) GetSimilarProducts(ctx context.Context, productID uuid.UUID, limit int) ([]*types.Product, bool) {
	return c.getProducts(ctx, similarKey(productID, limit))
}

func (c *recommendationCache) SetSimilarProducts(ctx context.Context, productID uuid.UUID, limit int, products []*types.Product, ttl time.Duration) {
	c.setJSON(ctx, similarKey(productID, limit), products, ttl)
}

// DeleteSimilarProducts removes every cached similar-items list for the
// product, across all limits.
func (c *recommendationCache) DeleteSimilarProducts(ctx context.Context, productID uuid.UUID) {
	pattern := fmt.Sprintf("rec:similar:%s:*", productID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.Warn("cache delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache scan failed", "pattern", pattern, "error", err)
	}
}

func (c *recommendationCache) GetNeighborIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, bool) {
	raw, err := c.rdb.Get(ctx, neighborKey(userID)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("cache get failed", "key", neighborKey(userID), "error", err)
		}
		return nil, false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		c.log.Warn("cache entry unmarshal failed, treating as miss", "key", neighborKey(userID), "error", err)
		return nil, false
	}
	return ids, true
}

func (c *recommendationCache) SetNeighborIDs(ctx context.Context, userID uuid.UUID, neighborIDs []uuid.UUID, ttl time.Duration) {
	c.setJSON(ctx, neighborKey(userID), neighborIDs, ttl)
}

func (c *recommendationCache) Close() error {
	return c.rdb.Close()
}

func (c *recommendationCache) getProducts(ctx context.Context, key string) ([]*types.Product, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var products []*types.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		c.log.Warn("cache entry unmarshal failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return products, true
}

func (c *recommendationCache) setJSON(ctx context.Context, key string, val interface{}, ttl time.Duration) {
	raw, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("cache entry marshal failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}
