package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const (
	queryKeyPrefix = "listings:q:"
	indexKeyPrefix = "listings:idx:"
	defaultTTL     = time.Hour
)

// ListingCache caches the result of category queries. Every cached key is recorded in
// a per-category index set so a write can drop exactly the queries it affects.
type ListingCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logger.Logger
}

func NewListingCache(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *ListingCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ListingCache{client: client, ttl: ttl, logger: log}
}

func categoryTag(category string) string {
	if category == "" || strings.EqualFold(category, domain.AllCategories) {
		return domain.AllCategories
	}
	if canonical, ok := domain.CanonicalCategory(category); ok {
		return canonical
	}
	return category
}

func queryKey(q domain.ListQuery) string {
	return queryKeyPrefix + categoryTag(q.Category) + ":" + q.SellerID
}

func indexKey(category string) string {
	return indexKeyPrefix + categoryTag(category)
}

// GetQuery returns nil, nil on a cache miss.
func (c *ListingCache) GetQuery(ctx context.Context, q domain.ListQuery) ([]*domain.Listing, error) {
	data, err := c.client.Get(ctx, queryKey(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var listings []*domain.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		c.logger.Warn("ListingCache.GetQuery: dropping undecodable entry", "key", queryKey(q), "error", err.Error())
		_ = c.client.Del(ctx, queryKey(q)).Err()
		return nil, nil
	}
	return listings, nil
}

func (c *ListingCache) SetQuery(ctx context.Context, q domain.ListQuery, listings []*domain.Listing) error {
	if listings == nil {
		listings = []*domain.Listing{}
	}
	data, err := json.Marshal(listings)
	if err != nil {
		return err
	}
	key := queryKey(q)
	idx := indexKey(q.Category)

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	pipe.SAdd(ctx, idx, key)
	pipe.Expire(ctx, idx, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateCategory drops cached queries for category and for the all-categories view.
func (c *ListingCache) InvalidateCategory(ctx context.Context, category string) error {
	tags := []string{indexKey(category)}
	if categoryTag(category) != domain.AllCategories {
		tags = append(tags, indexKey(domain.AllCategories))
	}

	var keys []string
	for _, idx := range tags {
		members, err := c.client.SMembers(ctx, idx).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("cache index read: %w", err)
		}
		keys = append(keys, members...)
		keys = append(keys, idx)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	c.logger.Debug("ListingCache.InvalidateCategory: dropped cached queries", "category", category, "keys", len(keys))
	return nil
}
