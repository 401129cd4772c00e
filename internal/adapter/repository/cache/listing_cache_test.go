package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

func newTestCache(t *testing.T) (*ListingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewListingCache(client, 10*time.Minute, logger.Nop()), mr
}

func jacket() *domain.Listing {
	return &domain.Listing{
		ID:       7,
		SellerID: "seller-1",
		Name:     "Jacket",
		Price:    decimal.RequireFromString("59.90"),
		Category: "Clothes",
		Type:     "Men",
		Color:    "Black",
	}
}

func TestQueryKeys(t *testing.T) {
	assert.Equal(t, "listings:q:All:", queryKey(domain.ListQuery{}))
	assert.Equal(t, "listings:q:All:s1", queryKey(domain.ListQuery{Category: "all", SellerID: "s1"}))
	assert.Equal(t, "listings:q:Home Goods:", queryKey(domain.ListQuery{Category: "home goods"}))
	assert.Equal(t, "listings:idx:Tickets", indexKey("TICKETS"))
}

func TestGetQueryMiss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.GetQuery(context.Background(), domain.ListQuery{Category: "Clothes"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetQueryRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	q := domain.ListQuery{Category: "clothes"}

	require.NoError(t, c.SetQuery(ctx, q, []*domain.Listing{jacket()}))

	got, err := c.GetQuery(ctx, domain.ListQuery{Category: "CLOTHES"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, "Jacket", got[0].Name)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("59.90")))

	member, err := mr.IsMember("listings:idx:Clothes", "listings:q:Clothes:")
	require.NoError(t, err)
	assert.True(t, member, "the query key is recorded in its category index")
	assert.Equal(t, 10*time.Minute, mr.TTL("listings:q:Clothes:"))
	assert.Equal(t, 10*time.Minute, mr.TTL("listings:idx:Clothes"))
}

func TestSetQueryCachesEmptyResult(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	q := domain.ListQuery{Category: "Rental"}

	require.NoError(t, c.SetQuery(ctx, q, nil))

	got, err := c.GetQuery(ctx, q)
	require.NoError(t, err)
	assert.NotNil(t, got, "an empty result is a hit, not a miss")
	assert.Empty(t, got)
}

func TestGetQueryDropsUndecodableEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("listings:q:Clothes:", "{not json"))

	got, err := c.GetQuery(context.Background(), domain.ListQuery{Category: "Clothes"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("listings:q:Clothes:"))
}

func TestInvalidateCategoryDropsAllView(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	queries := []domain.ListQuery{
		{Category: "Clothes"},
		{Category: "Clothes", SellerID: "seller-1"},
		{},
		{Category: "Rental"},
	}
	for _, q := range queries {
		require.NoError(t, c.SetQuery(ctx, q, []*domain.Listing{jacket()}))
	}

	require.NoError(t, c.InvalidateCategory(ctx, "clothes"))

	assert.False(t, mr.Exists("listings:q:Clothes:"))
	assert.False(t, mr.Exists("listings:q:Clothes:seller-1"))
	assert.False(t, mr.Exists("listings:idx:Clothes"))
	assert.False(t, mr.Exists("listings:q:All:"), "a change in any category invalidates the all-categories view")
	assert.False(t, mr.Exists("listings:idx:All"))
	assert.True(t, mr.Exists("listings:q:Rental:"), "other categories stay cached")

	got, err := c.GetQuery(ctx, domain.ListQuery{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidateAllKeepsCategories(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetQuery(ctx, domain.ListQuery{}, []*domain.Listing{jacket()}))
	require.NoError(t, c.SetQuery(ctx, domain.ListQuery{Category: "Clothes"}, []*domain.Listing{jacket()}))

	require.NoError(t, c.InvalidateCategory(ctx, domain.AllCategories))

	assert.False(t, mr.Exists("listings:q:All:"))
	assert.True(t, mr.Exists("listings:q:Clothes:"))
}

func TestInvalidateUncachedCategory(t *testing.T) {
	c, _ := newTestCache(t)
	assert.NoError(t, c.InvalidateCategory(context.Background(), "Tickets"))
}
