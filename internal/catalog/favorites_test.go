package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

func newTestFavorites(t *testing.T, kv *fakeKV, session *fakeSession, b *bus.Bus) *Favorites {
	t.Helper()
	fav, err := NewFavorites(context.Background(), kv, session, b, nil)
	require.NoError(t, err)
	t.Cleanup(fav.Close)
	return fav
}

func TestToggleBlouse(t *testing.T) {
	fav := newTestFavorites(t, newFakeKV(), newFakeSession(""), bus.New(nil))
	ctx := context.Background()
	snap := domain.DisplaySnapshot{Name: "Blouse", Price: decimal.NewFromInt(25)}

	assert.Empty(t, fav.List())

	on, err := fav.Toggle(ctx, 42, snap)
	require.NoError(t, err)
	assert.True(t, on)
	list := fav.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Blouse", list[0].Name)
	assert.Equal(t, int64(42), list[0].ListingID)
	assert.True(t, fav.IsFavorited(42))

	on, err = fav.Toggle(ctx, 42, snap)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Empty(t, fav.List())
	assert.False(t, fav.IsFavorited(42))
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	ctx := context.Background()
	for _, startFavorited := range []bool{false, true} {
		fav := newTestFavorites(t, newFakeKV(), newFakeSession(""), bus.New(nil))
		if startFavorited {
			_, err := fav.Toggle(ctx, 7, domain.DisplaySnapshot{Name: "Lamp"})
			require.NoError(t, err)
		}

		_, err := fav.Toggle(ctx, 7, domain.DisplaySnapshot{Name: "Lamp"})
		require.NoError(t, err)
		_, err = fav.Toggle(ctx, 7, domain.DisplaySnapshot{Name: "Lamp"})
		require.NoError(t, err)

		assert.Equal(t, startFavorited, fav.IsFavorited(7))
	}
}

func TestFavoritesKeepInsertionOrder(t *testing.T) {
	fav := newTestFavorites(t, newFakeKV(), newFakeSession(""), bus.New(nil))
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		_, err := fav.Toggle(ctx, id, domain.DisplaySnapshot{Name: "item"})
		require.NoError(t, err)
	}
	_, err := fav.Toggle(ctx, 10, domain.DisplaySnapshot{})
	require.NoError(t, err)
	_, err = fav.Toggle(ctx, 10, domain.DisplaySnapshot{Name: "item"})
	require.NoError(t, err)

	var ids []int64
	for _, e := range fav.List() {
		ids = append(ids, e.ListingID)
	}
	assert.Equal(t, []int64{30, 20, 10}, ids)
}

func TestToggleIsNotReportedWhenWriteFails(t *testing.T) {
	kv := newFakeKV()
	b := bus.New(nil)
	fav := newTestFavorites(t, kv, newFakeSession(""), b)
	events := 0
	b.Subscribe(bus.TopicFavoritesChanged, func(bus.Event) { events++ })

	kv.failWrites(errors.New("disk full"))
	_, err := fav.Toggle(context.Background(), 42, domain.DisplaySnapshot{Name: "Blouse"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	var pErr *domain.PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "favorites", pErr.Key)
	assert.False(t, fav.IsFavorited(42))
	assert.Empty(t, fav.List())
	assert.Zero(t, events)
}

func TestFavoritesSurviveRestart(t *testing.T) {
	kv := newFakeKV()
	session := newFakeSession("seller-1")
	ctx := context.Background()

	first := newTestFavorites(t, kv, session, bus.New(nil))
	_, err := first.Toggle(ctx, 42, domain.DisplaySnapshot{Name: "Blouse", Category: "Clothes"})
	require.NoError(t, err)
	assert.True(t, kv.has("favorites:seller-1"))

	second := newTestFavorites(t, kv, session, bus.New(nil))
	require.Len(t, second.List(), 1)
	assert.Equal(t, "Blouse", second.List()[0].Name)
}

func TestFavoritesFollowIdentity(t *testing.T) {
	kv := newFakeKV()
	session := newFakeSession("seller-1")
	fav := newTestFavorites(t, kv, session, bus.New(nil))
	ctx := context.Background()

	_, err := fav.Toggle(ctx, 1, domain.DisplaySnapshot{Name: "Desk"})
	require.NoError(t, err)

	session.set(domain.Identity{SellerID: "seller-2", Authenticated: true})
	assert.Empty(t, fav.List())
	_, err = fav.Toggle(ctx, 2, domain.DisplaySnapshot{Name: "Chair"})
	require.NoError(t, err)

	session.set(domain.Identity{SellerID: "seller-1", Authenticated: true})
	require.Len(t, fav.List(), 1)
	assert.Equal(t, int64(1), fav.List()[0].ListingID)

	fav.Close()
	session.set(domain.Identity{})
	assert.Len(t, fav.List(), 1, "a closed set no longer follows the session")
}

func TestResolveFlagsDanglingFavorites(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	ctx := context.Background()
	f.remote.listings["Clothes"] = []domain.Listing{listing(7, "Jacket", 60, "Clothes", "Men", "Black")}
	_, err := f.store.LoadCategory(ctx, "Clothes")
	require.NoError(t, err)

	fav := newTestFavorites(t, f.kv, f.session, f.bus)
	_, err = fav.Toggle(ctx, 7, domain.DisplaySnapshot{Name: "Jacket"})
	require.NoError(t, err)
	_, err = fav.Toggle(ctx, 99, domain.DisplaySnapshot{Name: "Sold lamp"})
	require.NoError(t, err)

	resolved := fav.Resolve(f.store)
	require.Len(t, resolved, 2)
	assert.True(t, resolved[0].Available)
	assert.Equal(t, "Jacket", resolved[0].Listing.Name)
	assert.False(t, resolved[1].Available)
	assert.Equal(t, "Sold lamp", resolved[1].Entry.Name)
}

func TestFavoriteFollowsConfirmedID(t *testing.T) {
	f := newFixture(t, newFakeRemote().gated())
	ctx := context.Background()
	fav := newTestFavorites(t, f.kv, f.session, f.bus)
	fav.Follow(f.store)

	created, err := f.store.CreateListing(ctx, blouseDraft())
	require.NoError(t, err)
	_, err = fav.Toggle(ctx, created.ID, domain.SnapshotOf(created))
	require.NoError(t, err)

	nextCall(t, f.remote.calls).confirm(314)
	f.flush(t)

	assert.False(t, fav.IsFavorited(created.ID))
	assert.True(t, fav.IsFavorited(314))
	require.Len(t, fav.List(), 1)
	assert.Equal(t, "Blouse", fav.List()[0].Name)
}
