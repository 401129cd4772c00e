package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/filter"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

func seedClothes(f *fixture, n int) {
	colors := []string{"Red", "Blue", "Black"}
	rows := make([]domain.Listing, n)
	for i := range rows {
		rows[i] = listing(int64(i+1), fmt.Sprintf("Shirt %d", i+1), int64(10+i), "Clothes", "Men", colors[i%len(colors)])
	}
	f.remote.listings["Clothes"] = rows
}

func TestSessionPagesThroughCategory(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	seedClothes(f, 21)
	bs := NewBrowseSession(f.store, f.bus, "Clothes", nil)
	defer bs.Close()

	v, err := bs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v.Page)
	assert.Len(t, v.Visible, 9)
	assert.Equal(t, 3, v.TotalPages)
	assert.Equal(t, 21, v.TotalCount)

	v = bs.SetPage(3)
	assert.Len(t, v.Visible, 3)
	first, last := v.Range()
	assert.Equal(t, 19, first)
	assert.Equal(t, 21, last)

	v = bs.NextPage()
	assert.Equal(t, 3, v.Page, "no page past the last")
	v = bs.PrevPage()
	assert.Equal(t, 2, v.Page)
}

func TestChangingCriteriaResetsPage(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	seedClothes(f, 21)
	bs := NewBrowseSession(f.store, f.bus, "Clothes", nil)
	defer bs.Close()
	_, err := bs.Load(context.Background())
	require.NoError(t, err)

	steps := []struct {
		name   string
		change func() View
	}{
		{"color", func() View { return bs.SetColor("Red") }},
		{"type", func() View { return bs.SetType("Men") }},
		{"price", func() View { return bs.SetPrice(decimal.Zero, decimal.NewFromInt(25)) }},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			bs.SetPage(2)
			v := step.change()
			assert.Equal(t, 1, v.Page)

			direct := filter.Apply(f.store.Snapshot("Clothes"), bs.Criteria(), 1)
			assert.Equal(t, direct, v.Result)
		})
	}

	bs.SetPage(2)
	v := bs.SetCriteria(bs.Criteria())
	assert.Equal(t, 2, v.Page, "unchanged criteria keep the page")
}

func TestPriceScenario(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	f.remote.listings["Clothes"] = []domain.Listing{
		listing(1, "Top", 75, "Clothes", "Women", "Red"),
		listing(2, "Skirt", 85, "Clothes", "Women", "Red"),
	}
	bs := NewBrowseSession(f.store, f.bus, "Clothes", nil)
	defer bs.Close()
	_, err := bs.Load(context.Background())
	require.NoError(t, err)

	v := bs.SetPrice(decimal.Zero, decimal.NewFromInt(80))
	require.Len(t, v.Visible, 1)
	assert.Equal(t, "Top", v.Visible[0].Name)
	assert.Equal(t, 1, v.TotalCount)
}

func TestSessionsRederiveOnCatalogChange(t *testing.T) {
	f := newFixture(t, newFakeRemote().gated())
	ctx := context.Background()

	var mu sync.Mutex
	var clothesViews, rentalViews []View
	clothes := NewBrowseSession(f.store, f.bus, "Clothes", func(v View) {
		mu.Lock()
		clothesViews = append(clothesViews, v)
		mu.Unlock()
	})
	defer clothes.Close()
	rental := NewBrowseSession(f.store, f.bus, "Rental", func(v View) {
		mu.Lock()
		rentalViews = append(rentalViews, v)
		mu.Unlock()
	})
	defer rental.Close()

	created, err := f.store.CreateListing(ctx, blouseDraft())
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, clothesViews, 1)
	require.Len(t, clothesViews[0].Visible, 1)
	assert.Equal(t, created.ID, clothesViews[0].Visible[0].ID)
	assert.True(t, clothesViews[0].Visible[0].IsCustom)
	assert.Empty(t, rentalViews, "other categories are not re-derived")
	mu.Unlock()

	clothes.Close()
	nextCall(t, f.remote.calls).confirm(77)
	f.flush(t)

	mu.Lock()
	assert.Len(t, clothesViews, 1, "a closed session receives nothing")
	mu.Unlock()

	got, err := f.store.Get(77)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncConfirmed, got.Sync, "the store still applies the confirmation")
}

func TestSessionReportsStaleData(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	seedClothes(f, 4)
	bs := NewBrowseSession(f.store, f.bus, "Clothes", nil)
	defer bs.Close()

	_, err := bs.Load(context.Background())
	require.NoError(t, err)

	f.remote.setListErr(fmt.Errorf("offline"))
	v, err := bs.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.True(t, v.Stale)
	assert.Len(t, v.Visible, 4)
}

func TestSetCategoryClearsTypeAndLoads(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	seedClothes(f, 2)
	f.remote.listings["Rental"] = []domain.Listing{listing(50, "Room", 200, "Rental", "Room", "White")}
	bs := NewBrowseSession(f.store, f.bus, "Clothes", nil)
	defer bs.Close()

	bs.SetType("Men")
	v, err := bs.SetCategory(context.Background(), "Rental")
	require.NoError(t, err)
	assert.Equal(t, "", v.Criteria.Type)
	require.Len(t, v.Visible, 1)
	assert.Equal(t, "Room", v.Visible[0].Name)
}

func TestLoadNotifiesOnce(t *testing.T) {
	f := newFixture(t, newFakeRemote())
	seedClothes(f, 4)

	var mu sync.Mutex
	calls := 0
	bs := NewBrowseSession(f.store, f.bus, "Clothes", func(View) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	defer bs.Close()

	v, err := bs.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, v.Visible, 4)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	f.remote.setListErr(fmt.Errorf("offline"))
	v, err = bs.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.True(t, v.Stale)
	mu.Lock()
	assert.Equal(t, 2, calls, "a failed load still delivers the stale view once")
	mu.Unlock()
}
