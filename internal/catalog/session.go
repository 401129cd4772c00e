package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/filter"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

// View is what a browse screen renders: the current criteria and one page of matches.
type View struct {
	Criteria domain.Criteria
	filter.Result
	Stale bool
}

// BrowseSession is the state of one browse screen. It re-derives its page whenever
// the store reports a change to the category it shows.
type BrowseSession struct {
	mu       sync.Mutex
	store    *Store
	criteria domain.Criteria
	page     int
	view     View
	onChange func(View)

	catalogSub   *bus.Subscription
	favoritesSub *bus.Subscription
}

// NewBrowseSession opens a session on category with the default criteria. onChange,
// if set, receives every re-derived view.
func NewBrowseSession(store *Store, b *bus.Bus, category string, onChange func(View)) *BrowseSession {
	bs := &BrowseSession{
		store:    store,
		criteria: domain.DefaultCriteria(category),
		page:     1,
		onChange: onChange,
	}
	bs.view = bs.derive()

	bs.catalogSub = b.Subscribe(bus.TopicCatalogChanged, func(ev bus.Event) {
		if !bs.shows(ev.Category) {
			return
		}
		bs.refresh()
	})
	bs.favoritesSub = b.Subscribe(bus.TopicFavoritesChanged, func(bus.Event) {
		if bs.onChange != nil {
			bs.onChange(bs.View())
		}
	})
	return bs
}

func (bs *BrowseSession) shows(category string) bool {
	bs.mu.Lock()
	current := bs.criteria.Category
	bs.mu.Unlock()
	if category == "" || current == "" ||
		strings.EqualFold(category, domain.AllCategories) || strings.EqualFold(current, domain.AllCategories) {
		return true
	}
	return strings.EqualFold(category, current)
}

// Load fetches the session's category. The returned view is usable even when err is
// a fetch error.
func (bs *BrowseSession) Load(ctx context.Context) (View, error) {
	bs.mu.Lock()
	category := bs.criteria.Category
	bs.mu.Unlock()

	if _, err := bs.store.LoadCategory(ctx, category); err != nil {
		// a failed load publishes nothing, so the stale view is derived here
		return bs.refresh(), err
	}
	// a successful load published catalog.changed and the subscription re-derived the view
	return bs.View(), nil
}

func (bs *BrowseSession) derive() View {
	listings := bs.store.Snapshot(bs.criteria.Category)
	return View{
		Criteria: bs.criteria,
		Result:   filter.Apply(listings, bs.criteria, bs.page),
		Stale:    bs.store.IsStale(bs.criteria.Category),
	}
}

func (bs *BrowseSession) refresh() View {
	bs.mu.Lock()
	bs.view = bs.derive()
	v := bs.view
	bs.mu.Unlock()

	if bs.onChange != nil {
		bs.onChange(v)
	}
	return v
}

func (bs *BrowseSession) View() View {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.view
}

// SetCriteria replaces the criteria. Any change sends the session back to page 1.
func (bs *BrowseSession) SetCriteria(c domain.Criteria) View {
	bs.mu.Lock()
	if !c.Equal(bs.criteria) {
		bs.criteria = c
		bs.page = 1
	}
	bs.mu.Unlock()
	return bs.refresh()
}

func (bs *BrowseSession) Criteria() domain.Criteria {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.criteria
}

// SetCategory switches category, clears the type filter and loads the new category.
func (bs *BrowseSession) SetCategory(ctx context.Context, category string) (View, error) {
	bs.SetCriteria(bs.Criteria().WithCategory(category))
	return bs.Load(ctx)
}

func (bs *BrowseSession) SetColor(color string) View {
	return bs.SetCriteria(bs.Criteria().WithColor(color))
}

func (bs *BrowseSession) SetType(typ string) View {
	return bs.SetCriteria(bs.Criteria().WithType(typ))
}

func (bs *BrowseSession) SetPrice(min, max decimal.Decimal) View {
	return bs.SetCriteria(bs.Criteria().WithPrice(min, max))
}

// SetPage moves to page p. Pages below 1 are treated as 1.
func (bs *BrowseSession) SetPage(p int) View {
	if p < 1 {
		p = 1
	}
	bs.mu.Lock()
	bs.page = p
	bs.mu.Unlock()
	return bs.refresh()
}

func (bs *BrowseSession) NextPage() View {
	bs.mu.Lock()
	p := bs.page
	last := bs.view.TotalPages
	bs.mu.Unlock()
	if p >= last {
		return bs.View()
	}
	return bs.SetPage(p + 1)
}

func (bs *BrowseSession) PrevPage() View {
	bs.mu.Lock()
	p := bs.page
	bs.mu.Unlock()
	return bs.SetPage(p - 1)
}

// Close stops the session from receiving change notifications. Mutations it started
// keep running in the store.
func (bs *BrowseSession) Close() {
	bs.catalogSub.Unsubscribe()
	bs.favoritesSub.Unsubscribe()
}
