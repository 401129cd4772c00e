package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/catalog/bus"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const favoritesKey = "favorites"

// ListingLookup finds a live listing by id.
type ListingLookup interface {
	Get(id int64) (domain.Listing, error)
}

// ResolvedFavorite pairs a favorite with its listing. Available is false when the
// listing no longer exists; Entry still carries the display data saved with it.
type ResolvedFavorite struct {
	Entry     domain.FavoriteEntry
	Listing   domain.Listing
	Available bool
}

// Favorites is the set of favorited listings of the signed-in seller, kept in
// insertion order. Every change is written to the key-value store before it is
// visible in memory.
type Favorites struct {
	mu      sync.Mutex
	kv      domain.KVStore
	bus     *bus.Bus
	logger  *logger.Logger
	key     string
	entries []domain.FavoriteEntry

	stopSession func()
}

// NewFavorites loads the favorites of the current identity and follows login and
// logout, switching to the favorites of the new identity.
func NewFavorites(ctx context.Context, kv domain.KVStore, session domain.SessionProvider, b *bus.Bus, log *logger.Logger) (*Favorites, error) {
	if log == nil {
		log = logger.Nop()
	}
	f := &Favorites{kv: kv, bus: b, logger: log}

	key := favoritesKeyFor(session.Current())
	entries, err := f.read(ctx, key)
	if err != nil {
		return nil, err
	}
	f.key = key
	f.entries = entries

	f.stopSession = session.OnChange(func(ident domain.Identity) {
		f.switchTo(context.Background(), favoritesKeyFor(ident))
	})
	return f, nil
}

func favoritesKeyFor(ident domain.Identity) string {
	if !ident.Authenticated || ident.SellerID == "" {
		return favoritesKey
	}
	return favoritesKey + ":" + ident.SellerID
}

func (f *Favorites) read(ctx context.Context, key string) ([]domain.FavoriteEntry, error) {
	data, err := f.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return []domain.FavoriteEntry{}, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Key: key, Err: err}
	}
	var entries []domain.FavoriteEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		f.logger.Warn("Favorites.read: unreadable favorites, starting empty", "key", key, "error", err.Error())
		return []domain.FavoriteEntry{}, nil
	}
	return entries, nil
}

func (f *Favorites) switchTo(ctx context.Context, key string) {
	f.mu.Lock()
	if key == f.key {
		f.mu.Unlock()
		return
	}
	entries, err := f.read(ctx, key)
	if err != nil {
		f.logger.Error("Favorites.switchTo: failed to load favorites", "key", key, "error", err.Error())
		entries = []domain.FavoriteEntry{}
	}
	f.key = key
	f.entries = entries
	f.mu.Unlock()

	f.logger.Info("Favorites.switchTo: identity changed", "key", key, "count", len(entries))
	f.bus.PublishFavoritesChanged()
}

func (f *Favorites) writeLocked(ctx context.Context, entries []domain.FavoriteEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return &domain.PersistenceError{Key: f.key, Err: err}
	}
	if err := f.kv.Set(ctx, f.key, data); err != nil {
		f.logger.Error("Favorites.write: failed to persist favorites", "key", f.key, "error", err.Error())
		return &domain.PersistenceError{Key: f.key, Err: err}
	}
	return nil
}

// Toggle adds the listing if it is not favorited and removes it otherwise. It reports
// whether the listing is favorited afterwards. If the change cannot be persisted the
// set is left as it was and a *domain.PersistenceError is returned.
func (f *Favorites) Toggle(ctx context.Context, listingID int64, snap domain.DisplaySnapshot) (bool, error) {
	f.mu.Lock()
	next := make([]domain.FavoriteEntry, 0, len(f.entries)+1)
	removed := false
	for _, e := range f.entries {
		if e.ListingID == listingID {
			removed = true
			continue
		}
		next = append(next, e)
	}
	if !removed {
		next = append(next, domain.FavoriteEntry{
			ListingID: listingID,
			Name:      snap.Name,
			Price:     snap.Price,
			ImageRef:  snap.ImageRef,
			Category:  snap.Category,
			AddedAt:   time.Now().UTC(),
		})
	}
	if err := f.writeLocked(ctx, next); err != nil {
		f.mu.Unlock()
		return removed, err
	}
	f.entries = next
	f.mu.Unlock()

	f.bus.PublishFavoritesChanged()
	return !removed, nil
}

func (f *Favorites) IsFavorited(listingID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ListingID == listingID {
			return true
		}
	}
	return false
}

// List returns the favorites, oldest first.
func (f *Favorites) List() []domain.FavoriteEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FavoriteEntry{}, f.entries...)
}

// Resolve looks every favorite up in l. Favorites whose listing is gone are returned
// with Available unset instead of being dropped.
func (f *Favorites) Resolve(l ListingLookup) []ResolvedFavorite {
	entries := f.List()
	out := make([]ResolvedFavorite, len(entries))
	for i, e := range entries {
		out[i].Entry = e
		if listing, err := l.Get(e.ListingID); err == nil {
			out[i].Listing = listing
			out[i].Available = true
		}
	}
	return out
}

// Rekey moves a favorite from a provisional id to the confirmed id of the same listing.
func (f *Favorites) Rekey(ctx context.Context, from, to int64) error {
	f.mu.Lock()
	idx := -1
	dup := false
	for i, e := range f.entries {
		switch e.ListingID {
		case from:
			idx = i
		case to:
			dup = true
		}
	}
	if idx < 0 {
		f.mu.Unlock()
		return nil
	}

	next := make([]domain.FavoriteEntry, 0, len(f.entries))
	for i, e := range f.entries {
		if i == idx {
			if dup {
				continue
			}
			e.ListingID = to
		}
		next = append(next, e)
	}
	if err := f.writeLocked(ctx, next); err != nil {
		f.mu.Unlock()
		return err
	}
	f.entries = next
	f.mu.Unlock()

	f.bus.PublishFavoritesChanged()
	return nil
}

// Follow keeps favorites of new listings attached once the store confirms their ids.
func (f *Favorites) Follow(s *Store) {
	s.OnConfirm(func(provisional, confirmed int64) {
		if err := f.Rekey(context.Background(), provisional, confirmed); err != nil {
			f.logger.Error("Favorites.Follow: failed to rekey favorite",
				"provisional_id", provisional, "listing_id", confirmed, "error", err.Error())
		}
	})
}

// Close stops following identity changes.
func (f *Favorites) Close() {
	if f.stopSession != nil {
		f.stopSession()
	}
}
