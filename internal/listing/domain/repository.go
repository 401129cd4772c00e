package domain

import "context"

// ListingRepository is the server-side store of confirmed listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	Update(ctx context.Context, listing *Listing) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Listing, error)
	FindByQuery(ctx context.Context, query ListQuery) ([]*Listing, error)
}

// ListingCache caches category queries on the server.
type ListingCache interface {
	GetQuery(ctx context.Context, query ListQuery) ([]*Listing, error)
	SetQuery(ctx context.Context, query ListQuery, listings []*Listing) error
	InvalidateCategory(ctx context.Context, category string) error
}

// SellerDirectory resolves contact details of sellers.
type SellerDirectory interface {
	GetEmailByID(ctx context.Context, sellerID string) (string, error)
}

// EventPublisher announces confirmed catalog changes to other processes.
type EventPublisher interface {
	PublishListingCreated(ctx context.Context, listing *Listing) error
	PublishListingUpdated(ctx context.Context, listing *Listing) error
	PublishListingDeleted(ctx context.Context, id int64, category string) error
}

// MediaStorage stores an uploaded image and returns its stable URL.
type MediaStorage interface {
	Upload(ctx context.Context, fileName string, data []byte) (string, error)
}

// RemoteCatalog is the catalog service as seen from the engine.
type RemoteCatalog interface {
	List(ctx context.Context, query ListQuery) ([]Listing, error)
	Create(ctx context.Context, listing Listing) (Listing, error)
	Update(ctx context.Context, listing Listing) (Listing, error)
	Delete(ctx context.Context, id int64) error
}

// KVStore is a durable key-value store. Get returns ErrKeyNotFound for missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionProvider supplies the signed-in identity. OnChange fires on login and logout
// and returns a function that stops the notifications.
type SessionProvider interface {
	Current() Identity
	OnChange(fn func(Identity)) (cancel func())
}
