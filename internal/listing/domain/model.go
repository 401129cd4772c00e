package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SyncState tracks how far a listing is from the remote catalog.
type SyncState string

const (
	SyncConfirmed SyncState = "confirmed"
	SyncPending   SyncState = "pending"
	SyncFailed    SyncState = "failed"
)

type Listing struct {
	ID          int64           `json:"id"`
	SellerID    string          `json:"seller_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	OrdersCount int             `json:"orders"`
	ImageRef    string          `json:"image,omitempty"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Color       string          `json:"color"`
	Description string          `json:"description,omitempty"`
	IsCustom    bool            `json:"is_custom,omitempty"`
	Sync        SyncState       `json:"sync,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// IsProvisional reports whether id was assigned locally and not yet confirmed by the server.
func IsProvisional(id int64) bool {
	return id < 0
}

// Draft is the user input for a new listing. SellerID is filled from the session.
type Draft struct {
	Name        string
	Price       decimal.Decimal
	OrdersCount int
	ImageRef    string
	Category    string
	Type        string
	Color       string
	Description string
}

// Listing builds an unsaved listing from the draft.
func (d Draft) Listing(sellerID string) Listing {
	return Listing{
		SellerID:    sellerID,
		Name:        strings.TrimSpace(d.Name),
		Price:       d.Price,
		OrdersCount: d.OrdersCount,
		ImageRef:    d.ImageRef,
		Category:    d.Category,
		Type:        d.Type,
		Color:       d.Color,
		Description: d.Description,
	}
}

// Patch carries the fields of an edit. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Price       *decimal.Decimal
	OrdersCount *int
	ImageRef    *string
	Category    *string
	Type        *string
	Color       *string
	Description *string
}

// Apply returns a copy of l with the patch applied.
func (p Patch) Apply(l Listing) Listing {
	if p.Name != nil {
		l.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.OrdersCount != nil {
		l.OrdersCount = *p.OrdersCount
	}
	if p.ImageRef != nil {
		l.ImageRef = *p.ImageRef
	}
	if p.Category != nil {
		l.Category = *p.Category
	}
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Color != nil {
		l.Color = *p.Color
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	return l
}

// FavoriteEntry is a favorited listing with enough display data to render it
// without the listing itself.
type FavoriteEntry struct {
	ListingID int64           `json:"listing_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageRef  string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

// DisplaySnapshot is the display data captured when a listing is favorited.
type DisplaySnapshot struct {
	Name     string
	Price    decimal.Decimal
	ImageRef string
	Category string
}

// SnapshotOf captures the display data of a listing.
func SnapshotOf(l Listing) DisplaySnapshot {
	return DisplaySnapshot{Name: l.Name, Price: l.Price, ImageRef: l.ImageRef, Category: l.Category}
}

// PriceRange is an inclusive price interval. The zero value is AnyPrice, which has no
// bounds; build bounded ranges with NewPriceRange. A bounded [0,0] keeps free items only.
type PriceRange struct {
	Min     decimal.Decimal
	Max     decimal.Decimal
	Bounded bool
}

// AnyPrice disables the price predicate.
var AnyPrice = PriceRange{}

func NewPriceRange(min, max decimal.Decimal) PriceRange {
	return PriceRange{Min: min, Max: max, Bounded: true}
}

func (r PriceRange) Contains(p decimal.Decimal) bool {
	if !r.Bounded {
		return true
	}
	return p.GreaterThanOrEqual(r.Min) && p.LessThanOrEqual(r.Max)
}

func (r PriceRange) Equal(o PriceRange) bool {
	if r.Bounded != o.Bounded {
		return false
	}
	return !r.Bounded || (r.Min.Equal(o.Min) && r.Max.Equal(o.Max))
}

// DefaultPriceRange is the slider range of the browse screens.
var DefaultPriceRange = NewPriceRange(decimal.Zero, decimal.NewFromInt(300))

// AllCategories disables the category predicate.
const AllCategories = "All"

// Criteria is an immutable set of filters. Use the With* methods to derive a new value.
type Criteria struct {
	Category string
	Color    string
	Type     string
	Price    PriceRange
}

func DefaultCriteria(category string) Criteria {
	return Criteria{Category: category, Price: DefaultPriceRange}
}

func (c Criteria) WithCategory(category string) Criteria {
	c.Category = category
	c.Type = ""
	return c
}

func (c Criteria) WithColor(color string) Criteria {
	c.Color = color
	return c
}

func (c Criteria) WithType(typ string) Criteria {
	c.Type = typ
	return c
}

func (c Criteria) WithPrice(min, max decimal.Decimal) Criteria {
	c.Price = NewPriceRange(min, max)
	return c
}

// Equal compares criteria by value; prices compare numerically.
func (c Criteria) Equal(o Criteria) bool {
	return c.Category == o.Category &&
		c.Color == o.Color &&
		c.Type == o.Type &&
		c.Price.Equal(o.Price)
}

// Identity is what the session provider knows about the current user.
type Identity struct {
	SellerID      string
	Email         string
	Authenticated bool
}

// ListQuery selects listings on the remote catalog.
type ListQuery struct {
	Category string
	SellerID string
}
