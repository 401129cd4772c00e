package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

// listingDocument is how a listing is stored in the listings collection. Prices are
// kept as Decimal128 so range queries stay exact.
type listingDocument struct {
	ID          int64                `bson:"_id"`
	SellerID    string               `bson:"seller_id"`
	Name        string               `bson:"name"`
	Price       primitive.Decimal128 `bson:"price"`
	OrdersCount int                  `bson:"orders"`
	ImageRef    string               `bson:"image,omitempty"`
	Category    string               `bson:"category"`
	Type        string               `bson:"type"`
	Color       string               `bson:"color"`
	Description string               `bson:"description,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type counterDocument struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func toListingDocument(l *domain.Listing) (*listingDocument, error) {
	if l == nil {
		return nil, nil
	}
	price, err := primitive.ParseDecimal128(l.Price.String())
	if err != nil {
		return nil, fmt.Errorf("toListingDocument: invalid price %q for listing %d: %w", l.Price.String(), l.ID, err)
	}
	return &listingDocument{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Name:        l.Name,
		Price:       price,
		OrdersCount: l.OrdersCount,
		ImageRef:    l.ImageRef,
		Category:    l.Category,
		Type:        l.Type,
		Color:       l.Color,
		Description: l.Description,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}, nil
}

func toDomainListing(d *listingDocument) (*domain.Listing, error) {
	if d == nil {
		return nil, nil
	}
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("toDomainListing: stored price of listing %d is not a number: %w", d.ID, err)
	}
	return &domain.Listing{
		ID:          d.ID,
		SellerID:    d.SellerID,
		Name:        d.Name,
		Price:       price,
		OrdersCount: d.OrdersCount,
		ImageRef:    d.ImageRef,
		Category:    d.Category,
		Type:        d.Type,
		Color:       d.Color,
		Description: d.Description,
		Sync:        domain.SyncConfirmed,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func toDomainListings(docs []*listingDocument) ([]*domain.Listing, error) {
	out := make([]*domain.Listing, 0, len(docs))
	for _, doc := range docs {
		l, err := toDomainListing(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
