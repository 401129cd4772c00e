package mongodb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

func TestListingDocumentKeepsExactPrice(t *testing.T) {
	in := &domain.Listing{
		ID:        12,
		SellerID:  "seller-1",
		Name:      "Desk lamp",
		Price:     decimal.RequireFromString("19.99"),
		Category:  "Home Goods",
		Type:      "Lighting",
		Color:     "White",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	doc, err := toListingDocument(in)
	require.NoError(t, err)
	assert.Equal(t, "19.99", doc.Price.String())

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded listingDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	out, err := toDomainListing(&decoded)
	require.NoError(t, err)
	assert.True(t, in.Price.Equal(out.Price))
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, domain.SyncConfirmed, out.Sync)
}

func TestQueryFilter(t *testing.T) {
	tests := []struct {
		name  string
		query domain.ListQuery
		want  bson.M
	}{
		{"everything", domain.ListQuery{}, bson.M{}},
		{"all category", domain.ListQuery{Category: "All"}, bson.M{}},
		{"canonical category", domain.ListQuery{Category: "home goods"}, bson.M{"category": "Home Goods"}},
		{"seller", domain.ListQuery{SellerID: "s1"}, bson.M{"seller_id": "s1"}},
		{"both", domain.ListQuery{Category: "Rental", SellerID: "s1"}, bson.M{"category": "Rental", "seller_id": "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryFilter(tt.query))
		})
	}
}
