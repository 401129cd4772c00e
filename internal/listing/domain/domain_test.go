package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() Listing {
	return Listing{
		SellerID: "seller-1",
		Name:     "Peplum Blouse",
		Price:    decimal.NewFromFloat(24.5),
		Category: "Clothes",
		Type:     "Women",
		Color:    "Blue",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *Listing)
		field   string
		wantErr bool
	}{
		{name: "valid", mutate: func(l *Listing) {}},
		{name: "category is canonicalised", mutate: func(l *Listing) { l.Category = "clothes" }},
		{name: "empty name", mutate: func(l *Listing) { l.Name = "   " }, field: "name", wantErr: true},
		{name: "negative price", mutate: func(l *Listing) { l.Price = decimal.NewFromInt(-1) }, field: "price", wantErr: true},
		{name: "negative orders", mutate: func(l *Listing) { l.OrdersCount = -3 }, field: "orders", wantErr: true},
		{name: "unknown category", mutate: func(l *Listing) { l.Category = "Cars" }, field: "category", wantErr: true},
		{name: "type from another category", mutate: func(l *Listing) { l.Type = "Furniture" }, field: "type", wantErr: true},
		{name: "color outside palette", mutate: func(l *Listing) { l.Color = "Teal" }, field: "color", wantErr: true},
		{name: "zero price is allowed", mutate: func(l *Listing) { l.Price = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validListing()
			tt.mutate(&l)
			err := Validate(&l)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "Clothes", l.Category)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestTaxonomy(t *testing.T) {
	assert.Equal(t, []string{"Home Goods", "Clothes", "Tickets", "Rental"}, Categories())

	types, ok := TypesOf("home goods")
	require.True(t, ok)
	assert.Equal(t, "Decor", types[0])

	types[0] = "Mutated"
	again, _ := TypesOf("Home Goods")
	assert.Equal(t, "Decor", again[0], "TypesOf must return a copy")

	_, ok = TypesOf("Boats")
	assert.False(t, ok)

	assert.True(t, IsValidType("Tickets", "Other"))
	assert.True(t, IsValidType("Rental", "Other"))
	assert.False(t, IsValidType("Clothes", "Other"))
	assert.True(t, IsValidColor("Multi-Color"))
	assert.False(t, IsValidColor("blue"))
}

func TestPatchApply(t *testing.T) {
	l := validListing()
	name := "  Linen Blouse "
	price := decimal.NewFromInt(30)
	patched := Patch{Name: &name, Price: &price}.Apply(l)

	assert.Equal(t, "Linen Blouse", patched.Name)
	assert.True(t, patched.Price.Equal(price))
	assert.Equal(t, "Peplum Blouse", l.Name, "original must not change")
	assert.Equal(t, l.Type, patched.Type)
}

func TestCriteriaWithResetsType(t *testing.T) {
	c := DefaultCriteria("Clothes").WithType("Men").WithColor("Red")
	moved := c.WithCategory("Tickets")

	assert.Equal(t, "Men", c.Type)
	assert.Empty(t, moved.Type)
	assert.Equal(t, "Red", moved.Color)
	assert.False(t, c.Equal(moved))
	assert.True(t, c.Equal(DefaultCriteria("Clothes").WithType("Men").WithColor("Red")))
}

func TestPriceRange(t *testing.T) {
	r := NewPriceRange(decimal.Zero, decimal.NewFromInt(80))
	assert.True(t, r.Contains(decimal.NewFromInt(80)))
	assert.True(t, r.Contains(decimal.Zero))
	assert.False(t, r.Contains(decimal.NewFromInt(85)))
	assert.True(t, AnyPrice.Contains(decimal.NewFromInt(1_000_000)))

	free := NewPriceRange(decimal.Zero, decimal.Zero)
	assert.True(t, free.Contains(decimal.Zero))
	assert.False(t, free.Contains(decimal.NewFromInt(1)))
	assert.False(t, free.Equal(AnyPrice))
	assert.True(t, AnyPrice.Equal(PriceRange{Min: decimal.NewFromInt(5)}))
}
