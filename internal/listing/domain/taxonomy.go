package domain

import "strings"

type category struct {
	name  string
	types []string
}

// taxonomy is ordered; the order is the order categories are offered to users.
var taxonomy = []category{
	{name: "Home Goods", types: []string{"Decor", "Appliances", "Furniture", "Lighting", "Electronics", "Outdoor", "Miscellaneous"}},
	{name: "Clothes", types: []string{"Men", "Women", "Kids", "Accessories", "Footwear"}},
	{name: "Tickets", types: []string{"Concert", "Sport", "Theatre", "Festival", "Other"}},
	{name: "Rental", types: []string{"Apartment", "House", "Room", "Office", "Other"}},
}

var palette = []string{
	"Green", "Brown", "Gray", "Blue", "Red", "Black", "White",
	"Yellow", "Orange", "Purple", "Beige", "Cream", "Multi-Color",
}

// Categories returns the category names in display order.
func Categories() []string {
	names := make([]string, 0, len(taxonomy))
	for _, c := range taxonomy {
		names = append(names, c.name)
	}
	return names
}

// CanonicalCategory resolves name case-insensitively to its taxonomy spelling.
func CanonicalCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range taxonomy {
		if strings.EqualFold(c.name, name) {
			return c.name, true
		}
	}
	return "", false
}

// TypesOf returns a copy of the allowed types of a category.
func TypesOf(categoryName string) ([]string, bool) {
	for _, c := range taxonomy {
		if strings.EqualFold(c.name, strings.TrimSpace(categoryName)) {
			return append([]string(nil), c.types...), true
		}
	}
	return nil, false
}

// Palette returns a copy of the allowed colors.
func Palette() []string {
	return append([]string(nil), palette...)
}

func IsValidType(categoryName, typ string) bool {
	types, ok := TypesOf(categoryName)
	if !ok {
		return false
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

func IsValidColor(color string) bool {
	for _, c := range palette {
		if c == color {
			return true
		}
	}
	return false
}
