package domain

import "strings"

// Validate checks a listing against the field rules and the taxonomy. On success the
// category is rewritten to its canonical spelling.
func Validate(l *Listing) error {
	if strings.TrimSpace(l.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if l.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if l.OrdersCount < 0 {
		return &ValidationError{Field: "orders", Reason: "must not be negative"}
	}
	canonical, ok := CanonicalCategory(l.Category)
	if !ok {
		return &ValidationError{Field: "category", Reason: "is not a known category: " + l.Category}
	}
	l.Category = canonical
	if !IsValidType(canonical, l.Type) {
		return &ValidationError{Field: "type", Reason: "is not allowed for category " + canonical + ": " + l.Type}
	}
	if !IsValidColor(l.Color) {
		return &ValidationError{Field: "color", Reason: "is not in the palette: " + l.Color}
	}
	return nil
}
