// Package filter narrows a listing set by criteria and cuts it into pages.
package filter

import (
	"strings"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

// ItemsPerPage is the fixed page size of the browse screens.
const ItemsPerPage = 9

// Result is one page of a filtered listing set.
type Result struct {
	Visible    []domain.Listing
	Page       int
	TotalPages int
	TotalCount int
}

// Matches reports whether a listing satisfies every non-empty predicate of c.
func Matches(l domain.Listing, c domain.Criteria) bool {
	// cheapest predicates first
	if c.Color != "" && l.Color != c.Color {
		return false
	}
	if c.Type != "" && l.Type != c.Type {
		return false
	}
	if !c.Price.Contains(l.Price) {
		return false
	}
	if c.Category != "" && c.Category != domain.AllCategories &&
		!strings.EqualFold(l.Category, c.Category) {
		return false
	}
	return true
}

// Apply filters listings by c and returns the requested page. Input order is kept.
// A page below 1 is treated as 1; a page past the end yields no visible listings.
// TotalPages is zero when nothing matches.
func Apply(listings []domain.Listing, c domain.Criteria, page int) Result {
	filtered := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if Matches(l, c) {
			filtered = append(filtered, l)
		}
	}

	if page < 1 {
		page = 1
	}
	res := Result{
		Page:       page,
		TotalCount: len(filtered),
		TotalPages: TotalPages(len(filtered)),
	}

	start := (page - 1) * ItemsPerPage
	if start >= len(filtered) {
		res.Visible = []domain.Listing{}
		return res
	}
	end := start + ItemsPerPage
	if end > len(filtered) {
		end = len(filtered)
	}
	res.Visible = filtered[start:end:end]
	return res
}

func TotalPages(count int) int {
	return (count + ItemsPerPage - 1) / ItemsPerPage
}

// Range returns the 1-based positions of the first and last visible listing,
// e.g. "Showing 10 - 18 out of 21". Both are zero for an empty page.
func (r Result) Range() (first, last int) {
	if len(r.Visible) == 0 {
		return 0, 0
	}
	first = (r.Page-1)*ItemsPerPage + 1
	return first, first + len(r.Visible) - 1
}
