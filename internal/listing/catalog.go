package listing

import (
	"sort"
	"strings"
)

// Filter keeps listings whose title or description contains search, ignoring case.
// An empty search keeps everything.
func Filter(items []Listing, search string) []Listing {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]Listing, 0, len(items))
	for _, l := range items {
		if needle == "" ||
			strings.Contains(strings.ToLower(l.Title), needle) ||
			strings.Contains(strings.ToLower(l.Description), needle) {
			out = append(out, l)
		}
	}
	return out
}

// Sort orders items in place by key.
func Sort(items []Listing, key SortKey) {
	var less func(a, b Listing) bool
	switch key {
	case SortPriceLow:
		less = func(a, b Listing) bool { return a.Price < b.Price }
	case SortPriceHigh:
		less = func(a, b Listing) bool { return a.Price > b.Price }
	case SortPopular:
		less = func(a, b Listing) bool { return a.ViewsCount > b.ViewsCount }
	default:
		less = func(a, b Listing) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// Apply runs Filter then Sort, the way every catalog page is derived.
func Apply(items []Listing, q CatalogQuery) []Listing {
	out := Filter(items, q.Search)
	Sort(out, q.Sort)
	return out
}
