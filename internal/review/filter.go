// Package review holds the pure search and selection logic behind the verifier queue.
package review

import "strings"

// FilterAll disables the region or status criterion.
const FilterAll = "all"

// Listing is anything the verifier queue can filter.
type Listing interface {
	ListingID() string
	ListingName() string
	ListingRegion() string
	ListingStatus() string
}

// Query is the verifier's current search input.
type Query struct {
	Text   string `form:"q" json:"q"`
	Region string `form:"region" json:"region"`
	Status string `form:"status" json:"status"`
}

// Matches reports whether item satisfies q: text against identifier or name (case-insensitive
// substring), region and status either "all"/empty or equal.
func (q Query) Matches(item Listing) bool {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text != "" &&
		!strings.Contains(strings.ToLower(item.ListingID()), text) &&
		!strings.Contains(strings.ToLower(item.ListingName()), text) {
		return false
	}
	if !matchesOption(q.Region, item.ListingRegion()) {
		return false
	}
	return matchesOption(q.Status, item.ListingStatus())
}

func matchesOption(want, got string) bool {
	want = strings.TrimSpace(want)
	if want == "" || strings.EqualFold(want, FilterAll) {
		return true
	}
	return strings.EqualFold(want, got)
}

// Filter keeps the items matching q in their original order.
func Filter[T Listing](items []T, q Query) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if q.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

// Page slices items for 1-based page numbers.
func Page[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
