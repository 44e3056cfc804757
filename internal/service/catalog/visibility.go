package catalog

import "github.com/Additional-Code/pincer/internal/entity"

// Audience describes who is looking at a listing.
type Audience struct {
	LoggedIn bool
	// AllItems marks the mixed listing of every circle, which only shows
	// items flagged for it.
	AllItems bool
}

// VisibleTo keeps the items the audience may see, preserving order.
func VisibleTo(items []entity.Item, a Audience) []entity.Item {
	visible := make([]entity.Item, 0, len(items))
	for _, item := range items {
		if !item.Visible {
			continue
		}
		if a.AllItems && !item.VisibleInAll {
			continue
		}
		if !a.LoggedIn && !item.VisibleWithoutLogin {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// Page returns the page-th slice of size items, or an empty slice past the
// end.
func Page(items []entity.Item, page, size int) []entity.Item {
	if page < 0 || size <= 0 || page > len(items)/size {
		return []entity.Item{}
	}
	start := page * size
	if start >= len(items) {
		return []entity.Item{}
	}
	return items[start:min(start+size, len(items))]
}
