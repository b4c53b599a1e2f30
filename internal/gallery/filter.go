package gallery

import "strings"

// FilterItems keeps the items whose title contains query, ignoring case and
// surrounding whitespace. An empty query returns items unchanged.
func FilterItems(items []Item, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, it)
		}
	}
	return out
}
