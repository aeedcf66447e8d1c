package query

// PageItem is one entry of the pager: a page number, or a gap.
type PageItem struct {
	Page int  `json:"page,omitempty"`
	Gap  bool `json:"gap,omitempty"`
}

const pagerNeighbours = 1

// PageRange lists the pages to show around current: always the first and
// the last page, the direct neighbours of current, and a gap wherever
// pages are skipped.
func PageRange(current, total int) []PageItem {
	if total < 1 {
		return []PageItem{{Page: 1}}
	}
	left := max(2, current-pagerNeighbours)
	right := min(total-1, current+pagerNeighbours)

	items := []PageItem{{Page: 1}}
	if left > 2 {
		items = append(items, PageItem{Gap: true})
	}
	for i := left; i <= right; i++ {
		items = append(items, PageItem{Page: i})
	}
	if right < total-1 {
		items = append(items, PageItem{Gap: true})
	}
	if total > 1 {
		items = append(items, PageItem{Page: total})
	}
	return items
}
