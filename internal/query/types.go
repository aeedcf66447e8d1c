package query

import "slices"

// Option is one selected category: Key is the category documentId, Value
// its display title.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) normalize() Range {
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	return r
}

type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
}

// Bounds are the catalog-wide min/max of each range filter. Reset restores
// the ranges to these values; parsing falls back to them.
type Bounds struct {
	Price    Range `json:"price"`
	Discount Range `json:"discount"`
	Rating   Range `json:"rating"`
}

// DefaultBounds apply until the catalog has been measured.
var DefaultBounds = Bounds{
	Price:    Range{Min: 10, Max: 97},
	Discount: Range{Min: 0, Max: 100},
	Rating:   Range{Min: 0, Max: 5},
}

const DefaultPageSize = 10

// Snapshot is a copy of the query state. Nil ranges are "not filtered".
type Snapshot struct {
	Search        string     `json:"search"`
	Categories    []Option   `json:"categories"`
	PriceRange    *Range     `json:"priceRange,omitempty"`
	DiscountRange *Range     `json:"discountRange,omitempty"`
	RatingRange   *Range     `json:"ratingRange,omitempty"`
	InStock       bool       `json:"inStock"`
	Pagination    Pagination `json:"pagination"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Categories = slices.Clone(s.Categories)
	out.PriceRange = cloneRange(s.PriceRange)
	out.DiscountRange = cloneRange(s.DiscountRange)
	out.RatingRange = cloneRange(s.RatingRange)
	return out
}

func (s Snapshot) CategoryKeys() []string {
	keys := make([]string, 0, len(s.Categories))
	for _, c := range s.Categories {
		keys = append(keys, c.Key)
	}
	return keys
}

func cloneRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func rangeEqual(a, b *Range) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Field is a bit set naming what a mutation changed.
type Field uint

const (
	FieldSearch Field = 1 << iota
	FieldCategories
	FieldPriceRange
	FieldDiscountRange
	FieldRatingRange
	FieldInStock
	// FieldPage is a change of the current page requested locally.
	FieldPage
	// FieldPagination is server-reported pagination metadata.
	FieldPagination
)

func (f Field) Has(x Field) bool {
	return f&x != 0
}

func diff(before, after Snapshot) Field {
	var f Field
	if before.Search != after.Search {
		f |= FieldSearch
	}
	if !slices.Equal(before.Categories, after.Categories) {
		f |= FieldCategories
	}
	if !rangeEqual(before.PriceRange, after.PriceRange) {
		f |= FieldPriceRange
	}
	if !rangeEqual(before.DiscountRange, after.DiscountRange) {
		f |= FieldDiscountRange
	}
	if !rangeEqual(before.RatingRange, after.RatingRange) {
		f |= FieldRatingRange
	}
	if before.InStock != after.InStock {
		f |= FieldInStock
	}
	if before.Pagination.Page != after.Pagination.Page {
		f |= FieldPage
	}
	if before.Pagination.PageSize != after.Pagination.PageSize ||
		before.Pagination.PageCount != after.Pagination.PageCount {
		f |= FieldPagination
	}
	return f
}

// Change is delivered to subscribers after every mutation that changed
// something.
type Change struct {
	Fields   Field
	State    Snapshot
	Location string
}
