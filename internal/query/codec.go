package query

import (
	"math"
	"strconv"

	"github.com/Skotchmaster/storefront/internal/qs"
)

// Parse reads a URL query string. Missing keys take their defaults and
// malformed numbers fall back to the matching bound in b.
func Parse(raw string, b Bounds) (Snapshot, bool) {
	n := qs.Parse(raw)

	snap := Snapshot{
		Pagination: Pagination{Page: 1, PageSize: DefaultPageSize},
	}

	if v, ok := n.Lookup("search"); ok {
		snap.Search = v
	}

	for _, c := range n.Get("categories").Indexed() {
		key, ok := c.Lookup("key")
		if !ok || key == "" {
			continue
		}
		value, _ := c.Lookup("value")
		snap.Categories = append(snap.Categories, Option{Key: key, Value: value})
	}

	snap.PriceRange = parseRange(n.Get("priceRange"), b.Price)
	snap.DiscountRange = parseRange(n.Get("discountRange"), b.Discount)
	snap.RatingRange = parseRange(n.Get("ratingRange"), b.Rating)

	if v, ok := n.Lookup("inStock"); ok {
		snap.InStock, _ = strconv.ParseBool(v)
	}

	pg := n.Get("pagination")
	hasPagination := pg != nil && len(pg.Keys()) > 0
	if hasPagination {
		if v := atoiDefault(pg, "page", 1); v >= 1 {
			snap.Pagination.Page = v
		}
		if v := atoiDefault(pg, "pageSize", DefaultPageSize); v >= 1 {
			snap.Pagination.PageSize = v
		}
		if v := atoiDefault(pg, "pageCount", 0); v >= 0 {
			snap.Pagination.PageCount = v
		}
	}
	return snap, hasPagination
}

func parseRange(n *qs.Node, def Range) *Range {
	if n == nil {
		return nil
	}
	r := Range{
		Min: floatDefault(n, "min", def.Min),
		Max: floatDefault(n, "max", def.Max),
	}.normalize()
	return &r
}

func floatDefault(n *qs.Node, key string, def float64) float64 {
	v, ok := n.Lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func atoiDefault(n *qs.Node, key string, def int) int {
	v, ok := n.Lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Encode writes s in the bracket wire format. Pagination is written only
// when withPagination is set, so a reset listing gets a clean URL.
func Encode(s Snapshot, withPagination bool) string {
	var b qs.Builder
	if s.Search != "" {
		b.Add(s.Search, "search")
	}
	for i, c := range s.Categories {
		idx := strconv.Itoa(i)
		b.Add(c.Key, "categories", idx, "key")
		b.Add(c.Value, "categories", idx, "value")
	}
	addRange(&b, "priceRange", s.PriceRange)
	addRange(&b, "discountRange", s.DiscountRange)
	addRange(&b, "ratingRange", s.RatingRange)
	if s.InStock {
		b.Add("true", "inStock")
	}
	if withPagination {
		b.AddInt(s.Pagination.Page, "pagination", "page")
		b.AddInt(s.Pagination.PageSize, "pagination", "pageSize")
	}
	return b.Encode()
}

func addRange(b *qs.Builder, name string, r *Range) {
	if r == nil {
		return
	}
	b.AddFloat(r.Min, name, "min")
	b.AddFloat(r.Max, name, "max")
}
