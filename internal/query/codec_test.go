package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	snap, withPaging := Parse("", DefaultBounds)

	assert.False(t, withPaging)
	assert.Empty(t, snap.Search)
	assert.Nil(t, snap.PriceRange)
	assert.Equal(t, Pagination{Page: 1, PageSize: DefaultPageSize}, snap.Pagination)
}

func TestParse_MalformedNumbersFallBackToBounds(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		price  *Range
		rating *Range
	}{
		{"garbage", "priceRange[min]=abc&priceRange[max]=50&ratingRange[max]=x", &Range{Min: 10, Max: 50}, &Range{Min: 0, Max: 5}},
		{"nan", "priceRange[min]=NaN&priceRange[max]=80", &Range{Min: 10, Max: 80}, nil},
		{"infinity", "priceRange[min]=20&priceRange[max]=Infinity&ratingRange[min]=-Inf", &Range{Min: 20, Max: 97}, &Range{Min: 0, Max: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, _ := Parse(tt.raw, DefaultBounds)

			assert.Equal(t, tt.price, snap.PriceRange)
			assert.Equal(t, tt.rating, snap.RatingRange)
			_, err := json.Marshal(snap)
			assert.NoError(t, err)
		})
	}
}

func TestState_InitNonFiniteRangeStaysEncodable(t *testing.T) {
	loc := &MemoryLocation{}
	s := New("/products", loc)
	s.Init("priceRange[min]=NaN&priceRange[max]=%2BInf")

	assert.Equal(t, Range{Min: 10, Max: 97}, s.PriceRange())
	_, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.NotContains(t, s.Location(), "Inf")
}

func TestParse_CategoriesSkipEmptyKeys(t *testing.T) {
	raw := "categories[0][key]=a&categories[0][value]=Alpha&categories[1][value]=orphan&categories[2][key]=b&categories[2][value]=Beta"
	snap, _ := Parse(raw, DefaultBounds)

	assert.Equal(t, []Option{{Key: "a", Value: "Alpha"}, {Key: "b", Value: "Beta"}}, snap.Categories)
}

func TestEncode_PaginationOnlyWhenSet(t *testing.T) {
	s := Snapshot{Search: "red lamp", Pagination: Pagination{Page: 2, PageSize: 10}}

	assert.Equal(t, "search=red%20lamp", Encode(s, false))
	assert.Equal(t, "search=red%20lamp&pagination[page]=2&pagination[pageSize]=10", Encode(s, true))
}

func TestPageRange(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           []PageItem
	}{
		{"single", 1, 1, []PageItem{{Page: 1}}},
		{"short", 2, 3, []PageItem{{Page: 1}, {Page: 2}, {Page: 3}}},
		{"middle", 5, 10, []PageItem{{Page: 1}, {Gap: true}, {Page: 4}, {Page: 5}, {Page: 6}, {Gap: true}, {Page: 10}}},
		{"start", 1, 10, []PageItem{{Page: 1}, {Page: 2}, {Gap: true}, {Page: 10}}},
		{"end", 10, 10, []PageItem{{Page: 1}, {Gap: true}, {Page: 9}, {Page: 10}}},
		{"unknown", 1, 0, []PageItem{{Page: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageRange(tt.current, tt.total))
		})
	}
}
