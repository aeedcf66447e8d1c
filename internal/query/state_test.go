package query

import (
	"net/url"
	"sync"
	"testing"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) add(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func newState(t *testing.T) (*State, *MemoryLocation, *recorder) {
	t.Helper()
	loc := &MemoryLocation{}
	s := New("/products", loc)
	rec := &recorder{}
	t.Cleanup(s.Subscribe(rec.add))
	return s, loc, rec
}

func TestState_URLRoundTrip(t *testing.T) {
	s, loc, _ := newState(t)

	s.SetSearch("lamp")
	s.SetCategories([]Option{{Key: "c1", Value: "Furniture"}, {Key: "c2", Value: "Home & Light"}})
	s.SetPriceRange(20, 80)
	s.SetPage(3)

	u, err := url.Parse(loc.URL())
	require.NoError(t, err)
	assert.Equal(t, "/products", u.Path)

	got, withPaging := Parse(u.RawQuery, DefaultBounds)
	assert.True(t, withPaging)
	assert.Equal(t, s.Snapshot().Search, got.Search)
	assert.Equal(t, s.Snapshot().Categories, got.Categories)
	assert.Equal(t, s.Snapshot().PriceRange, got.PriceRange)
	assert.Equal(t, 3, got.Pagination.Page)
	assert.Nil(t, got.DiscountRange)
	assert.Nil(t, got.RatingRange)
	assert.False(t, got.InStock)
}

func TestState_SettersResetPage(t *testing.T) {
	tests := []struct {
		name string
		set  func(s *State)
	}{
		{"search", func(s *State) { s.SetSearch("chair") }},
		{"categories", func(s *State) { s.SetCategories([]Option{{Key: "c9", Value: "Toys"}}) }},
		{"price", func(s *State) { s.SetPriceRange(15, 50) }},
		{"discount", func(s *State) { s.SetDiscountRange(5, 40) }},
		{"rating", func(s *State) { s.SetRatingRange(3, 5) }},
		{"in stock", func(s *State) { s.SetInStock(true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _, _ := newState(t)
			s.SetPage(4)
			require.Equal(t, 4, s.Pagination().Page)

			tt.set(s)
			assert.Equal(t, 1, s.Pagination().Page)
		})
	}
}

func TestState_CategoryChangeIsOneNotification(t *testing.T) {
	s, _, rec := newState(t)
	s.SetPage(3)
	s.SetCategories([]Option{{Key: "c1", Value: "Furniture"}})

	changes := rec.all()
	require.Len(t, changes, 2)
	last := changes[1]
	assert.True(t, last.Fields.Has(FieldCategories))
	assert.True(t, last.Fields.Has(FieldPage))
	assert.Equal(t, 1, last.State.Pagination.Page)
}

func TestState_SetPageClamps(t *testing.T) {
	s, _, _ := newState(t)
	s.SetPagination(&models.Pagination{Page: 1, PageSize: 10, PageCount: 5})

	s.SetPage(9)
	assert.Equal(t, 5, s.Pagination().Page)

	s.SetPage(-2)
	assert.Equal(t, 1, s.Pagination().Page)
}

func TestState_SetPaginationIsNotAPageChange(t *testing.T) {
	s, _, rec := newState(t)
	s.SetPagination(&models.Pagination{Page: 2, PageSize: 10, PageCount: 7})

	changes := rec.all()
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Fields.Has(FieldPage))
	assert.True(t, changes[0].Fields.Has(FieldPagination))
	assert.Equal(t, 7, s.Pagination().PageCount)
}

func TestState_ResetUsesMeasuredBounds(t *testing.T) {
	s, _, _ := newState(t)
	measured := Bounds{
		Price:    Range{Min: 3, Max: 250},
		Discount: Range{Min: 0, Max: 60},
		Rating:   Range{Min: 1, Max: 5},
	}
	s.SetGlobalBounds(measured)
	s.SetSearch("x")
	s.SetPriceRange(40, 60)
	s.SetInStock(true)
	s.SetPage(2)

	s.Reset()

	snap := s.Snapshot()
	assert.Empty(t, snap.Search)
	assert.Empty(t, snap.Categories)
	assert.False(t, snap.InStock)
	assert.Equal(t, 1, snap.Pagination.Page)
	assert.Equal(t, measured.Price, s.PriceRange())
	assert.Equal(t, measured.Discount, s.DiscountRange())
	assert.Equal(t, measured.Rating, s.RatingRange())
}

func TestState_ClearDropsEverything(t *testing.T) {
	s, loc, _ := newState(t)
	s.SetSearch("lamp")
	s.SetPriceRange(20, 80)

	s.Clear()

	assert.Equal(t, "/products", loc.URL())
	assert.Nil(t, s.Snapshot().PriceRange)
	assert.Equal(t, DefaultBounds.Price, s.PriceRange())
}

func TestState_NoopMutationDoesNotNotify(t *testing.T) {
	s, loc, rec := newState(t)
	s.SetSearch("")

	assert.Empty(t, rec.all())
	assert.Equal(t, 1, loc.Replacements())
}

func TestState_SwappedRangeIsNormalized(t *testing.T) {
	s, _, _ := newState(t)
	s.SetRatingRange(5, 2)
	assert.Equal(t, Range{Min: 2, Max: 5}, s.RatingRange())
}

func TestState_InitDoesNotNotify(t *testing.T) {
	s, loc, rec := newState(t)
	s.Init("search=lamp&pagination[page]=2&pagination[pageSize]=10")

	assert.Empty(t, rec.all())
	assert.Zero(t, loc.Replacements())
	assert.Equal(t, "lamp", s.Search())
	assert.Equal(t, 2, s.Pagination().Page)
}

func TestState_Unsubscribe(t *testing.T) {
	s := New("/products", nil)
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.add)
	s.SetSearch("a")
	unsubscribe()
	s.SetSearch("b")

	assert.Len(t, rec.all(), 1)
}
