package query

import (
	"sync"

	"github.com/Skotchmaster/storefront/internal/models"
)

// Location receives the serialized state after every mutation. Replace
// must overwrite the current entry rather than add a history entry.
type Location interface {
	Replace(url string)
}

// MemoryLocation keeps the latest URL of a session.
type MemoryLocation struct {
	mu       sync.Mutex
	url      string
	replaced int
}

func (l *MemoryLocation) Replace(url string) {
	l.mu.Lock()
	l.url = url
	l.replaced++
	l.mu.Unlock()
}

func (l *MemoryLocation) URL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

func (l *MemoryLocation) Replacements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaced
}

// State is the single owner of the listing filters and pagination. All
// mutation goes through its setters; readers get copies.
type State struct {
	mu         sync.Mutex
	path       string
	loc        Location
	snap       Snapshot
	withPaging bool
	bounds     Bounds
	subs       map[int]func(Change)
	nextSub    int
}

func New(path string, loc Location) *State {
	if path == "" {
		path = "/"
	}
	if loc == nil {
		loc = &MemoryLocation{}
	}
	return &State{
		path:   path,
		loc:    loc,
		snap:   Snapshot{Pagination: Pagination{Page: 1, PageSize: DefaultPageSize}},
		bounds: DefaultBounds,
		subs:   map[int]func(Change){},
	}
}

// Subscribe registers fn for every effective change. The returned func
// removes the registration.
func (s *State) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Init loads the state from a URL query string. It neither rewrites the
// location nor notifies subscribers: the caller is the one loading the page.
func (s *State) Init(rawQuery string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, withPaging := Parse(rawQuery, s.bounds)
	s.snap = snap
	s.withPaging = withPaging
}

// mutate applies fn, rewrites the location and notifies subscribers with
// the fields that changed. report may rename the computed fields.
func (s *State) mutate(fn func(st *State), report func(Field) Field) {
	s.mu.Lock()
	before := s.snap.clone()
	fn(s)
	fields := diff(before, s.snap)
	if report != nil {
		fields = report(fields)
	}
	url := s.locationLocked()
	change := Change{Fields: fields, State: s.snap.clone(), Location: url}
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.loc.Replace(url)
	if fields == 0 {
		return
	}
	for _, fn := range subs {
		fn(change)
	}
}

func (s *State) locationLocked() string {
	q := Encode(s.snap, s.withPaging)
	if q == "" {
		return s.path
	}
	return s.path + "?" + q
}

// resetPageLocked implements "changing a filter invalidates the page".
func (s *State) resetPageLocked() {
	s.snap.Pagination.Page = 1
}

func (s *State) SetSearch(v string) {
	s.mutate(func(st *State) {
		st.snap.Search = v
		st.resetPageLocked()
	}, nil)
}

func (s *State) SetCategories(opts []Option) {
	s.mutate(func(st *State) {
		st.snap.Categories = append([]Option(nil), opts...)
		st.resetPageLocked()
	}, nil)
}

func (s *State) SetPriceRange(min, max float64) {
	s.setRange(func(st *State) **Range { return &st.snap.PriceRange }, min, max)
}

func (s *State) SetDiscountRange(min, max float64) {
	s.setRange(func(st *State) **Range { return &st.snap.DiscountRange }, min, max)
}

func (s *State) SetRatingRange(min, max float64) {
	s.setRange(func(st *State) **Range { return &st.snap.RatingRange }, min, max)
}

func (s *State) setRange(field func(st *State) **Range, min, max float64) {
	s.mutate(func(st *State) {
		r := Range{Min: min, Max: max}.normalize()
		*field(st) = &r
		st.resetPageLocked()
	}, nil)
}

func (s *State) SetInStock(v bool) {
	s.mutate(func(st *State) {
		st.snap.InStock = v
		st.resetPageLocked()
	}, nil)
}

// SetPage moves to page n, kept within [1, pageCount] once the page count
// is known.
func (s *State) SetPage(n int) {
	s.mutate(func(st *State) {
		if pc := st.snap.Pagination.PageCount; pc > 0 && n > pc {
			n = pc
		}
		if n < 1 {
			n = 1
		}
		st.snap.Pagination.Page = n
		st.withPaging = true
	}, nil)
}

// SetPagination records the server-reported pagination. The server is
// authoritative, so a page difference is reported as FieldPagination and
// does not count as a local page change. A nil p clears pagination.
func (s *State) SetPagination(p *models.Pagination) {
	s.mutate(func(st *State) {
		if p == nil {
			st.snap.Pagination.Page = 1
			st.snap.Pagination.PageCount = 0
			st.withPaging = false
			return
		}
		page := p.Page
		if page < 1 {
			page = 1
		}
		st.snap.Pagination.Page = page
		st.snap.Pagination.PageCount = p.PageCount
		if p.PageSize > 0 {
			st.snap.Pagination.PageSize = p.PageSize
		}
		st.withPaging = true
	}, func(f Field) Field {
		if f.Has(FieldPage) {
			f = f&^FieldPage | FieldPagination
		}
		return f
	})
}

// Reset removes every filter: ranges go back to the catalog-wide bounds,
// search, categories and in-stock are cleared, pagination is dropped.
func (s *State) Reset() {
	s.mutate(func(st *State) {
		price, discount, rating := st.bounds.Price, st.bounds.Discount, st.bounds.Rating
		st.snap.Search = ""
		st.snap.Categories = nil
		st.snap.PriceRange = &price
		st.snap.DiscountRange = &discount
		st.snap.RatingRange = &rating
		st.snap.InStock = false
		st.snap.Pagination.Page = 1
		st.snap.Pagination.PageCount = 0
		st.withPaging = false
	}, nil)
}

// Clear drops every parameter, ranges included.
func (s *State) Clear() {
	s.mutate(func(st *State) {
		st.snap = Snapshot{Pagination: Pagination{
			Page:     1,
			PageSize: st.snap.Pagination.PageSize,
		}}
		st.withPaging = false
	}, nil)
}

// SetGlobalBounds records the catalog-wide bounds. It is not a filter
// change and notifies nobody.
func (s *State) SetGlobalBounds(b Bounds) {
	s.mu.Lock()
	s.bounds = Bounds{
		Price:    b.Price.normalize(),
		Discount: b.Discount.normalize(),
		Rating:   b.Rating.normalize(),
	}
	s.mu.Unlock()
}

func (s *State) Bounds() Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Location is the URL the state currently serializes to.
func (s *State) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locationLocked()
}

// Query is the query-string part of Location.
func (s *State) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Encode(s.snap, s.withPaging)
}

func (s *State) Search() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Search
}

func (s *State) Categories() []Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Option(nil), s.snap.Categories...)
}

// PriceRange is the effective range: the explicit filter, or the bound.
func (s *State) PriceRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return effective(s.snap.PriceRange, s.bounds.Price)
}

func (s *State) DiscountRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return effective(s.snap.DiscountRange, s.bounds.Discount)
}

func (s *State) RatingRange() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return effective(s.snap.RatingRange, s.bounds.Rating)
}

func effective(r *Range, def Range) Range {
	if r == nil {
		return def
	}
	return *r
}

func (s *State) InStock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.InStock
}

func (s *State) Pagination() Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Pagination
}
