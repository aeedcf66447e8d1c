package listing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/meta"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
)

type Fetcher interface {
	ListProducts(ctx context.Context, q contentapi.ProductQuery) (*models.List[models.Product], error)
}

type Result struct {
	Items      []models.Product `json:"items"`
	TotalCount int              `json:"totalCount"`
	Status     meta.Status      `json:"status"`
}

// triggers are the query fields that cause a refetch. Other filters are
// applied on the next trigger or on Find.
const triggers = query.FieldCategories | query.FieldPage

// Controller keeps a Result in line with a query.State. Every fetch gets
// a sequence number; responses of superseded fetches are dropped and their
// requests cancelled.
type Controller struct {
	q   *query.State
	api Fetcher
	log *slog.Logger

	base  context.Context
	stop  context.CancelFunc
	unsub func()

	// writeback serializes the response handling of fetches, so the
	// pagination of a superseded fetch never lands after a newer one.
	writeback sync.Mutex

	mu     sync.Mutex
	result Result
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	subs   map[int]func(Result)
	nextID int
}

func New(q *query.State, api Fetcher, log *slog.Logger) *Controller {
	if log == nil {
		log = logging.Discard()
	}
	base, stop := context.WithCancel(context.Background())
	c := &Controller{
		q:      q,
		api:    api,
		log:    log.With("component", "listing"),
		base:   base,
		stop:   stop,
		result: Result{Status: meta.Initial},
		subs:   map[int]func(Result){},
	}
	c.unsub = q.Subscribe(func(ch query.Change) {
		if ch.Fields.Has(triggers) {
			c.fetch(ch.State)
		}
	})
	return c
}

// Subscribe registers fn for every result update, loading included.
func (c *Controller) Subscribe(fn func(Result)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.result
	r.Items = append([]models.Product(nil), c.result.Items...)
	return r
}

// Find runs an explicit search: back to page 1 and fetch, once.
func (c *Controller) Find() {
	c.mu.Lock()
	before := c.seq
	c.mu.Unlock()

	c.q.SetPage(1)

	c.mu.Lock()
	fetched := c.seq != before
	c.mu.Unlock()
	if !fetched {
		c.fetch(c.q.Snapshot())
	}
}

// Reload fetches the current state without touching it.
func (c *Controller) Reload() {
	c.fetch(c.q.Snapshot())
}

// Settle blocks until the most recent fetch has completed, or ctx ends.
func (c *Controller) Settle(ctx context.Context) error {
	for {
		c.mu.Lock()
		done := c.done
		c.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		latest := c.done == done
		c.mu.Unlock()
		if latest {
			return nil
		}
	}
}

// Close stops reacting to the query state and cancels the fetch in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.seq++
	c.mu.Unlock()

	c.unsub()
	c.stop()
}

func (c *Controller) fetch(snap query.Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.result.Status = meta.Loading
	c.mu.Unlock()

	c.notify()
	go c.run(ctx, cancel, seq, snap, done)
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, seq uint64, snap query.Snapshot, done chan struct{}) {
	defer close(done)
	defer cancel()

	q := BuildQuery(snap)
	list, err := c.api.ListProducts(ctx, q)

	c.writeback.Lock()
	defer c.writeback.Unlock()

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.log.Debug("listing_stale_response", "seq", seq)
		return
	}
	if err != nil {
		// previous items stay visible
		c.result.Status = meta.Error
		c.mu.Unlock()
		c.log.Error("listing_fetch_error", "page", q.Page, "error", err)
		c.notify()
		return
	}
	c.result = Result{
		Items:      list.Data,
		TotalCount: list.Meta.Pagination.Total,
		Status:     meta.Success,
	}
	c.mu.Unlock()

	if !c.current(seq) {
		c.log.Debug("listing_stale_pagination", "seq", seq)
		c.notify()
		return
	}
	p := list.Meta.Pagination
	c.q.SetPagination(&p)
	c.notify()
}

func (c *Controller) current(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq == c.seq
}

func (c *Controller) notify() {
	c.mu.Lock()
	subs := make([]func(Result), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	r := c.Result()
	for _, fn := range subs {
		fn(r)
	}
}

// BuildQuery maps a query snapshot onto the content API filters. Ranges
// are sent only when set explicitly.
func BuildQuery(s query.Snapshot) contentapi.ProductQuery {
	return contentapi.ProductQuery{
		Search:      s.Search,
		CategoryIDs: s.CategoryKeys(),
		Price:       bounds(s.PriceRange),
		Discount:    bounds(s.DiscountRange),
		Rating:      bounds(s.RatingRange),
		InStock:     s.InStock,
		Page:        s.Pagination.Page,
		PageSize:    s.Pagination.PageSize,
	}
}

func bounds(r *query.Range) *contentapi.Bounds {
	if r == nil {
		return nil
	}
	return &contentapi.Bounds{Min: r.Min, Max: r.Max}
}
