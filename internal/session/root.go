package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/listing"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/storage"
)

// API is the content API as a whole session sees it.
type API interface {
	listing.Fetcher
	cart.API
	auth.API
	catalog.API
}

type Deps struct {
	API       API
	Catalog   *catalog.Catalog
	Store     func(sessionID string) storage.KV
	Publisher events.Publisher
	Log       *slog.Logger
	CartDelay time.Duration
	// ListingPath is the path the query state serializes onto.
	ListingPath string
}

// Root is everything one browser session owns. Components reach each
// other only through the references wired here.
type Root struct {
	ID       string
	Location *query.MemoryLocation
	Query    *query.State
	Listing  *listing.Controller
	Cart     *cart.Aggregator
	Auth     *auth.Session
	Product  *catalog.ProductPage

	catalog *catalog.Catalog
	log     *slog.Logger

	mu     sync.Mutex
	subs   map[int]func(Notification)
	nextID int
	unsubs []func()
}

// Notification is one state change pushed to the UI.
type Notification struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

const (
	KindQuery   = "query"
	KindListing = "listing"
	KindCart    = "cart"
)

type QueryPayload struct {
	State    query.Snapshot `json:"state"`
	Location string         `json:"location"`
}

func NewRoot(id string, d Deps) *Root {
	log := d.Log
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("session", id)
	path := d.ListingPath
	if path == "" {
		path = "/products"
	}
	var kv storage.KV
	if d.Store != nil {
		kv = d.Store(id)
	}

	loc := &query.MemoryLocation{}
	q := query.New(path, loc)
	sess := auth.New(d.API, kv, log)
	agg := cart.New(d.API, sess,
		cart.WithDelay(d.CartDelay),
		cart.WithPublisher(d.Publisher),
		cart.WithLogger(log),
	)
	sess.AttachCart(agg)

	r := &Root{
		ID:       id,
		Location: loc,
		Query:    q,
		Listing:  listing.New(q, d.API, log),
		Cart:     agg,
		Auth:     sess,
		Product:  catalog.NewProductPage(d.API, log),
		catalog:  d.Catalog,
		log:      log,
		subs:     map[int]func(Notification){},
	}
	r.unsubs = append(r.unsubs,
		q.Subscribe(func(c query.Change) {
			r.broadcast(Notification{Kind: KindQuery, Data: QueryPayload{State: c.State, Location: c.Location}})
		}),
		r.Listing.Subscribe(func(res listing.Result) {
			r.broadcast(Notification{Kind: KindListing, Data: res})
		}),
		agg.Subscribe(func(v cart.View) {
			r.broadcast(Notification{Kind: KindCart, Data: v})
		}),
	)
	return r
}

// Init restores the login from storage, loads the cart of a logged-in
// user and measures the catalog bounds.
func (r *Root) Init(ctx context.Context) error {
	if err := r.Auth.InitFromStorage(ctx); err != nil {
		return err
	}
	if r.Auth.IsAuthenticated() {
		if err := r.Cart.FetchAuthoritative(ctx); err != nil {
			r.log.Warn("init_cart_error", "error", err)
		}
	}
	if r.catalog != nil {
		b, err := r.catalog.Bounds(ctx)
		if err != nil {
			r.log.Warn("catalog_bounds_error", "error", err)
		}
		r.Query.SetGlobalBounds(b)
	}
	return nil
}

// Subscribe registers fn for every query, listing and cart change.
func (r *Root) Subscribe(fn func(Notification)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *Root) broadcast(n Notification) {
	r.mu.Lock()
	subs := make([]func(Notification), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

// Close flushes queued cart changes and stops every background activity.
func (r *Root) Close(ctx context.Context) {
	if r.Auth.IsAuthenticated() {
		if err := r.Cart.Flush(ctx); err != nil {
			r.log.Warn("close_flush_error", "error", err)
		}
	}
	r.Cart.Close()
	r.Listing.Close()

	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}
