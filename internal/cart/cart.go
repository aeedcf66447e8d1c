package cart

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/meta"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/money"
)

const DefaultDelay = time.Second

type API interface {
	GetCart(ctx context.Context, token string) ([]models.CartItem, error)
	AddToCart(ctx context.Context, token string, change contentapi.CartChange) error
	RemoveFromCart(ctx context.Context, token string, change contentapi.CartChange) error
}

// Credentials gates every operation. Token returns "" when nobody is
// logged in or the token has expired.
type Credentials interface {
	Token() string
	UserID() string
}

type Line struct {
	// ID is the server cart item id; zero for lines created locally.
	ID       int            `json:"id"`
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

type Totals struct {
	Count         int   `json:"totalCount"`
	Price         int64 `json:"totalPrice"`
	DiscountPrice int64 `json:"totalDiscountPrice"`
}

// View is a copy of the aggregator state for rendering.
type View struct {
	Lines          []Line      `json:"items"`
	Totals         Totals      `json:"totals"`
	Status         meta.Status `json:"status"`
	MutationStatus meta.Status `json:"mutationStatus"`
	Pending        map[int]int `json:"pending,omitempty"`
}

type pendingDelta struct {
	quantity int
	// product is what a placeholder line shows until the server cart is
	// fetched again.
	product models.Product
}

// Aggregator is the local mirror of the server cart. Quantity changes are
// applied immediately and queued as per-product deltas that a trailing
// timer flushes to the server.
type Aggregator struct {
	api   API
	creds Credentials
	pub   events.Publisher
	log   *slog.Logger

	delay     time.Duration
	afterFunc AfterFunc
	base      context.Context
	stop      context.CancelFunc

	// flushing serializes flushes: one batch in flight at a time.
	flushing sync.Mutex

	mu       sync.Mutex
	lines    []*Line
	pending  map[int]*pendingDelta
	inflight map[int]*pendingDelta
	// fetchEpoch counts applied server carts.
	fetchEpoch uint64
	timer      Timer
	totals     Totals
	status     meta.Status
	mutStatus  meta.Status
	subs       map[int]func(View)
	nextSub    int
}

func New(api API, creds Credentials, opts ...Option) *Aggregator {
	base, stop := context.WithCancel(context.Background())
	a := &Aggregator{
		api:       api,
		creds:     creds,
		pub:       events.Noop{},
		log:       logging.Discard(),
		delay:     DefaultDelay,
		afterFunc: StdAfterFunc,
		base:      base,
		stop:      stop,
		pending:   map[int]*pendingDelta{},
		inflight:  map[int]*pendingDelta{},
		status:    meta.Initial,
		mutStatus: meta.Initial,
		subs:      map[int]func(View){},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "cart")
	return a
}

func (a *Aggregator) Subscribe(fn func(View)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// AddToCart sends qty of product to the server right away and then loads
// the authoritative cart.
func (a *Aggregator) AddToCart(ctx context.Context, product models.Product, qty int) error {
	token := a.creds.Token()
	if token == "" {
		return apperr.ErrUnauthenticated
	}
	if qty < 1 {
		qty = 1
	}

	a.setStatus(meta.Loading)
	err := a.api.AddToCart(ctx, token, contentapi.CartChange{Product: product.ID, Quantity: qty})
	if err != nil {
		a.log.Error("cart_add_error", "product", product.ID, "status", meta.Error, "error", err)
		a.setStatus(meta.Error)
		return nil
	}
	return a.FetchAuthoritative(ctx)
}

// UpdateQuantity applies delta locally and queues it for the next flush.
// fallback supplies the display fields of a line the cart does not have
// yet.
func (a *Aggregator) UpdateQuantity(productID, delta int, fallback *models.Product) error {
	if a.creds.Token() == "" {
		return apperr.ErrUnauthenticated
	}
	if delta == 0 {
		return nil
	}

	a.mu.Lock()
	line := a.findLocked(productID)
	if line == nil {
		line = &Line{Product: placeholder(productID, fallback)}
		a.lines = append(a.lines, line)
	}
	line.Quantity += delta

	p, ok := a.pending[productID]
	if !ok {
		p = &pendingDelta{product: line.Product}
		a.pending[productID] = p
	}
	if fallback != nil {
		p.product = *fallback
	}
	p.quantity += delta

	a.recomputeLocked()
	a.armLocked()
	a.mu.Unlock()

	a.notify()
	return nil
}

func (a *Aggregator) DecreaseQuantity(productID, amount int) error {
	if amount < 1 {
		amount = 1
	}
	return a.UpdateQuantity(productID, -amount, nil)
}

func placeholder(productID int, fallback *models.Product) models.Product {
	if fallback == nil {
		return models.Product{ID: productID, Title: "Loading..."}
	}
	p := *fallback
	p.ID = productID
	return p
}

// RemoveLine drops the line and its queued delta, then asks the server to
// remove the line's last known quantity.
func (a *Aggregator) RemoveLine(ctx context.Context, productID int) error {
	token := a.creds.Token()
	if token == "" {
		return apperr.ErrUnauthenticated
	}

	a.mu.Lock()
	delete(a.pending, productID)
	idx := slices.IndexFunc(a.lines, func(l *Line) bool { return l.Product.ID == productID })
	if idx < 0 {
		a.mu.Unlock()
		return nil
	}
	line := *a.lines[idx]
	a.lines = slices.Delete(a.lines, idx, idx+1)
	a.recomputeLocked()
	a.mutStatus = meta.Loading
	a.mu.Unlock()
	a.notify()

	if line.Quantity > 0 {
		err := a.api.RemoveFromCart(ctx, token, contentapi.CartChange{Product: productID, Quantity: line.Quantity})
		if err != nil {
			a.log.Error("cart_remove_error", "product", productID, "status", meta.Error, "error", err)
			a.setMutationStatus(meta.Error)
			return nil
		}
	}

	a.setMutationStatus(meta.Success)
	a.publish(ctx, events.TypeCartLineRemoved, []Line{line}, Totals{})
	return nil
}

// FetchAuthoritative replaces the lines with the server cart. Deltas that
// have not been flushed yet are applied on top.
func (a *Aggregator) FetchAuthoritative(ctx context.Context) error {
	token := a.creds.Token()
	if token == "" {
		return apperr.ErrUnauthenticated
	}

	a.setStatus(meta.Loading)
	items, err := a.api.GetCart(ctx, token)
	if err != nil {
		a.log.Error("get_cart_error", "status", meta.Error, "error", err)
		a.setStatus(meta.Error)
		return nil
	}

	a.mu.Lock()
	a.lines = make([]*Line, 0, len(items))
	for _, it := range items {
		a.lines = append(a.lines, &Line{ID: it.ID, Product: it.Product, Quantity: it.Quantity})
	}
	a.reapplyLocked(a.inflight)
	a.reapplyLocked(a.pending)
	a.fetchEpoch++
	a.recomputeLocked()
	a.status = meta.Success
	a.mu.Unlock()

	a.notify()
	return nil
}

// reapplyLocked adds local deltas on top of the lines, in product order.
func (a *Aggregator) reapplyLocked(deltas map[int]*pendingDelta) {
	ids := make([]int, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p := deltas[id]
		line := a.findLocked(id)
		if line == nil {
			line = &Line{Product: p.product}
			a.lines = append(a.lines, line)
		}
		line.Quantity += p.quantity
	}
}

// Reset forgets the cart locally without telling the server. Used on
// logout.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.stopTimerLocked()
	a.lines = nil
	a.pending = map[int]*pendingDelta{}
	clear(a.inflight)
	a.recomputeLocked()
	a.status = meta.Initial
	a.mutStatus = meta.Initial
	a.mu.Unlock()

	a.notify()
}

// Close stops the flush timer and cancels background flushes. Deltas that
// were not flushed are lost.
func (a *Aggregator) Close() {
	a.mu.Lock()
	a.stopTimerLocked()
	a.mu.Unlock()
	a.stop()
}

// Lines returns the visible lines: quantity of at least one.
func (a *Aggregator) Lines() []Line {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visibleLocked()
}

func (a *Aggregator) Totals() Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals
}

// Status covers fetching the cart and adding to it.
func (a *Aggregator) Status() meta.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// MutationStatus covers removals.
func (a *Aggregator) MutationStatus() meta.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mutStatus
}

// Quantity is the local tally for a product, hidden lines included.
func (a *Aggregator) Quantity(productID int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if l := a.findLocked(productID); l != nil {
		return l.Quantity
	}
	return 0
}

func (a *Aggregator) Pending() map[int]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingLocked()
}

func (a *Aggregator) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *Aggregator) viewLocked() View {
	v := View{
		Lines:          a.visibleLocked(),
		Totals:         a.totals,
		Status:         a.status,
		MutationStatus: a.mutStatus,
	}
	if len(a.pending) > 0 {
		v.Pending = a.pendingLocked()
	}
	return v
}

func (a *Aggregator) pendingLocked() map[int]int {
	out := make(map[int]int, len(a.pending))
	for id, p := range a.pending {
		out[id] = p.quantity
	}
	return out
}

func (a *Aggregator) visibleLocked() []Line {
	out := make([]Line, 0, len(a.lines))
	for _, l := range a.lines {
		if l.Quantity > 0 {
			out = append(out, *l)
		}
	}
	return out
}

func (a *Aggregator) findLocked(productID int) *Line {
	for _, l := range a.lines {
		if l.Product.ID == productID {
			return l
		}
	}
	return nil
}

// recomputeLocked rebuilds the totals from scratch. Sums are exact and
// rounded once.
func (a *Aggregator) recomputeLocked() {
	var sum money.Sum
	count := 0
	for _, l := range a.lines {
		if l.Quantity <= 0 {
			continue
		}
		count += l.Quantity
		sum.Add(l.Product.Price, l.Product.DiscountPercent, l.Quantity)
	}
	a.totals = Totals{Count: count, Price: sum.Total(), DiscountPrice: sum.DiscountedTotal()}
}

func (a *Aggregator) setStatus(s meta.Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
	a.notify()
}

func (a *Aggregator) setMutationStatus(s meta.Status) {
	a.mu.Lock()
	a.mutStatus = s
	a.mu.Unlock()
	a.notify()
}

func (a *Aggregator) notify() {
	a.mu.Lock()
	v := a.viewLocked()
	subs := make([]func(View), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

func (a *Aggregator) publish(ctx context.Context, typ string, lines []Line, t Totals) {
	ev := events.Event{
		Type:               typ,
		UserID:             a.creds.UserID(),
		TotalCount:         t.Count,
		TotalPrice:         t.Price,
		TotalDiscountPrice: t.DiscountPrice,
		At:                 time.Now().UTC(),
	}
	for _, l := range lines {
		ev.Lines = append(ev.Lines, events.Line{ProductID: l.Product.ID, Quantity: l.Quantity})
	}
	if err := a.pub.Publish(ctx, ev); err != nil {
		a.log.Warn("cart_event_publish_error", "type", typ, "error", err)
	}
}
