package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/meta"
)

// maxInFlight bounds the concurrent requests of one flush or clear.
const maxInFlight = 4

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func StdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Aggregator)

func WithDelay(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.delay = d
		}
	}
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(a *Aggregator) { a.afterFunc = fn }
}

func WithPublisher(p events.Publisher) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.pub = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// armLocked restarts the trailing timer.
func (a *Aggregator) armLocked() {
	a.stopTimerLocked()
	a.timer = a.afterFunc(a.delay, func() {
		if err := a.Flush(a.base); err != nil {
			a.log.Warn("cart_flush_skipped", "error", err)
		}
	})
}

func (a *Aggregator) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

type delta struct {
	productID int
	quantity  int
}

// Flush sends every queued delta now, one add request per product.
// Deltas whose request failed go back into the queue and are retried by
// the next flush.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.flushing.Lock()
	defer a.flushing.Unlock()

	token := a.creds.Token()

	a.mu.Lock()
	a.stopTimerLocked()
	batch := make([]delta, 0, len(a.pending))
	for id, p := range a.pending {
		if p.quantity != 0 {
			batch = append(batch, delta{productID: id, quantity: p.quantity})
		}
	}
	if len(batch) == 0 {
		a.mu.Unlock()
		return nil
	}
	if token == "" {
		a.mu.Unlock()
		return apperr.ErrUnauthenticated
	}
	drained := a.pending
	a.pending = map[int]*pendingDelta{}
	// in-flight deltas stay visible to FetchAuthoritative until the
	// requests are answered
	for _, d := range batch {
		a.inflight[d.productID] = &pendingDelta{quantity: d.quantity, product: drained[d.productID].product}
	}
	epoch := a.fetchEpoch
	a.mu.Unlock()
	slices.SortFunc(batch, func(x, y delta) int { return x.productID - y.productID })

	failed := make([]bool, len(batch))
	var g errgroup.Group
	g.SetLimit(maxInFlight)
	for i, d := range batch {
		g.Go(func() error {
			err := a.api.AddToCart(ctx, token, contentapi.CartChange{Product: d.productID, Quantity: d.quantity})
			if err != nil {
				failed[i] = true
				return fmt.Errorf("flush product %d: %w", d.productID, err)
			}
			return nil
		})
	}
	err := g.Wait()

	var sent, retry []delta
	for i, d := range batch {
		if failed[i] {
			retry = append(retry, d)
		} else {
			sent = append(sent, d)
		}
	}

	a.mu.Lock()
	for _, d := range batch {
		delete(a.inflight, d.productID)
	}
	overlapped := a.fetchEpoch != epoch
	a.mu.Unlock()

	if len(retry) > 0 {
		a.mergeBack(drained, retry)
		a.log.Error("cart_flush_error", "failed", len(retry), "sent", len(sent), "status", meta.Error, "error", err)
		a.setStatus(meta.Error)
	} else {
		a.mu.Lock()
		if a.status == meta.Error {
			a.status = meta.Success
		}
		a.mu.Unlock()
		a.notify()
	}

	if len(sent) > 0 {
		lines := make([]Line, 0, len(sent))
		for _, d := range sent {
			lines = append(lines, Line{Product: drained[d.productID].product, Quantity: d.quantity})
		}
		a.publish(ctx, events.TypeCartFlushed, lines, a.Totals())
	}

	// A fetch answered while the batch was in flight may predate it on
	// the server; fetch again so the mirror settles on the server cart.
	if overlapped && len(sent) > 0 {
		if err := a.FetchAuthoritative(ctx); err != nil {
			a.log.Warn("cart_refetch_error", "error", err)
		}
	}
	return nil
}

// mergeBack returns deltas to the queue, summing with anything queued
// since the drain. Products whose line was removed meanwhile are dropped.
func (a *Aggregator) mergeBack(drained map[int]*pendingDelta, ds []delta) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range ds {
		if a.findLocked(d.productID) == nil {
			continue
		}
		p, ok := a.pending[d.productID]
		if !ok {
			p = &pendingDelta{product: drained[d.productID].product}
			a.pending[d.productID] = p
		}
		p.quantity += d.quantity
	}
}

// ClearAll removes every line on the server, in parallel. The local
// lines are dropped only when every removal succeeded.
func (a *Aggregator) ClearAll(ctx context.Context) error {
	if _, err := a.clear(ctx); errors.Is(err, apperr.ErrUnauthenticated) {
		return err
	}
	return nil
}

// Receipt is what a confirmed checkout bought.
type Receipt struct {
	Lines  []Line `json:"items"`
	Totals Totals `json:"totals"`
}

// Checkout confirms the order: it empties the server cart and records an
// order_confirmed event. Unlike ClearAll it reports network failures,
// since the caller has to tell the customer the order did not go through.
func (a *Aggregator) Checkout(ctx context.Context) (*Receipt, error) {
	if a.creds.Token() != "" && len(a.Lines()) == 0 {
		return nil, fmt.Errorf("checkout: cart is empty: %w", apperr.ErrValidation)
	}
	r, err := a.clear(ctx)
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.TypeOrderConfirmed, r.Lines, r.Totals)
	return r, nil
}

func (a *Aggregator) clear(ctx context.Context) (*Receipt, error) {
	token := a.creds.Token()
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}

	a.mu.Lock()
	r := &Receipt{Lines: a.visibleLocked(), Totals: a.totals}
	a.mutStatus = meta.Loading
	a.mu.Unlock()
	a.notify()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for _, l := range r.Lines {
		g.Go(func() error {
			return a.api.RemoveFromCart(gctx, token, contentapi.CartChange{Product: l.Product.ID, Quantity: l.Quantity})
		})
	}
	if err := g.Wait(); err != nil {
		a.log.Error("cart_clear_error", "lines", len(r.Lines), "status", meta.Error, "error", err)
		a.setMutationStatus(meta.Error)
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	a.mu.Lock()
	a.stopTimerLocked()
	a.lines = nil
	a.pending = map[int]*pendingDelta{}
	a.recomputeLocked()
	a.mutStatus = meta.Success
	a.mu.Unlock()
	a.notify()

	a.publish(ctx, events.TypeCartCleared, r.Lines, r.Totals)
	return r, nil
}
