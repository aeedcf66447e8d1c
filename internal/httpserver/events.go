package httpserver

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var kindOrder = []string{session.KindQuery, session.KindListing, session.KindCart}

// EventStream pushes the session's state changes to the page over a
// websocket. Each notification carries the whole state of its kind, so a
// slow reader only ever gets the latest one per kind.
type EventStream struct {
	AllowOrigins []string
}

func (s *EventStream) checkOrigin(r *http.Request) bool {
	if len(s.AllowOrigins) == 0 || slices.Contains(s.AllowOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.AllowOrigins, origin)
}

// mailbox keeps the latest notification per kind until the writer takes
// it. put never blocks the notifying component.
type mailbox struct {
	mu     sync.Mutex
	latest map[string]session.Notification
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{latest: map[string]session.Notification{}, ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(n session.Notification) {
	m.mu.Lock()
	m.latest[n.Kind] = n
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() []session.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]session.Notification, 0, len(m.latest))
	for _, k := range kindOrder {
		if n, ok := m.latest[k]; ok {
			out = append(out, n)
		}
	}
	clear(m.latest)
	return out
}

func (s *EventStream) Serve(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	l := logging.FromContext(c.Request().Context())

	up := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := up.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		l.Warn("websocket_upgrade_error", "error", err)
		return nil
	}
	defer conn.Close()

	box := newMailbox()
	unsub := r.Subscribe(box.put)
	defer unsub()

	box.put(session.Notification{Kind: session.KindQuery, Data: session.QueryPayload{State: r.Query.Snapshot(), Location: r.Query.Location()}})
	box.put(session.Notification{Kind: session.KindListing, Data: r.Listing.Result()})
	box.put(session.Notification{Kind: session.KindCart, Data: r.Cart.View()})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return nil
		case <-box.ready:
			for _, n := range box.take() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(n); err != nil {
					l.Debug("websocket_write_error", "error", err)
					return nil
				}
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}
