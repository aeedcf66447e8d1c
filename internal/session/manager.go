package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	root     *Root
	once     sync.Once
	initErr  error
	lastSeen time.Time
}

// Manager owns the Root of every live browser session.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	roots map[string]*entry
}

func NewManager(d Deps) *Manager {
	return &Manager{deps: d, now: time.Now, roots: map[string]*entry{}}
}

// Get returns the Root of session id, creating and initialising it on
// first use.
func (m *Manager) Get(ctx context.Context, id string) (*Root, error) {
	m.mu.Lock()
	e, ok := m.roots[id]
	if !ok {
		e = &entry{root: NewRoot(id, m.deps)}
		m.roots[id] = e
	}
	e.lastSeen = m.now()
	m.mu.Unlock()

	e.once.Do(func() { e.initErr = e.root.Init(ctx) })
	if e.initErr != nil {
		m.mu.Lock()
		if m.roots[id] == e {
			delete(m.roots, id)
		}
		m.mu.Unlock()
		e.root.Close(ctx)
		return nil, e.initErr
	}
	return e.root, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roots)
}

// Sweep closes sessions idle for longer than maxIdle and reports how many
// were closed.
func (m *Manager) Sweep(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Root
	for id, e := range m.roots {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.root)
			delete(m.roots, id)
		}
	}
	m.mu.Unlock()

	for _, r := range idle {
		r.Close(ctx)
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(ctx, maxIdle); n > 0 && m.deps.Log != nil {
				m.deps.Log.Info("sessions_swept", "closed", n)
			}
		}
	}
}

// CloseAll closes every session. Used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	roots := m.roots
	m.roots = map[string]*entry{}
	m.mu.Unlock()

	for _, e := range roots {
		e.root.Close(ctx)
	}
}
