package gallery

import (
	"context"
	"sync"
	"time"
)

type registryEntry struct {
	store    *Store
	lastSeen time.Time
}

// Registry keeps one Store per authenticated session and forgets stores that
// have been idle longer than the configured TTL.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	idleTTL time.Duration
	now     func() time.Time
	onSize  func(n int)
}

func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// OnSize registers fn to be called with the number of stores whenever it
// changes. fn runs with the registry locked and must not call back into it.
func (r *Registry) OnSize(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSize = fn
	if fn != nil {
		fn(len(r.entries))
	}
}

func (r *Registry) sizeChanged() {
	if r.onSize != nil {
		r.onSize(len(r.entries))
	}
}

// Get returns the store for sessionID, creating an empty one on first use.
func (r *Registry) Get(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sessionID]
	if !ok {
		e = &registryEntry{store: NewStore(InitialState())}
		r.entries[sessionID] = e
		r.sizeChanged()
	}
	e.lastSeen = r.now()
	return e.store
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[sessionID]; ok {
		delete(r.entries, sessionID)
		r.sizeChanged()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes idle stores and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	if removed > 0 {
		r.sizeChanged()
	}
	return removed
}

// Run sweeps on every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
