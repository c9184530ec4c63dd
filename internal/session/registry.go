package session

import (
	"context"
	"sync"
	"time"
)

type entry[T any] struct {
	value    T
	lastSeen time.Time
	holds    int
}

// Registry holds live session values keyed by session id and evicts the ones
// idle for longer than the configured TTL.
type Registry[T any] struct {
	mu      sync.Mutex
	items   map[string]*entry[T]
	idle    time.Duration
	create  func(id string) T
	evict   func(id string, v T)
	now     func() time.Time
	onCount func(int)
}

// NewRegistry builds a registry. create is called under the registry lock and
// must not block; evict runs after removal.
func NewRegistry[T any](idle time.Duration, create func(string) T, evict func(string, T)) *Registry[T] {
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	return &Registry[T]{
		items:  make(map[string]*entry[T]),
		idle:   idle,
		create: create,
		evict:  evict,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (r *Registry[T]) WithClock(now func() time.Time) *Registry[T] {
	r.now = now
	return r
}

// OnCount registers a callback receiving the number of live sessions after changes.
func (r *Registry[T]) OnCount(fn func(int)) *Registry[T] {
	r.onCount = fn
	return r
}

// Get returns the value for id, creating it when absent, and marks it as used.
func (r *Registry[T]) Get(id string) T {
	r.mu.Lock()
	e, created := r.touchLocked(id)
	n := len(r.items)
	r.mu.Unlock()
	if created {
		r.count(n)
	}
	return e.value
}

// Acquire is Get plus a hold: Sweep skips the entry until release is called,
// and release marks it as used again. release is safe to call twice.
func (r *Registry[T]) Acquire(id string) (T, func()) {
	r.mu.Lock()
	e, created := r.touchLocked(id)
	e.holds++
	n := len(r.items)
	r.mu.Unlock()
	if created {
		r.count(n)
	}
	var once sync.Once
	return e.value, func() {
		once.Do(func() {
			r.mu.Lock()
			e.holds--
			e.lastSeen = r.now()
			r.mu.Unlock()
		})
	}
}

func (r *Registry[T]) touchLocked(id string) (*entry[T], bool) {
	e, ok := r.items[id]
	if !ok {
		e = &entry[T]{value: r.create(id)}
		r.items[id] = e
	}
	e.lastSeen = r.now()
	return e, !ok
}

// Peek returns the value without creating or touching it.
func (r *Registry[T]) Peek(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Delete removes id and runs the evict hook.
func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	e, ok := r.items[id]
	delete(r.items, id)
	n := len(r.items)
	r.mu.Unlock()
	if ok {
		r.release(id, e.value)
		r.count(n)
	}
}

// Len returns the number of live sessions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep evicts idle sessions that nobody holds and returns how many were removed.
func (r *Registry[T]) Sweep() int {
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	expired := make(map[string]T)
	for id, e := range r.items {
		if e.holds == 0 && e.lastSeen.Before(cutoff) {
			expired[id] = e.value
			delete(r.items, id)
		}
	}
	n := len(r.items)
	r.mu.Unlock()
	for id, v := range expired {
		r.release(id, v)
	}
	if len(expired) > 0 {
		r.count(n)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry[T]) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close evicts every session.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*entry[T])
	r.mu.Unlock()
	for id, e := range items {
		r.release(id, e.value)
	}
	r.count(0)
}

func (r *Registry[T]) release(id string, v T) {
	if r.evict != nil {
		r.evict(id, v)
	}
}

func (r *Registry[T]) count(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}
