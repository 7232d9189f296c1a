// Package persistence provides the durable key/value port behind the portfolio store
// and its adapters (memory, file, Postgres, Badger).
package persistence

import (
	"context"
	"sync"
)

// Durable keys shared by every execution context.
const (
	KeySnapshot    = "portfolio_static_data"
	KeyLastUpdated = "portfolio_last_updated"
)

// Change describes a write observed from another execution context.
type Change struct {
	Key     string
	Value   string
	Removed bool
}

// Port is a durable key/value store with cross-context change notification.
// Listeners registered with OnExternalChange only see writes made through
// other ports, never the port's own writes.
type Port interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	OnExternalChange(fn func(Change)) (unsubscribe func())
	Close() error
}

// listeners fans change notifications out to registered callbacks.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(Change)
}

func (l *listeners) add(fn func(Change)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Change))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) notify(c Change) {
	l.mu.Lock()
	fns := make([]func(Change), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// echoFilter remembers the last value this port wrote or observed per key so
// that backends without origin tagging (filesystem, Badger) can drop
// self-notifications and duplicate events.
type echoFilter struct {
	mu      sync.Mutex
	written map[string]string
	removed map[string]bool
}

func newEchoFilter() *echoFilter {
	return &echoFilter{written: make(map[string]string), removed: make(map[string]bool)}
}

func (f *echoFilter) recordSet(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written[key] = value
	delete(f.removed, key)
}

func (f *echoFilter) recordRemove(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.written, key)
	f.removed[key] = true
}

// isEcho reports whether c matches this port's last write of the key.
func (f *echoFilter) isEcho(c Change) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.Removed {
		return f.removed[c.Key]
	}
	v, ok := f.written[c.Key]
	return ok && v == c.Value
}
