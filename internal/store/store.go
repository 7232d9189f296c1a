// Package store owns the live portfolio document. It applies mutations,
// persists every change in the background and reconciles writes made by
// other contexts sharing the same persistence port.
package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonathan/portfolio-core/internal/loader"
	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/portfolio"
)

// DefaultPersistTimeout bounds a single background write.
const DefaultPersistTimeout = 10 * time.Second

// DocumentLoader produces the initial document.
type DocumentLoader interface {
	Load(ctx context.Context) loader.Result
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source for lastUpdated and entity ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the entity id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) { s.ids = ids }
}

// WithVerbose enables logging of persistence and sync activity.
func WithVerbose(verbose bool) Option {
	return func(s *Store) { s.verbose = verbose }
}

// WithPersistTimeout bounds background writes.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) { s.persistTimeout = d }
}

// Store is the portfolio data store. It is safe for concurrent use.
type Store struct {
	port           persistence.Port
	loader         DocumentLoader
	ids            IDGenerator
	now            func() time.Time
	verbose        bool
	persistTimeout time.Duration

	mu          sync.RWMutex
	doc         portfolio.Document
	lastUpdated int64
	loaded      bool
	closed      bool
	tier        string
	// version counts document states; persisted is the newest version known
	// to be durable.
	version   uint64
	persisted uint64
	// syncs counts foreign snapshots applied by handleExternalChange.
	syncs uint64

	// writeMu serializes durable writes between the persister, Flush and
	// ResetToDefault.
	writeMu sync.Mutex

	subs      subscribers
	persistCh chan struct{}
	stop      chan struct{}
	done      chan struct{}
	unwatch   func()
	closeOnce sync.Once
}

// New creates a store over port. Nothing is read until Load is called.
func New(port persistence.Port, l DocumentLoader, opts ...Option) *Store {
	s := &Store{
		port:           port,
		loader:         l,
		now:            time.Now,
		persistTimeout: DefaultPersistTimeout,
		persistCh:      make(chan struct{}, 1),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = NewMonotonicClock(s.now)
	}

	go s.runPersister()
	return s
}

// Load resolves the initial document and starts watching for writes from
// other contexts. Calling Load again is a no-op.
func (s *Store) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded, closed := s.loaded, s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if loaded {
		return nil
	}

	res := s.loader.Load(ctx)

	s.mu.Lock()
	if s.loaded || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.doc = res.Document
	s.lastUpdated = res.LastUpdated
	s.tier = res.Tier
	s.loaded = true
	s.version++
	if res.Tier == loader.TierSnapshot {
		s.persisted = s.version
	}
	lastUpdated := s.lastUpdated
	s.unwatch = s.port.OnExternalChange(s.handleExternalChange)
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[STORE] Loaded portfolio from %s tier (lastUpdated=%d)", res.Tier, lastUpdated)
	}
	if res.Tier != loader.TierSnapshot {
		s.schedulePersist()
	}
	s.subs.emit(Event{Type: EventLoaded, LastUpdated: lastUpdated})
	return nil
}

// IsLoading reports whether Load has not completed yet.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loaded
}

// Tier reports which loader tier produced the initial document.
func (s *Store) Tier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier
}

// LastUpdated returns the timestamp of the current state in Unix ms.
func (s *Store) LastUpdated() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Document returns a deep copy of the current document, or nil before Load.
func (s *Store) Document() portfolio.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Collection returns a copy of a collection section; absent sections are empty.
func (s *Store) Collection(name string) []portfolio.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Collection(name)
}

// Record returns a copy of a record section; absent sections are empty.
func (s *Store) Record(name string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Record(name)
}

// Section returns a copy of any top-level section and whether it is present.
func (s *Store) Section(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.doc[name]
	return portfolio.CloneValue(v), ok
}

// ProfilePicture returns the picture reference, or nil.
func (s *Store) ProfilePicture() *string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.ProfilePicture()
}

// Resume returns the typed resume view.
func (s *Store) Resume() (*portfolio.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Resume()
}

// Subscribe registers fn for store events and returns an unsubscribe func.
// Callbacks run synchronously on the goroutine that caused the event and
// must not call back into mutating store methods.
func (s *Store) Subscribe(fn func(Event)) func() {
	return s.subs.add(fn)
}

// Close writes the current state, stops background work and detaches from
// the port. The port itself is left open.
func (s *Store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Flush(ctx)

		s.mu.Lock()
		s.closed = true
		unwatch := s.unwatch
		s.mu.Unlock()

		close(s.stop)
		<-s.done
		if unwatch != nil {
			unwatch()
		}
	})
	return err
}

// bumpLocked advances lastUpdated to max(now, previous+1) and marks the
// document as changed. Callers hold s.mu.
func (s *Store) bumpLocked() int64 {
	next := s.now().UnixMilli()
	if next <= s.lastUpdated {
		next = s.lastUpdated + 1
	}
	s.lastUpdated = next
	s.version++
	return next
}

// checkWritableLocked returns the error for a mutation attempted in the
// wrong lifecycle state. Callers hold s.mu.
func (s *Store) checkWritableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if !s.loaded {
		return ErrNotLoaded
	}
	return nil
}
