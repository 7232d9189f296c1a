package store

import "sync"

// EventType names a store notification.
type EventType string

// Event types.
const (
	// EventLoaded fires once when Load installs the initial document.
	EventLoaded EventType = "loaded"
	// EventChanged fires after every local mutation.
	EventChanged EventType = "changed"
	// EventSynced fires when a write from another context replaced the document.
	EventSynced EventType = "synced"
	// EventConflict fires just before EventSynced when the replaced document
	// held local changes that had not been persisted yet.
	EventConflict EventType = "conflict"
	// EventPersistFailed fires when a background write is rejected.
	EventPersistFailed EventType = "persist_failed"
	// EventReset fires after ResetToDefault.
	EventReset EventType = "reset"
)

// Event is delivered to subscribers.
type Event struct {
	Type EventType `json:"type"`
	// Section is set on EventChanged for single-section mutations.
	Section     string `json:"section,omitempty"`
	LastUpdated int64  `json:"lastUpdated"`
	// Discarded is the lastUpdated of the local state lost in a conflict.
	Discarded int64 `json:"discarded,omitempty"`
	// Err is set on EventPersistFailed.
	Err error `json:"-"`
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.fns, id)
		})
	}
}

// emit calls subscribers synchronously, outside of any store lock.
func (s *subscribers) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
