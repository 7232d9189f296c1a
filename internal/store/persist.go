package store

import (
	"context"
	"log"
	"strconv"

	"github.com/jonathan/portfolio-core/internal/persistence"
)

// maxRewrites bounds how often one write re-stores a document adopted from
// another context while the write was in flight.
const maxRewrites = 3

type snapshot struct {
	data        []byte
	lastUpdated int64
	version     uint64
	syncs       uint64
	force       bool
}

// schedulePersist wakes the persister. Signals coalesce: one pending wakeup
// covers any number of mutations.
func (s *Store) schedulePersist() {
	select {
	case s.persistCh <- struct{}{}:
	default:
	}
}

func (s *Store) runPersister() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.persistCh:
			ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
			if err := s.persistPending(ctx); err != nil {
				log.Printf("[STORE] Background persist failed: %v", err)
				s.subs.emit(Event{Type: EventPersistFailed, LastUpdated: s.LastUpdated(), Err: err})
			}
			cancel()
		}
	}
}

// persistPending writes the current state if it is newer than what is
// already durable.
func (s *Store) persistPending(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, ok, err := s.capture(false)
	if err != nil || !ok {
		return err
	}
	return s.write(ctx, snap)
}

// Flush synchronously writes the current state, whether or not it is
// already durable. It is meant for shutdown paths.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, ok, err := s.capture(true)
	if err != nil || !ok {
		return err
	}
	return s.write(ctx, snap)
}

// capture encodes the current state. ok is false when there is nothing to
// write.
func (s *Store) capture(force bool) (snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded || s.closed {
		return snapshot{}, false, nil
	}
	if !force && s.version == s.persisted {
		return snapshot{}, false, nil
	}

	data, err := s.doc.Encode()
	if err != nil {
		return snapshot{}, false, &PersistError{Key: persistence.KeySnapshot, Cause: err}
	}
	return snapshot{data: data, lastUpdated: s.lastUpdated, version: s.version, syncs: s.syncs, force: force}, true, nil
}

// write stores the document key then the timestamp key. Callers hold
// s.writeMu.
//
// A foreign snapshot adopted between capture and the snapshot Set has been
// overwritten in storage by this older document. The adopted document is
// then written back so that storage matches memory again.
func (s *Store) write(ctx context.Context, snap snapshot) error {
	for attempt := 0; ; attempt++ {
		s.mu.RLock()
		superseded := !snap.force && s.persisted >= snap.version
		s.mu.RUnlock()
		if superseded {
			return nil
		}

		if err := s.port.Set(ctx, persistence.KeySnapshot, string(snap.data)); err != nil {
			return &PersistError{Key: persistence.KeySnapshot, Cause: err}
		}

		s.mu.RLock()
		raced := s.syncs != snap.syncs
		s.mu.RUnlock()
		if !raced || attempt >= maxRewrites {
			break
		}
		if s.verbose {
			log.Printf("[STORE] Portfolio from another context arrived during write; writing it back")
		}
		next, ok, err := s.capture(true)
		if err != nil || !ok {
			return err
		}
		snap = next
	}

	if err := s.port.Set(ctx, persistence.KeyLastUpdated, strconv.FormatInt(snap.lastUpdated, 10)); err != nil {
		return &PersistError{Key: persistence.KeyLastUpdated, Cause: err}
	}

	s.mu.Lock()
	if snap.version > s.persisted {
		s.persisted = snap.version
	}
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[STORE] Persisted portfolio (%d bytes, lastUpdated=%d)", len(snap.data), snap.lastUpdated)
	}
	return nil
}
