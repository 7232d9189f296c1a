package store

import (
	"log"
	"strings"

	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/portfolio"
)

// handleExternalChange applies a snapshot written by another context. The
// foreign document replaces the local one wholesale; local changes that were
// not persisted yet are dropped and reported with EventConflict.
func (s *Store) handleExternalChange(c persistence.Change) {
	if c.Key != persistence.KeySnapshot {
		return
	}
	if c.Removed || strings.TrimSpace(c.Value) == "" {
		if s.verbose {
			log.Printf("[SYNC] Ignoring removal of %s by another context", c.Key)
		}
		return
	}

	doc, err := portfolio.DecodeBytes([]byte(c.Value))
	if err != nil {
		log.Printf("[SYNC] Ignoring undecodable snapshot from another context: %v", err)
		return
	}

	s.mu.Lock()
	if !s.loaded || s.closed {
		s.mu.Unlock()
		return
	}

	var events []Event
	if s.version != s.persisted {
		events = append(events, Event{Type: EventConflict, LastUpdated: s.lastUpdated, Discarded: s.lastUpdated})
	}

	s.doc = doc
	observed := s.now().UnixMilli()
	if observed > s.lastUpdated {
		s.lastUpdated = observed
	}
	s.version++
	s.persisted = s.version
	s.syncs++
	events = append(events, Event{Type: EventSynced, LastUpdated: s.lastUpdated})
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[SYNC] Applied portfolio written by another context")
	}
	if len(events) > 1 {
		log.Printf("[SYNC] Discarded unsaved local changes from %d", events[0].Discarded)
	}
	s.subs.emit(events...)
}
