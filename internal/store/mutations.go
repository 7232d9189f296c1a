package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/portfolio"
)

// ReplaceSection overwrites a top-level section wholesale. value may be any
// JSON-encodable Go value. A collection section must be an array of objects
// with distinct ids, or null.
func (s *Store) ReplaceSection(name string, value any) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidSection
	}
	norm, err := portfolio.Normalize(value)
	if err != nil {
		return fmt.Errorf("section %s: %w", name, err)
	}
	if portfolio.IsCollection(name) {
		if err := checkCollection(name, norm); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.doc[name] = norm
	ts := s.bumpLocked()
	s.mu.Unlock()

	s.changed(name, ts)
	return nil
}

// AddEntity assigns a fresh id to item, appends it to the section and
// returns the stored entity. A missing section is created.
func (s *Store) AddEntity(section string, item any) (portfolio.Entity, error) {
	entity, err := toEntity(section, item)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	items, err := s.collectionLocked(section)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	taken := make(map[string]bool, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			taken[portfolio.IDKey(m["id"])] = true
		}
	}
	id := s.ids.NewID()
	for taken[strconv.FormatInt(id, 10)] {
		id = s.ids.NewID()
	}

	entity["id"] = json.Number(strconv.FormatInt(id, 10))
	s.doc[section] = append(items, entity.Raw())
	ts := s.bumpLocked()
	stored := portfolio.Entity(portfolio.CloneValue(entity.Raw()).(map[string]any))
	s.mu.Unlock()

	s.changed(section, ts)
	return stored, nil
}

// UpdateEntity replaces the entity with the given id. The stored id is kept
// whatever item carries.
func (s *Store) UpdateEntity(section string, id any, item any) (portfolio.Entity, error) {
	entity, err := toEntity(section, item)
	if err != nil {
		return nil, err
	}
	key := portfolio.IDKey(id)

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	items, err := s.collectionLocked(section)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	idx := indexOf(items, key)
	if idx < 0 {
		s.mu.Unlock()
		return nil, &EntityError{Section: section, ID: key, Err: ErrEntityNotFound}
	}

	entity["id"] = items[idx].(map[string]any)["id"]
	updated := make([]any, len(items))
	copy(updated, items)
	updated[idx] = entity.Raw()
	s.doc[section] = updated
	ts := s.bumpLocked()
	stored := portfolio.Entity(portfolio.CloneValue(entity.Raw()).(map[string]any))
	s.mu.Unlock()

	s.changed(section, ts)
	return stored, nil
}

// RemoveEntity deletes the entity with the given id. When no entity matches
// the collection is left untouched and ErrEntityNotFound is returned.
func (s *Store) RemoveEntity(section string, id any) error {
	key := portfolio.IDKey(id)

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	items, err := s.collectionLocked(section)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	idx := indexOf(items, key)
	if idx < 0 {
		s.mu.Unlock()
		return &EntityError{Section: section, ID: key, Err: ErrEntityNotFound}
	}

	remaining := make([]any, 0, len(items)-1)
	remaining = append(remaining, items[:idx]...)
	remaining = append(remaining, items[idx+1:]...)
	s.doc[section] = remaining
	ts := s.bumpLocked()
	s.mu.Unlock()

	s.changed(section, ts)
	return nil
}

// ReorderEntities moves the element at from to position to. Only the
// floating cards collection can be reordered.
func (s *Store) ReorderEntities(section string, from, to int) error {
	if !portfolio.IsReorderable(section) {
		return fmt.Errorf("%s: %w", section, ErrNotReorderable)
	}

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	items, err := s.collectionLocked(section)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		s.mu.Unlock()
		return fmt.Errorf("move %d -> %d in %d items: %w", from, to, len(items), ErrIndexOutOfRange)
	}
	if from == to {
		s.mu.Unlock()
		return nil
	}

	moved := make([]any, 0, len(items))
	moved = append(moved, items[:from]...)
	moved = append(moved, items[from+1:]...)
	moved = append(moved[:to], append([]any{items[from]}, moved[to:]...)...)
	s.doc[section] = moved
	ts := s.bumpLocked()
	s.mu.Unlock()

	s.changed(section, ts)
	return nil
}

// UpdatePictureReference sets or clears the profile picture reference.
func (s *Store) UpdatePictureReference(ref *string) error {
	if ref == nil || *ref == "" {
		return s.ReplaceSection(portfolio.SectionProfilePicture, nil)
	}
	return s.ReplaceSection(portfolio.SectionProfilePicture, *ref)
}

// UpdateFloatingCards replaces the floating cards collection.
func (s *Store) UpdateFloatingCards(cards []portfolio.Entity) error {
	if cards == nil {
		cards = []portfolio.Entity{}
	}
	return s.ReplaceSection(portfolio.SectionFloatingCards, cards)
}

// ExportSnapshot returns the full document as indented JSON.
func (s *Store) ExportSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	return s.doc.EncodeIndent()
}

// ImportSnapshot replaces the document with the JSON object read from r.
// Only the top-level shape is checked; sections are not validated.
func (s *Store) ImportSnapshot(r io.Reader) error {
	doc, err := portfolio.Decode(r)
	if err != nil {
		msg := "input is not a JSON object"
		var de *portfolio.DecodeError
		if errors.As(err, &de) {
			msg = de.Message
		}
		return &ImportValidationError{Message: msg, Cause: err}
	}

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.doc = doc
	ts := s.bumpLocked()
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[STORE] Imported portfolio with %d sections", len(doc))
	}
	s.changed("", ts)
	return nil
}

// ResetToDefault installs the compiled-in default document and removes both
// durable keys. The default is not written back until the next mutation or
// Flush.
func (s *Store) ResetToDefault(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if err := s.checkWritableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.doc = portfolio.Default()
	ts := s.bumpLocked()
	s.persisted = s.version
	s.mu.Unlock()

	var firstErr error
	for _, key := range []string{persistence.KeySnapshot, persistence.KeyLastUpdated} {
		if err := s.port.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = &PersistError{Key: key, Cause: err}
		}
	}
	if firstErr != nil {
		log.Printf("[STORE] Failed to clear stored portfolio: %v", firstErr)
	}

	s.subs.emit(Event{Type: EventReset, LastUpdated: ts})
	return firstErr
}

// collectionLocked returns the raw items of a collection section. A missing
// or null section reads as empty. Callers hold s.mu.
func (s *Store) collectionLocked(section string) ([]any, error) {
	if strings.TrimSpace(section) == "" {
		return nil, ErrInvalidSection
	}
	v, ok := s.doc[section]
	if !ok || v == nil {
		return []any{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: %w", section, ErrNotCollection)
	}
	return items, nil
}

// toEntity normalizes item to plain JSON values so stored entities compare
// equal to the same entity decoded from a snapshot.
func toEntity(section string, item any) (portfolio.Entity, error) {
	norm, err := portfolio.Normalize(item)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", section, err)
	}
	entity, err := portfolio.EntityFrom(norm)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", section, err)
	}
	return entity, nil
}

// checkCollection verifies that every item of a replacement collection is
// an object with an id and that no two ids share a key.
func checkCollection(section string, v any) error {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s: %w", section, ErrNotCollection)
	}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return fmt.Errorf("%s[%d]: %w", section, i, ErrInvalidEntity)
		}
		key := portfolio.IDKey(m["id"])
		if key == "" {
			return fmt.Errorf("%s[%d]: %w", section, i, ErrInvalidEntity)
		}
		if seen[key] {
			return fmt.Errorf("%s[%d] id %s: %w", section, i, key, ErrDuplicateID)
		}
		seen[key] = true
	}
	return nil
}

func indexOf(items []any, key string) int {
	if key == "" {
		return -1
	}
	for i, it := range items {
		if m, ok := it.(map[string]any); ok && portfolio.IDKey(m["id"]) == key {
			return i
		}
	}
	return -1
}

func (s *Store) changed(section string, ts int64) {
	s.schedulePersist()
	s.subs.emit(Event{Type: EventChanged, Section: section, LastUpdated: ts})
}
