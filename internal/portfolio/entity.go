package portfolio

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Entity is a member of a collection section: a record with a unique "id".
type Entity map[string]any

// ID returns the raw id value, or nil.
func (e Entity) ID() any {
	return e["id"]
}

// Key returns the canonical form of the entity's id.
func (e Entity) Key() string {
	return IDKey(e["id"])
}

// IDKey returns a canonical string for an id value so that the JSON number
// 42, the string "42" and the int64 42 all compare equal.
// A nil id yields an empty key.
func IDKey(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return canonicalNumber(string(v))
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func canonicalNumber(s string) string {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return IDKey(f)
	}
	return s
}

// Raw returns the entity as a plain map suitable for storage in a Document.
func (e Entity) Raw() map[string]any {
	return map[string]any(e)
}

// EntityFrom converts any JSON-shaped value into an Entity.
func EntityFrom(v any) (Entity, error) {
	switch t := v.(type) {
	case Entity:
		return Entity(cloneMap(t)), nil
	case map[string]any:
		return Entity(cloneMap(t)), nil
	}

	norm, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	m, ok := norm.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entity must be an object, got %s", jsonKind(norm))
	}
	return Entity(m), nil
}
