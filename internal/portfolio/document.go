// Package portfolio defines the portfolio document model and its section accessors.
package portfolio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Section names used by the portfolio document.
const (
	SectionPersonal        = "personal"
	SectionAbout           = "about"
	SectionAboutContent    = "aboutContent"
	SectionContact         = "contact"
	SectionProfilePicture  = "profilePicture"
	SectionResume          = "resume"
	SectionTechnologies    = "technologies"
	SectionTools           = "tools"
	SectionCertifications  = "certifications"
	SectionLearningJourney = "learningJourney"
	SectionProjects        = "projects"
	SectionBlogs           = "blogs"
	SectionFloatingCards   = "floatingCards"
)

// CollectionSections lists the sections holding ordered entity collections.
var CollectionSections = []string{
	SectionTechnologies,
	SectionTools,
	SectionCertifications,
	SectionLearningJourney,
	SectionProjects,
	SectionBlogs,
	SectionFloatingCards,
}

// RecordSections lists the sections holding flat or nested records.
var RecordSections = []string{
	SectionPersonal,
	SectionAbout,
	SectionAboutContent,
	SectionContact,
	SectionResume,
}

// IsCollection reports whether name is one of the known collection sections.
func IsCollection(name string) bool {
	for _, s := range CollectionSections {
		if s == name {
			return true
		}
	}
	return false
}

// IsReorderable reports whether the section supports explicit reordering.
// Only the floating cards shown on the home page can be reordered.
func IsReorderable(name string) bool {
	return name == SectionFloatingCards
}

// Document is the portfolio aggregate: section name -> decoded JSON value.
// Numbers are kept as json.Number so that ids round-trip exactly.
// Sections missing from the map stay missing; use the accessors to read
// them with defaults.
type Document map[string]any

// Decode parses a JSON object into a Document.
// It returns a *DecodeError when the input is not valid JSON, the top-level
// value is not an object, or anything but whitespace follows it.
func Decode(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &DecodeError{Message: "invalid JSON", Cause: err}
	}

	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil, &DecodeError{Message: fmt.Sprintf("expected a JSON object, got %s", jsonKind(raw))}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Message: "unexpected data after JSON object", Cause: err}
	}

	return Document(obj), nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (Document, error) {
	return Decode(bytes.NewReader(data))
}

// Encode serializes the document as compact JSON.
func (d Document) Encode() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

// EncodeIndent serializes the document as two-space indented JSON.
func (d Document) EncodeIndent() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.MarshalIndent(map[string]any(d), "", "  ")
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

// Has reports whether the section is present at the document level.
func (d Document) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Collection returns a copy of the named collection.
// Absent or malformed sections read as an empty collection; non-object
// elements are skipped.
func (d Document) Collection(name string) []Entity {
	items, ok := d[name].([]any)
	if !ok {
		return []Entity{}
	}

	out := make([]Entity, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Entity(cloneMap(m)))
		}
	}
	return out
}

// Record returns a copy of the named record section, or an empty record.
func (d Document) Record(name string) map[string]any {
	m, ok := d[name].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return cloneMap(m)
}

// ProfilePicture returns the profile picture reference, or nil if unset.
func (d Document) ProfilePicture() *string {
	ref, ok := d[SectionProfilePicture].(string)
	if !ok || ref == "" {
		return nil
	}
	return &ref
}

// DisplayName returns personal.name, or an empty string.
func (d Document) DisplayName() string {
	name, _ := d.Record(SectionPersonal)["name"].(string)
	return name
}

// Normalize converts arbitrary Go values (structs, typed slices, ints) into
// the plain JSON shapes a Document stores.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

// DecodeError represents input that could not be read as a portfolio document.
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("decode error: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Entity:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	return cloneValue(v)
}
