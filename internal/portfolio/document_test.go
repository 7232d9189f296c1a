package portfolio

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsFullyPopulated(t *testing.T) {
	doc := Default()

	for _, name := range CollectionSections {
		assert.True(t, doc.Has(name), "default document should contain %s", name)
	}
	for _, name := range RecordSections {
		assert.True(t, doc.Has(name), "default document should contain %s", name)
	}
	assert.True(t, doc.Has(SectionProfilePicture))
	assert.Nil(t, doc.ProfilePicture())
	assert.NotEmpty(t, doc.DisplayName())
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	a := Default()
	b := Default()

	a[SectionPersonal].(map[string]any)["name"] = "changed"
	assert.NotEqual(t, "changed", b.DisplayName())
}

func TestDecode_RejectsNonObjects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array", `[1,2,3]`},
		{"string", `"hello"`},
		{"number", `42`},
		{"null", `null`},
		{"invalid", `{not json`},
		{"trailing garbage", `{"personal":{"name":"X"}} this is not json`},
		{"two objects", `{"a":1}{"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			var decErr *DecodeError
			assert.ErrorAs(t, err, &decErr)
		})
	}
}

func TestDecode_AllowsTrailingWhitespace(t *testing.T) {
	doc, err := Decode(strings.NewReader("{\"a\":1}\n\t "))
	require.NoError(t, err)
	assert.True(t, doc.Has("a"))
}

func TestDecode_KeepsNumbersExact(t *testing.T) {
	doc, err := DecodeBytes([]byte(`{"projects":[{"id":1700000000000123,"title":"x"}]}`))
	require.NoError(t, err)

	items := doc.Collection(SectionProjects)
	require.Len(t, items, 1)
	assert.Equal(t, json.Number("1700000000000123"), items[0].ID())

	out, err := doc.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(out), "1700000000000123")
}

func TestAccessors_DefaultMissingSections(t *testing.T) {
	doc, err := DecodeBytes([]byte(`{"personal":{"name":"X"}}`))
	require.NoError(t, err)

	assert.False(t, doc.Has(SectionProjects))
	assert.Equal(t, []Entity{}, doc.Collection(SectionProjects))
	assert.Equal(t, map[string]any{}, doc.Record(SectionContact))
	assert.Nil(t, doc.ProfilePicture())
	assert.Equal(t, "X", doc.DisplayName())

	resume, err := doc.Resume()
	require.NoError(t, err)
	assert.Empty(t, resume.Sections)
}

func TestAccessors_MalformedSectionsReadAsEmpty(t *testing.T) {
	doc := Document{
		SectionTools:    "not a list",
		SectionContact:  []any{"not", "a", "record"},
		SectionProjects: []any{"skip me", map[string]any{"id": json.Number("1")}},
	}

	assert.Empty(t, doc.Collection(SectionTools))
	assert.Empty(t, doc.Record(SectionContact))
	assert.Len(t, doc.Collection(SectionProjects), 1)
}

func TestClone_IsDeep(t *testing.T) {
	doc := Document{
		SectionTools: []any{map[string]any{"id": json.Number("1"), "tags": []any{"a"}}},
	}
	cp := doc.Clone()

	cp[SectionTools].([]any)[0].(map[string]any)["tags"].([]any)[0] = "b"
	original := doc[SectionTools].([]any)[0].(map[string]any)["tags"].([]any)[0]
	assert.Equal(t, "a", original)
}

func TestIDKey(t *testing.T) {
	tests := []struct {
		name string
		id   any
		want string
	}{
		{"json number", json.Number("1700000000000"), "1700000000000"},
		{"float", float64(1700000000000), "1700000000000"},
		{"int64", int64(1700000000000), "1700000000000"},
		{"int", 42, "42"},
		{"string", " 42 ", "42"},
		{"nil", nil, ""},
		{"fractional", 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IDKey(tt.id))
		})
	}
}

func TestEntityFrom_Struct(t *testing.T) {
	e, err := EntityFrom(struct {
		Name string `json:"name"`
	}{Name: "Go"})
	require.NoError(t, err)
	assert.Equal(t, "Go", e["name"])

	_, err = EntityFrom([]string{"nope"})
	assert.Error(t, err)
}

func TestIsReorderable(t *testing.T) {
	assert.True(t, IsReorderable(SectionFloatingCards))
	assert.False(t, IsReorderable(SectionProjects))
	assert.True(t, IsCollection(SectionBlogs))
	assert.False(t, IsCollection(SectionPersonal))
}
