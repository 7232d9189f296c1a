package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathan/portfolio-core/internal/fetch"
	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1700000000000)

func clock() time.Time { return fixedNow }

func seed(t *testing.T, p persistence.Port, snapshot, stamp string) {
	t.Helper()
	ctx := context.Background()
	if snapshot != "" {
		require.NoError(t, p.Set(ctx, persistence.KeySnapshot, snapshot))
	}
	if stamp != "" {
		require.NoError(t, p.Set(ctx, persistence.KeyLastUpdated, stamp))
	}
}

func manifestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoad_SnapshotWins(t *testing.T) {
	port := persistence.NewMemory()
	seed(t, port, `{"personal":{"name":"Stored"}}`, "1690000000000")
	server := manifestServer(t, http.StatusOK, `{"personal":{"name":"Remote"}}`)

	res := Standard(port, server.URL, nil, WithClock(clock)).Load(context.Background())

	assert.Equal(t, TierSnapshot, res.Tier)
	assert.Equal(t, "Stored", res.Document.DisplayName())
	assert.Equal(t, int64(1690000000000), res.LastUpdated)
	assert.Empty(t, res.Skipped)
}

func TestLoad_ManifestWhenNoSnapshot(t *testing.T) {
	port := persistence.NewMemory()
	server := manifestServer(t, http.StatusOK, `{"personal":{"name":"Remote"}}`)

	res := Standard(port, server.URL, nil, WithClock(clock)).Load(context.Background())

	assert.Equal(t, TierManifest, res.Tier)
	assert.Equal(t, "Remote", res.Document.DisplayName())
	assert.Equal(t, fixedNow.UnixMilli(), res.LastUpdated)
	require.Len(t, res.Skipped, 1)
}

func TestLoad_DefaultWhenEverythingFails(t *testing.T) {
	port := persistence.NewMemory()
	server := manifestServer(t, http.StatusInternalServerError, `oops`)

	res := Standard(port, server.URL, nil, WithClock(clock)).Load(context.Background())

	require.NotNil(t, res.Document)
	assert.Equal(t, TierDefault, res.Tier)
	assert.Equal(t, portfolio.Default(), res.Document)
	assert.Equal(t, fixedNow.UnixMilli(), res.LastUpdated)
	assert.Len(t, res.Skipped, 2)
	for _, err := range res.Skipped {
		var unavailable *UnavailableError
		assert.True(t, errors.As(err, &unavailable))
	}
}

func TestLoad_NoManifestConfigured(t *testing.T) {
	l := Standard(persistence.NewMemory(), "", nil)
	assert.Equal(t, []string{TierSnapshot, TierDefault}, l.Tiers())

	res := l.Load(context.Background())
	assert.Equal(t, TierDefault, res.Tier)
}

func TestSnapshotTier_Unavailable(t *testing.T) {
	tests := []struct {
		name     string
		snapshot string
		stamp    string
		message  string
	}{
		{name: "nothing stored", message: "no stored snapshot"},
		{name: "missing timestamp", snapshot: `{"a":1}`, message: "no stored timestamp"},
		{name: "missing snapshot", stamp: "1", message: "no stored snapshot"},
		{name: "bad timestamp", snapshot: `{"a":1}`, stamp: "yesterday", message: "invalid timestamp"},
		{name: "bad json", snapshot: `{"a":`, stamp: "1", message: "invalid snapshot"},
		{name: "not an object", snapshot: `[1,2]`, stamp: "1", message: "invalid snapshot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := persistence.NewMemory()
			seed(t, port, tt.snapshot, tt.stamp)

			_, err := (&SnapshotTier{Port: port}).Load(context.Background())
			require.Error(t, err)

			var unavailable *UnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, TierSnapshot, unavailable.Tier)
			assert.Equal(t, tt.message, unavailable.Message)
		})
	}
}

func TestSnapshotTier_ReadError(t *testing.T) {
	port := persistence.NewMemory()
	require.NoError(t, port.Close())

	_, err := (&SnapshotTier{Port: port}).Load(context.Background())
	assert.ErrorIs(t, err, persistence.ErrClosed)
}

func TestManifestTier_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "array", body: `[]`},
		{name: "garbage", body: `<html>`},
		{name: "trailing data", body: `{"personal":{}} {"extra":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := manifestServer(t, http.StatusOK, tt.body)
			_, err := (&ManifestTier{URL: server.URL}).Load(context.Background())
			require.Error(t, err)
		})
	}
}

func TestManifestTier_AcceptsSchemaViolations(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"projects":[{"title":"no id"}]}`)
	out, err := (&ManifestTier{URL: server.URL, Now: clock}).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.Document.Collection(portfolio.SectionProjects), 1)
}

func TestManifestTier_ValidateSchema(t *testing.T) {
	server := manifestServer(t, http.StatusOK, `{"projects":[{"title":"no id"}]}`)
	_, err := (&ManifestTier{URL: server.URL, ValidateSchema: true, Now: clock}).Load(context.Background())

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "manifest failed schema validation", unavailable.Message)
}

func TestStandard_SchemaInvalidManifestWins(t *testing.T) {
	server := manifestServer(t, http.StatusOK,
		`{"personal":{"name":"Remote","phone":5551234},"technologies":[{"name":"Go"}]}`)

	res := Standard(persistence.NewMemory(), server.URL, nil, WithClock(clock)).Load(context.Background())
	assert.Equal(t, TierManifest, res.Tier)
	assert.Equal(t, "Remote", res.Document.DisplayName())
	assert.Len(t, res.Skipped, 1)

	res = Standard(persistence.NewMemory(), server.URL, nil, WithClock(clock), WithValidateManifest(true)).Load(context.Background())
	assert.Equal(t, TierDefault, res.Tier)
}

func TestManifestTier_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, portfolio.DefaultJSON(), 0o644))

	out, err := (&ManifestTier{URL: fetch.FileURL(path), Now: clock}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, portfolio.Default(), out.Document)
	assert.Equal(t, fixedNow.UnixMilli(), out.LastUpdated)
}

type stubTier struct {
	name  string
	calls int
	out   *Outcome
	err   error
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Load(context.Context) (*Outcome, error) {
	s.calls++
	return s.out, s.err
}

func TestLoad_StopsAtFirstSuccess(t *testing.T) {
	first := &stubTier{name: "first", err: errors.New("down")}
	second := &stubTier{name: "second", out: &Outcome{Document: portfolio.Document{"about": map[string]any{}}, LastUpdated: 7}}
	third := &stubTier{name: "third", out: &Outcome{Document: portfolio.Document{}}}

	res := New([]Tier{first, second, third}).Load(context.Background())

	assert.Equal(t, "second", res.Tier)
	assert.Equal(t, int64(7), res.LastUpdated)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)
}

func TestLoad_NilOutcomeFallsThrough(t *testing.T) {
	empty := &stubTier{name: "empty"}
	res := New([]Tier{empty}, WithClock(clock)).Load(context.Background())
	assert.Equal(t, TierDefault, res.Tier)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0].Error(), "no document")
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tier := &stubTier{name: "never", out: &Outcome{Document: portfolio.Document{}}}
	res := New([]Tier{tier}).Load(ctx)

	assert.Equal(t, TierDefault, res.Tier)
	assert.Equal(t, 0, tier.calls)
}
