package persistence

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePort_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	p, err := NewFile(t.TempDir(), false)
	require.NoError(t, err)
	defer p.Close()

	_, ok, err := p.Get(ctx, KeyLastUpdated)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, KeyLastUpdated, "1700000000000"))
	v, ok, err := p.Get(ctx, KeyLastUpdated)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1700000000000", v)

	require.NoError(t, p.Remove(ctx, KeyLastUpdated))
	require.NoError(t, p.Remove(ctx, KeyLastUpdated), "removing twice is fine")
	_, ok, err = p.Get(ctx, KeyLastUpdated)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilePort_EmptyDir(t *testing.T) {
	_, err := NewFile("", false)
	assert.Error(t, err)
}

func TestFilePort_ObservesOtherPorts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer, err := NewFile(dir, false)
	require.NoError(t, err)
	defer writer.Close()

	reader, err := NewFile(dir, false)
	require.NoError(t, err)
	defer reader.Close()

	var seenByReader, seenByWriter recorder
	reader.OnExternalChange(seenByReader.record)
	writer.OnExternalChange(seenByWriter.record)

	require.NoError(t, writer.Set(ctx, KeySnapshot, `{"personal":{"name":"B"}}`))

	require.Eventually(t, func() bool {
		for _, c := range seenByReader.all() {
			if c.Key == KeySnapshot && c.Value == `{"personal":{"name":"B"}}` {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// Give the writer's own watcher time to deliver (and drop) its echo.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, seenByWriter.all())
}

func TestFilePort_ObservesForeignProcessWrite(t *testing.T) {
	dir := t.TempDir()
	p, err := NewFile(dir, false)
	require.NoError(t, err)
	defer p.Close()

	var seen recorder
	p.OnExternalChange(seen.record)

	path := filepath.Join(dir, url.PathEscape(KeySnapshot)+fileExt)
	require.NoError(t, os.WriteFile(path, []byte(`{"x":1}`), 0o644))

	require.Eventually(t, func() bool {
		for _, c := range seen.all() {
			if c.Value == `{"x":1}` {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		for _, c := range seen.all() {
			if c.Removed {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFilePort_IgnoresUnrelatedFiles(t *testing.T) {
	p, err := NewFile(t.TempDir(), false)
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.keyFor("/tmp/notes.txt")
	assert.False(t, ok)
	_, ok = p.keyFor("/tmp/.tmp-123")
	assert.False(t, ok)
	key, ok := p.keyFor(p.path("a/b c"))
	assert.True(t, ok)
	assert.Equal(t, "a/b c", key)
}
