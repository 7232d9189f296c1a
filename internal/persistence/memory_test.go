package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func TestMemoryPort_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()

	_, ok, err := p.Get(ctx, KeySnapshot)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, KeySnapshot, `{"a":1}`))
	v, ok, err := p.Get(ctx, KeySnapshot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, v)

	require.NoError(t, p.Remove(ctx, KeySnapshot))
	_, ok, err = p.Get(ctx, KeySnapshot)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPort_NotifiesPeersOnly(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	tabA := backend.Open()
	tabB := backend.Open()

	var seenA, seenB recorder
	tabA.OnExternalChange(seenA.record)
	tabB.OnExternalChange(seenB.record)

	require.NoError(t, tabA.Set(ctx, KeySnapshot, "v1"))
	require.NoError(t, tabA.Remove(ctx, KeySnapshot))

	assert.Empty(t, seenA.all(), "writer must not see its own changes")
	assert.Equal(t, []Change{
		{Key: KeySnapshot, Value: "v1"},
		{Key: KeySnapshot, Removed: true},
	}, seenB.all())
}

func TestMemoryPort_UnchangedValueIsSilent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	tabA := backend.Open()
	tabB := backend.Open()

	var seen recorder
	tabB.OnExternalChange(seen.record)

	require.NoError(t, tabA.Set(ctx, "k", "same"))
	require.NoError(t, tabA.Set(ctx, "k", "same"))
	require.NoError(t, tabA.Remove(ctx, "missing"))

	assert.Len(t, seen.all(), 1)
}

func TestMemoryPort_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	tabA := backend.Open()
	tabB := backend.Open()

	var seen recorder
	unsubscribe := tabB.OnExternalChange(seen.record)
	unsubscribe()
	unsubscribe()

	require.NoError(t, tabA.Set(ctx, "k", "v"))
	assert.Empty(t, seen.all())
}

func TestMemoryPort_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()
	p.Backend().SetQuota(16)

	err := p.Set(ctx, "k", "this value is far too long")
	require.Error(t, err)

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "k", writeErr.Key)

	var quotaErr *QuotaExceededError
	assert.True(t, errors.As(err, &quotaErr))

	_, ok, _ := p.Get(ctx, "k")
	assert.False(t, ok, "rejected write must not be stored")
}

func TestMemoryPort_Closed(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()
	require.NoError(t, p.Close())

	_, _, err := p.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Set(ctx, "k", "v"), ErrClosed)
	assert.ErrorIs(t, p.Remove(ctx, "k"), ErrClosed)
}
