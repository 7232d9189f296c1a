package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jonathan/portfolio-core/internal/persistence"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foreignDocument = `{"personal":{"name":"Other Tab"},"projects":[{"id":5,"title":"Shared"}]}`

func TestSync_ForeignWriteReplacesDocument(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	other := backend.Open()
	s := newLoaded(t, backend.Open(), portfolio.Default(), clock)

	var events eventLog
	s.Subscribe(events.record)
	clock.Advance(time.Second)

	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, foreignDocument))

	assert.Equal(t, mustDecode(t, foreignDocument), s.Document())
	assert.Equal(t, clock.Now().UnixMilli(), s.LastUpdated())
	assert.Equal(t, []EventType{EventSynced}, events.types())
}

func TestSync_TwoStoresConverge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	a := newLoaded(t, backend.Open(), portfolio.Default(), clock)
	b := newLoaded(t, backend.Open(), portfolio.Default(), clock)

	_, err := a.AddEntity(portfolio.SectionTechnologies, map[string]any{"name": "Go", "category": "language"})
	require.NoError(t, err)
	require.NoError(t, a.RemoveEntity(portfolio.SectionTools, a.Collection(portfolio.SectionTools)[0].ID()))
	require.NoError(t, a.Flush(ctx))

	assert.Equal(t, a.Document(), b.Document())
}

func TestSync_ForeignStateIsNotPersistedAgain(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	other := backend.Open()
	port := &countingPort{Port: backend.Open()}
	s := newLoaded(t, port, portfolio.Default(), clock)

	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, foreignDocument))
	require.Equal(t, "Other Tab", s.Document().DisplayName())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), port.sets.Load())
	raw, _ := backend.Value(persistence.KeySnapshot)
	assert.Equal(t, foreignDocument, raw)
}

func TestSync_IgnoresInvalidForeignValues(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	other := backend.Open()
	s := newLoaded(t, backend.Open(), portfolio.Default(), clock)
	before := s.LastUpdated()

	var events eventLog
	s.Subscribe(events.record)

	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, `{"broken":`))
	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, `[1,2,3]`))
	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, ``))
	require.NoError(t, other.Remove(ctx, persistence.KeySnapshot))
	require.NoError(t, other.Set(ctx, persistence.KeyLastUpdated, "1800000000000"))

	assert.Equal(t, portfolio.Default(), s.Document())
	assert.Equal(t, before, s.LastUpdated())
	assert.Empty(t, events.types())
}

func TestSync_LastUpdatedNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	other := backend.Open()
	s := newLoaded(t, backend.Open(), mustDecode(t, `{}`), clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.ReplaceSection(portfolio.SectionAbout, map[string]any{"i": i}))
	}
	before := s.LastUpdated()
	require.Greater(t, before, clock.Now().UnixMilli())

	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, foreignDocument))
	assert.Equal(t, before, s.LastUpdated())
}

func TestSync_ConflictWhenLocalChangesAreUnsaved(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	other := backend.Open()
	gated := newGatedPort(backend.Open())
	s := New(gated, staticLoader{res: loaderResult(portfolio.Default())}, WithClock(clock.Now))
	require.NoError(t, s.Load(ctx))

	var events eventLog
	s.Subscribe(events.record)

	require.NoError(t, s.ReplaceSection(portfolio.SectionAbout, map[string]any{"title": "local draft"}))
	localStamp := s.LastUpdated()
	<-gated.entered // background write is in flight and blocked

	clock.Advance(time.Second)
	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, foreignDocument))

	assert.Equal(t, mustDecode(t, foreignDocument), s.Document())
	assert.Equal(t, []EventType{EventChanged, EventConflict, EventSynced}, events.types())
	conflict, _ := events.find(EventConflict)
	assert.Equal(t, localStamp, conflict.Discarded)

	gated.open()
	require.NoError(t, s.Close(ctx))
}

func TestSync_ForeignWriteDuringPersistIsWrittenBack(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1700000000000)
	backend := persistence.NewMemoryBackend()
	other := backend.Open()
	gated := newGatedPort(backend.Open())
	s := New(gated, staticLoader{res: loaderResult(portfolio.Default())}, WithClock(clock.Now))
	require.NoError(t, s.Load(ctx))
	t.Cleanup(func() { _ = s.Close(ctx) })

	require.NoError(t, s.ReplaceSection(portfolio.SectionAbout, map[string]any{"title": "local draft"}))
	<-gated.entered // stale snapshot write is blocked

	clock.Advance(time.Second)
	require.NoError(t, other.Set(ctx, persistence.KeySnapshot, foreignDocument))
	require.Equal(t, "Other Tab", s.Document().DisplayName())

	gated.open()
	for i := 0; i < 2; i++ {
		select {
		case <-gated.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("persister did not write the adopted document back")
		}
	}

	want := mustDecode(t, foreignDocument)
	require.Eventually(t, func() bool {
		raw, _ := backend.Value(persistence.KeySnapshot)
		stamp, _ := backend.Value(persistence.KeyLastUpdated)
		doc, err := portfolio.DecodeBytes([]byte(raw))
		return err == nil && assert.ObjectsAreEqual(want, doc) &&
			stamp == strconv.FormatInt(s.LastUpdated(), 10)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, s.Document())
}
