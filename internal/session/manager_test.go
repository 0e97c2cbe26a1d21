package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_ReturnsUniqueIDsWithFreshMetadata(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)

	id1 := m.Create()
	id2 := m.Create()
	assert.NotEqual(t, id1, id2)

	md, ok := m.Metadata(id1)
	require.True(t, ok)
	assert.Equal(t, 0, md.ExecutionCount)
	assert.False(t, md.Initialized)
	assert.WithinDuration(t, md.CreatedAt, md.LastUsedAt, time.Millisecond)
}

func TestExists_TrueOnlyForLiveSessions(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id := m.Create()

	assert.True(t, m.Exists(id))
	assert.False(t, m.Exists("nonexistent"))

	m.Remove(id)
	assert.False(t, m.Exists(id))
}

func TestTouch_UpdatesLastUsedAtMonotonically(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id := m.Create()

	md1, _ := m.Metadata(id)
	time.Sleep(2 * time.Millisecond)
	assert.True(t, m.Touch(id))
	md2, _ := m.Metadata(id)

	assert.True(t, md2.LastUsedAt.After(md1.LastUsedAt))
	assert.False(t, m.Touch("nonexistent"))
}

func TestRemove_IsIdempotent(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id := m.Create()

	assert.True(t, m.Remove(id))
	assert.False(t, m.Remove(id))
}

func TestSweep_RemovesOnlyExpiredSessions(t *testing.T) {
	m := NewManager(10*time.Millisecond, time.Hour, false)
	expired := m.Create()
	time.Sleep(20 * time.Millisecond)
	fresh := m.Create()

	removed := m.Sweep()
	assert.Equal(t, 1, removed)
	assert.False(t, m.Exists(expired))
	assert.True(t, m.Exists(fresh))
}

func TestSweep_SkipsSessionWithExecutionInFlight(t *testing.T) {
	m := NewManager(1*time.Millisecond, time.Hour, false)
	id := m.Create()
	time.Sleep(5 * time.Millisecond)

	s, ok := m.Get(id)
	require.True(t, ok)
	s.Lock() // simulate an in-flight execution holding the session lock
	defer s.Unlock()

	removed := m.Sweep()
	assert.Equal(t, 0, removed)
	assert.True(t, m.Exists(id))
}

func TestActiveIDs_SnapshotsAllLiveSessions(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id1 := m.Create()
	id2 := m.Create()

	ids := m.ActiveIDs()
	assert.ElementsMatch(t, []string{id1, id2}, ids)
}

func TestAttachArtifactPaths_Deduplicates(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id := m.Create()

	s, ok := m.Get(id)
	require.True(t, ok)
	s.Lock()
	s.AttachArtifactPaths("/a.dll", "/b.dll")
	s.AttachArtifactPaths("/b.dll", "/c.dll")
	paths := s.AttachedArtifactPaths()
	s.Unlock()

	assert.Equal(t, []string{"/a.dll", "/b.dll", "/c.dll"}, paths)
}

func TestRecordSuccess_IncrementsCountAndSetsInitialized(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id := m.Create()

	s, ok := m.Get(id)
	require.True(t, ok)
	s.Lock()
	s.RecordSuccess(time.Now())
	s.RecordSuccess(time.Now())
	s.Unlock()

	md, _ := m.Metadata(id)
	assert.Equal(t, 2, md.ExecutionCount)
	assert.True(t, md.Initialized)
}

func TestAppendHistory_AccumulatesInOrder(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, false)
	id := m.Create()

	s, ok := m.Get(id)
	require.True(t, ok)
	s.Lock()
	assert.Empty(t, s.History())
	s.AppendHistory("int x = 10;")
	s.AppendHistory("x + 5")
	history := s.History()
	s.Unlock()

	assert.Equal(t, []string{"int x = 10;", "x + 5"}, history)
}
