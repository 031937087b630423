package tracked

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/history"
)

func goBack(t *testing.T, s *history.Store) {
	t.Helper()
	ok, err := s.GoBack(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCell_InitialValue(t *testing.T) {
	s := history.New()
	c := New(s, "count", 3)
	assert.Equal(t, 3, c.Get())
	assert.Equal(t, "count", c.Key())
	assert.True(t, c.Mounted())
}

func TestCell_RoundTripAcrossRemount(t *testing.T) {
	s := history.New()
	c := New(s, "scene.index", 0)
	c.Set(5)
	c.Unmount()

	again := New(s, "scene.index", 0)
	assert.Equal(t, 5, again.Get())
}

func TestCell_SetEqualValueIsNoop(t *testing.T) {
	s := history.New()
	c := New(s, "k", "a")
	c.Set("b")
	require.Equal(t, 1, s.Len())

	assert.False(t, c.Set("b"))
	assert.Equal(t, 1, s.Len())
}

func TestCell_SetEqualDoesNotWriteSnapshot(t *testing.T) {
	s := history.New()
	c := New(s, "k", "a")
	c.Set("a")
	_, ok := s.Snapshot("k")
	assert.False(t, ok)
}

func TestCell_UndoRestoresLiveValue(t *testing.T) {
	s := history.New()
	c := New(s, "k", 1)
	var seen [][2]int
	c.OnChange(func(prev, next int) { seen = append(seen, [2]int{prev, next}) })

	c.Set(2)
	c.Set(3)
	goBack(t, s)

	assert.Equal(t, 2, c.Get())
	v, _ := s.Snapshot("k")
	assert.Equal(t, 2, v)
	assert.Equal(t, [][2]int{{1, 2}, {2, 3}, {3, 2}}, seen)
	assert.Equal(t, 1, s.Len(), "restoration must not record")
}

func TestCell_UndoAfterRemountReachesNewOwner(t *testing.T) {
	s := history.New()
	c := New(s, "k", 1)
	c.Set(2)
	c.Unmount()

	again := New(s, "k", 0)
	require.Equal(t, 2, again.Get())

	goBack(t, s)
	assert.Equal(t, 1, again.Get())
}

func TestCell_UndoWhileUnmountedUpdatesSnapshotOnly(t *testing.T) {
	s := history.New()
	c := New(s, "k", "x")
	c.Set("y")
	c.Unmount()

	goBack(t, s)
	assert.Equal(t, "y", c.Get(), "unmounted cell keeps its value")
	v, _ := s.Snapshot("k")
	assert.Equal(t, "x", v)

	assert.Equal(t, "x", New(s, "k", "").Get())
}

func TestCell_WithoutRecord(t *testing.T) {
	s := history.New()
	c := New(s, "k", 0)
	assert.True(t, c.Set(1, WithoutRecord()))
	assert.Equal(t, 0, s.Len())
	v, _ := s.Snapshot("k")
	assert.Equal(t, 1, v)
}

func TestCell_Label(t *testing.T) {
	s := history.New()
	c := New(s, "k", 0)
	c.Set(1, WithLabel("bump"))
	c.Set(2)
	entries := s.Entries()
	assert.Equal(t, "bump", entries[0].Label)
	assert.Equal(t, "k", entries[1].Label)
}

func TestCell_Update(t *testing.T) {
	s := history.New()
	c := New(s, "k", 10)
	c.Update(func(v int) int { return v + 5 })
	assert.Equal(t, 15, c.Get())
}

func TestCell_SnapshotTypeMismatchFallsBack(t *testing.T) {
	s := history.New()
	s.SetSnapshot("k", "not an int")
	c := New(s, "k", 7)
	assert.Equal(t, 7, c.Get())
}

func TestCell_UnmountIdempotent(t *testing.T) {
	s := history.New()
	c := New(s, "k", 1)
	c.Unmount()
	c.Unmount()
	assert.False(t, c.Mounted())
}

func TestCell_SuspendedWritesNotRecorded(t *testing.T) {
	s := history.New()
	c := New(s, "k", 0)
	s.SuspendRecording(func() {
		c.Set(9)
	})
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 9, c.Get())
}
