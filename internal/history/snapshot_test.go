package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_LastWriteWins(t *testing.T) {
	s := New()
	_, ok := s.Snapshot("scene.index")
	assert.False(t, ok)

	s.SetSnapshot("scene.index", 1)
	s.SetSnapshot("scene.index", 4)

	v, ok := s.Snapshot("scene.index")
	assert.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestSnapshot_Delete(t *testing.T) {
	s := New()
	s.SetSnapshot("k", "v")
	s.DeleteSnapshot("k")
	_, ok := s.Snapshot("k")
	assert.False(t, ok)
}

func TestRestore_NotifiesCurrentOwner(t *testing.T) {
	s := New()
	var first, second []any
	releaseFirst := s.Claim("k", func(v any) { first = append(first, v) })
	s.Claim("k", func(v any) { second = append(second, v) })

	// The stale release must not drop the newer owner.
	releaseFirst()

	s.Restore("k", 7)
	assert.Empty(t, first)
	assert.Equal(t, []any{7}, second)

	v, _ := s.Snapshot("k")
	assert.Equal(t, 7, v)
}

func TestRestore_WithoutOwner(t *testing.T) {
	s := New()
	release := s.Claim("k", func(any) { t.Fatal("released owner notified") })
	release()

	s.Restore("k", "x")
	v, ok := s.Snapshot("k")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestSetSnapshot_DoesNotNotify(t *testing.T) {
	s := New()
	s.Claim("k", func(any) { t.Fatal("SetSnapshot must not notify") })
	s.SetSnapshot("k", 1)
}
