package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-angle-studio/internal/camera"
)

func TestLedger_RecordKeepsMostRecent(t *testing.T) {
	l := NewLedger(Options{})
	n := l.Capacity()
	require.Equal(t, DefaultCapacity, n)

	for i := 0; i < n+5; i++ {
		l.Record(Result{ID: fmt.Sprintf("r%d", i)})
	}

	items := l.List()
	require.Len(t, items, n)
	assert.Equal(t, fmt.Sprintf("r%d", n+4), items[0].ID)
	assert.Equal(t, "r5", items[n-1].ID)

	_, err := l.Select("r0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_SelectIsReadOnly(t *testing.T) {
	l := NewLedger(Options{Capacity: 3})
	l.Record(Result{ID: "a", Camera: camera.State{Rotate: 45}})
	l.Record(Result{ID: "b"})

	got, err := l.Select("a")
	require.NoError(t, err)
	assert.Equal(t, 45.0, got.Camera.Rotate)
	assert.Equal(t, 2, l.Len())

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, "b", latest.ID)
}

func TestLedger_ListIsACopy(t *testing.T) {
	l := NewLedger(Options{})
	l.Record(Result{ID: "a"})

	items := l.List()
	items[0].ID = "mutated"

	_, err := l.Select("a")
	assert.NoError(t, err)
}

func TestLedger_Clear(t *testing.T) {
	l := NewLedger(Options{})
	l.Record(Result{ID: "a"})
	l.Clear()

	assert.Zero(t, l.Len())
	_, ok := l.Latest()
	assert.False(t, ok)
}
