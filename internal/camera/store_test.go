package camera

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpdateClamps(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  State
	}{
		{"rotate upper bound", Patch{Rotate: Float(999)}, State{Rotate: 90}},
		{"rotate lower bound", Patch{Rotate: Float(-400)}, State{Rotate: -90}},
		{"forward lower bound", Patch{Forward: Float(-5)}, State{Forward: 0}},
		{"forward upper bound", Patch{Forward: Float(42)}, State{Forward: 10}},
		{"tilt bounds", Patch{Tilt: Float(3)}, State{Tilt: 1}},
		{"nan becomes zero", Patch{Rotate: Float(math.NaN())}, State{}},
		{"inf clamps", Patch{Forward: Float(math.Inf(1))}, State{Forward: 10}},
		{"booleans pass through", Patch{WideAngle: Bool(true), Floating: Bool(true)}, State{WideAngle: true, Floating: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(Options{})
			got := s.Update(tt.patch)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, s.Current())
		})
	}
}

func TestStore_PartialUpdateKeepsOtherFields(t *testing.T) {
	s := NewStore(Options{})
	s.Update(Patch{Rotate: Float(30), WideAngle: Bool(true)})
	got := s.Update(Patch{Tilt: Float(-0.5)})

	assert.Equal(t, State{Rotate: 30, Tilt: -0.5, WideAngle: true}, got)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(Options{})
	s.Update(Patch{Rotate: Float(45), Forward: Float(4), Floating: Bool(true)})

	assert.Equal(t, Default(), s.Reset())
	assert.True(t, s.Current().IsDefault())
}

func TestStore_UndoRedo(t *testing.T) {
	t.Run("undo restores the pre-update state exactly", func(t *testing.T) {
		s := NewStore(Options{})
		s.Update(Patch{Rotate: Float(20)})
		before := s.Current()
		after := s.Update(Patch{Forward: Float(5.5), Tilt: Float(0.25)})

		got, ok := s.Undo()
		require.True(t, ok)
		assert.Equal(t, before, got)

		got, ok = s.Redo()
		require.True(t, ok)
		assert.Equal(t, after, got)
	})

	t.Run("no-op update is not recorded", func(t *testing.T) {
		s := NewStore(Options{})
		s.Update(Patch{Rotate: Float(10)})
		s.Update(Patch{Rotate: Float(10)})

		_, ok := s.Undo()
		require.True(t, ok)
		_, ok = s.Undo()
		assert.False(t, ok)
	})

	t.Run("clamped value equal to current is not recorded", func(t *testing.T) {
		s := NewStore(Options{})
		s.Update(Patch{Rotate: Float(90)})
		s.Update(Patch{Rotate: Float(500)})

		got, ok := s.Undo()
		require.True(t, ok)
		assert.Equal(t, Default(), got)
	})

	t.Run("update clears redo", func(t *testing.T) {
		s := NewStore(Options{})
		s.Update(Patch{Rotate: Float(10)})
		s.Undo()
		require.True(t, s.CanRedo())

		s.Update(Patch{Tilt: Float(0.1)})
		assert.False(t, s.CanRedo())
	})

	t.Run("stacks are bounded", func(t *testing.T) {
		s := NewStore(Options{HistoryLimit: 3})
		for i := 1; i <= 10; i++ {
			s.Update(Patch{Forward: Float(float64(i))})
		}

		undone := 0
		for s.CanUndo() {
			s.Undo()
			undone++
		}
		assert.Equal(t, 3, undone)
		assert.Equal(t, 7.0, s.Current().Forward)
	})
}

func TestStore_Restore(t *testing.T) {
	s := NewStore(Options{})
	snapshot := State{Rotate: -35, Forward: 2.5, Tilt: 0.4, Floating: true}

	assert.Equal(t, snapshot, s.Restore(snapshot))

	got, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, Default(), got)
}

func TestStore_ApplyPreset(t *testing.T) {
	s := NewStore(Options{})
	s.Update(Patch{Tilt: Float(0.3), Floating: Bool(true)})

	got, ok := s.ApplyPreset("Vertigo")
	require.True(t, ok)
	assert.Equal(t, State{Forward: 8, WideAngle: true}, got)

	_, ok = s.ApplyPreset("no-such-preset")
	assert.False(t, ok)
	assert.Equal(t, got, s.Current())
}

func TestPresets_WithinDomain(t *testing.T) {
	for _, p := range Presets() {
		assert.Equal(t, p.State, p.State.Clamped(), p.Key)
	}
}

func TestStore_UpdateFuncConcurrentSteps(t *testing.T) {
	s := NewStore(Options{HistoryLimit: 100})

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpdateFunc(func(cur State) Patch {
				return Patch{Rotate: Float(cur.Rotate + 1)}
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 60.0, s.Current().Rotate)

	undone := 0
	for s.CanUndo() {
		s.Undo()
		undone++
	}
	assert.Equal(t, 60, undone)
	assert.Equal(t, Default(), s.Current())
}
