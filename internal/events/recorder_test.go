package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps events oldest first", func(t *testing.T) {
		r := NewRecorder(4)
		for seq := uint64(1); seq <= 3; seq++ {
			r.OnEvent(ctx, Event{Sequence: seq})
		}
		got := r.All()
		assert.Len(t, got, 3)
		assert.Equal(t, uint64(1), got[0].Sequence)
		assert.Equal(t, uint64(3), got[2].Sequence)
	})

	t.Run("evicts the oldest when full", func(t *testing.T) {
		r := NewRecorder(3)
		for seq := uint64(1); seq <= 5; seq++ {
			r.OnEvent(ctx, Event{Sequence: seq})
		}
		got := r.All()
		assert.Len(t, got, 3)
		assert.Equal(t, []uint64{3, 4, 5}, sequences(got))
		assert.Equal(t, int64(2), r.Dropped())
	})

	t.Run("since filters by sequence", func(t *testing.T) {
		r := NewRecorder(10)
		for seq := uint64(1); seq <= 5; seq++ {
			r.OnEvent(ctx, Event{Sequence: seq})
		}
		assert.Equal(t, []uint64{4, 5}, sequences(r.Since(3)))
		assert.Empty(t, r.Since(5))
	})

	t.Run("non-positive capacity falls back to default", func(t *testing.T) {
		r := NewRecorder(0)
		r.OnEvent(ctx, Event{Sequence: 1})
		assert.Equal(t, 1, r.Len())
	})
}

func sequences(events []Event) []uint64 {
	out := make([]uint64, len(events))
	for i, e := range events {
		out[i] = e.Sequence
	}
	return out
}
