package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedStepLoop_Advance(t *testing.T) {
	tests := []struct {
		name    string
		frames  []time.Duration
		steps   []int
		stepped int
	}{
		{
			name:    "Three steps in 50ms",
			frames:  []time.Duration{50 * time.Millisecond},
			steps:   []int{3},
			stepped: 3,
		},
		{
			name:    "Stalled frame is clamped to 250ms",
			frames:  []time.Duration{time.Second},
			steps:   []int{15},
			stepped: 15,
		},
		{
			name:    "Remainder carries over",
			frames:  []time.Duration{10 * time.Millisecond, 10 * time.Millisecond},
			steps:   []int{0, 1},
			stepped: 1,
		},
		{
			name:    "Negative frame is ignored",
			frames:  []time.Duration{-time.Second},
			steps:   []int{0},
			stepped: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deltas []float64
			loop := NewFixedStepLoop(func(dt float64) { deltas = append(deltas, dt) })

			for i, frame := range tt.frames {
				assert.Equal(t, tt.steps[i], loop.Advance(frame))
			}

			require.Len(t, deltas, tt.stepped)
			for _, dt := range deltas {
				assert.InDelta(t, FixedStep, dt, 1e-12)
			}
		})
	}
}

func TestCappedStepLoop_Advance(t *testing.T) {
	var deltas []float64
	loop := NewCappedStepLoop(func(dt float64) { deltas = append(deltas, dt) })

	assert.Equal(t, 1, loop.Advance(200*time.Millisecond))
	assert.Equal(t, 1, loop.Advance(10*time.Millisecond))
	assert.Equal(t, 0, loop.Advance(0))

	require.Len(t, deltas, 2)
	assert.InDelta(t, MaxStepDelta, deltas[0], 1e-12)
	assert.InDelta(t, 0.01, deltas[1], 1e-12)
}

func TestRun(t *testing.T) {
	t.Run("Stops when the frame says so", func(t *testing.T) {
		calls := 0

		err := Run(context.Background(), time.Millisecond, func(elapsed time.Duration) bool {
			calls++
			assert.Positive(t, elapsed)

			return calls < 3
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Stops when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		err := Run(ctx, time.Millisecond, func(time.Duration) bool {
			cancel()
			return true
		})

		require.ErrorIs(t, err, context.Canceled)
	})
}
