package session

import (
	"context"
	"math"
	"time"
)

const (
	// FixedStep is one simulation step of the racing loop, in seconds.
	FixedStep = 1.0 / 60
	// MaxFrameDelta stops a stalled frame from queueing up a burst of steps.
	MaxFrameDelta = 0.25
	// MaxStepDelta caps the single step of the tennis loop.
	MaxStepDelta = 0.05
)

// Loop turns wall-clock frame time into engine steps.
type Loop interface {
	// Advance - runs the steps owed for elapsed and returns how many ran.
	Advance(elapsed time.Duration) int
}

// FixedStepLoop steps in constant 1/60 s increments and carries the remainder to the next frame.
type FixedStepLoop struct {
	step        func(dt float64)
	accumulator float64
}

func NewFixedStepLoop(step func(dt float64)) *FixedStepLoop {
	return &FixedStepLoop{step: step}
}

func (that *FixedStepLoop) Advance(elapsed time.Duration) int {
	delta := math.Min(MaxFrameDelta, math.Max(0, elapsed.Seconds()))
	that.accumulator += delta

	steps := 0
	// the epsilon keeps float drift from swallowing a step on exact multiples
	for that.accumulator+1e-9 >= FixedStep {
		that.step(FixedStep)
		that.accumulator -= FixedStep
		steps++
	}

	if that.accumulator < 0 {
		that.accumulator = 0
	}

	return steps
}

// CappedStepLoop runs exactly one step per frame with the frame delta capped at 50 ms.
type CappedStepLoop struct {
	step func(dt float64)
}

func NewCappedStepLoop(step func(dt float64)) *CappedStepLoop {
	return &CappedStepLoop{step: step}
}

func (that *CappedStepLoop) Advance(elapsed time.Duration) int {
	delta := elapsed.Seconds()
	if delta <= 0 {
		return 0
	}

	that.step(math.Min(MaxStepDelta, delta))

	return 1
}

// Run - calls frame on every tick with the time since the previous one until ctx is done
// or frame returns false.
func Run(ctx context.Context, interval time.Duration, frame func(elapsed time.Duration) bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			if !frame(elapsed) {
				return nil
			}
		}
	}
}
