package eeg

import (
	"time"
)

// SampleRateHz is the fixed acquisition rate of the emulated frontend.
const SampleRateHz = 250

// SampleClock bridges the periodic tick source into the engine's run loop.
// It holds at most one pending tick: if the consumer falls behind, ticks are
// coalesced rather than queued, so real-time pacing wins over completeness.
// Downstream code treats the sample counter, not wall-clock ticks, as the
// measure of elapsed time.
type SampleClock struct {
	pending chan struct{}
}

func NewSampleClock() *SampleClock {
	return &SampleClock{pending: make(chan struct{}, 1)}
}

// Tick marks a sample period as due. Safe to call from any goroutine and
// never blocks; a tick that arrives while one is already pending is dropped.
func (c *SampleClock) Tick() {
	select {
	case c.pending <- struct{}{}:
	default:
	}
}

// Pending exposes the single-slot tick indicator for select loops. Receiving
// from it consumes the pending tick.
func (c *SampleClock) Pending() <-chan struct{} {
	return c.pending
}

// TakeTick consumes the pending tick if one is set.
func (c *SampleClock) TakeTick() bool {
	select {
	case <-c.pending:
		return true
	default:
		return false
	}
}

// RunTicker drives the clock from a software timer at rateHz until stopChan
// closes. On hardware this role belongs to a timer interrupt; tests call
// Tick directly instead.
func (c *SampleClock) RunTicker(rateHz int, stopChan <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}
