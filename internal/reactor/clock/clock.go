// Package clock owns the reactor's logical tick counter — the only source
// of "now" inside the tick step. Physical cadence (the wall-clock timer
// that decides when to call Advance) is the driver's concern, not this
// package's.
package clock

import "github.com/MrWong99/reactorcore/pkg/reactortypes"

// Clock tracks the current logical tick. It is not safe for concurrent
// use; the reactor core is single-threaded by contract.
type Clock struct {
	current reactortypes.Tick
}

// New returns a Clock starting at frame 0.
func New() *Clock {
	return &Clock{}
}

// Current returns the tick most recently produced by Advance, without
// mutating state.
func (c *Clock) Current() reactortypes.Tick {
	return c.current
}

// Advance moves the clock forward by exactly one logical tick and returns
// the new value. The reactor calls this once per tick step, regardless of
// how much wall-clock time has actually elapsed — missed timer firings are
// skipped by the driver, never caught up here.
func (c *Clock) Advance() reactortypes.Tick {
	c.current = c.current.Next()
	return c.current
}
