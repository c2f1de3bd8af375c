// Package dcsync implements the PI-controlled phase lock (C1) between the
// Linux monotonic clock and the EtherCAT Distributed Clock sync0 reference,
// so the cyclic pipeline's wake-up lands shortly after (and stays within a
// few microseconds of) the bus edge.
package dcsync

import (
	"time"

	"github.com/benbjohnson/clock"
)

// bias places the Linux wake-up shortly after the DC edge so the next PDO
// write is ready before the bus snaps.
const bias = 50 * time.Microsecond

// gains of the integer-nanosecond PI controller.
const (
	proportionalDivisor = 100
	integralDivisor      = 20
)

// Controller holds the PI controller's accumulated integral term. It has no
// other state and is safe to reuse across an arbitrary number of cycles.
type Controller struct {
	Integral int64
}

// DCSync computes the next-cycle offset given the DC reference time and the
// cycle period, advancing the controller's integral term as a side effect.
//
// delta = (ref - bias) mod period, normalized to (-period/2, period/2]
// I += sign(delta)
// offset = -(delta/100) - (I/20)
func (c *Controller) DCSync(ref, period time.Duration) time.Duration {
	delta := normalize(ref-bias, period)

	switch {
	case delta > 0:
		c.Integral++
	case delta < 0:
		c.Integral--
	}

	offset := -(int64(delta) / proportionalDivisor) - (c.Integral / integralDivisor)
	return time.Duration(offset)
}

// normalize folds d into (-period/2, period/2].
func normalize(d, period time.Duration) time.Duration {
	d %= period
	if d < 0 {
		d += period
	}
	if d > period/2 {
		d -= period
	}
	return d
}

// ApplyOffset nudges the next wake-up tick by offset.
func ApplyOffset(tick time.Time, offset time.Duration) time.Time {
	return tick.Add(offset)
}

// Increment advances tick by one full cycle period.
func Increment(tick time.Time, period time.Duration) time.Time {
	return tick.Add(period)
}

// SleepUntil blocks the calling goroutine (the single real-time control
// thread) until the given absolute monotonic tick, using the supplied clock
// so tests can substitute a mock. Production callers pass clock.New().
func SleepUntil(clk clock.Clock, tick time.Time) {
	d := tick.Sub(clk.Now())
	if d <= 0 {
		return
	}
	clk.Sleep(d)
}
