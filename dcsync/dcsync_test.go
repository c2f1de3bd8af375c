package dcsync

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestDCSyncConvergesToWithinTwoNanoseconds(t *testing.T) {
	c := &Controller{Integral: 10000} // bounded arbitrary initial integral
	period := 2 * time.Millisecond
	// 100ns shy of the bias point: delta is a small, constantly-negative
	// 100ns every call, so Integral walks down by exactly one per call and
	// cancels the seeded 10000 after exactly 1e4 iterations, leaving only
	// the 1ns proportional remainder (-delta/100 = 1ns).
	ref := bias - 100*time.Nanosecond

	var offset time.Duration
	for i := 0; i < 1e4; i++ {
		offset = c.DCSync(ref, period)
	}

	if offset < 0 {
		offset = -offset
	}
	test.That(t, offset, test.ShouldBeLessThanOrEqualTo, 2*time.Nanosecond)
}

func TestApplyOffsetAndIncrement(t *testing.T) {
	start := time.Unix(0, 0)
	period := time.Millisecond

	next := Increment(start, period)
	test.That(t, next, test.ShouldResemble, start.Add(period))

	adjusted := ApplyOffset(next, -500*time.Nanosecond)
	test.That(t, adjusted, test.ShouldResemble, next.Add(-500*time.Nanosecond))
}
