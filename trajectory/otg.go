// Package trajectory implements the jerk-limited, multi-axis online
// trajectory generator (C6, "OTG"). No Go port of a Ruckig-class OTG
// library exists anywhere in the example corpus (original_source's
// Motion/waypoint.cpp calls a C++ Ruckig, a header-only library with no Go
// equivalent), so this package implements the per-axis jerk-limited
// stepper directly; gonum/floats supplies the per-axis vector arithmetic
// the way the rest of this module leans on gonum for numerics.
package trajectory

import (
	"gonum.org/v1/gonum/floats"
)

// Axes is the fixed dimensionality of every InputParameter/OutputParameter:
// alpha, beta, theta, phi.
const Axes = 4

// SyncMode selects how per-axis motion durations are reconciled.
type SyncMode int

const (
	SyncNone SyncMode = iota
	SyncTime
	SyncTimeIfNecessary
	SyncPhase
)

// Result is the outcome of a single Update call.
type Result int

const (
	Working Result = iota
	Finished
	ErrorInvalidInput
)

// InputParameter is mutated only inside the tracking/jogging step, once per
// axis per tick.
type InputParameter struct {
	CurrentPosition     [Axes]float64
	CurrentVelocity      [Axes]float64
	CurrentAcceleration  [Axes]float64

	TargetPosition [Axes]float64
	TargetVelocity [Axes]float64

	MaxVelocity     [Axes]float64
	MaxAcceleration [Axes]float64
	MaxJerk         [Axes]float64

	Synchronization SyncMode
}

// OutputParameter is the result of a single Update call.
type OutputParameter struct {
	NewPosition     [Axes]float64
	NewVelocity     [Axes]float64
	NewAcceleration [Axes]float64
}

// PassToInput advances the generator: the previous output becomes the next
// cycle's current state.
func (o *OutputParameter) PassToInput(in *InputParameter) {
	in.CurrentPosition = o.NewPosition
	in.CurrentVelocity = o.NewVelocity
	in.CurrentAcceleration = o.NewAcceleration
}

// Generator is the jerk-limited stepper. It holds no state beyond the cycle
// period, so a single Generator can be shared by every axis and reused
// cycle over cycle.
type Generator struct {
	period float64 // seconds
}

// New returns a Generator stepping at the given cycle period.
func New(periodSeconds float64) *Generator {
	return &Generator{period: periodSeconds}
}

// Update advances in by one cycle toward TargetPosition, respecting
// per-axis MaxVelocity/MaxAcceleration/MaxJerk, and reports Working until
// every axis has settled onto its target (then Finished).
func (g *Generator) Update(in *InputParameter) (OutputParameter, Result) {
	var out OutputParameter
	finished := true

	for i := 0; i < Axes; i++ {
		pos, vel, acc, axisFinished := g.stepAxis(
			in.CurrentPosition[i], in.CurrentVelocity[i], in.CurrentAcceleration[i],
			in.TargetPosition[i], in.MaxVelocity[i], in.MaxAcceleration[i], in.MaxJerk[i],
		)
		out.NewPosition[i] = pos
		out.NewVelocity[i] = vel
		out.NewAcceleration[i] = acc
		finished = finished && axisFinished
	}

	if finished {
		return out, Finished
	}
	return out, Working
}

// stepAxis implements a bang-bang jerk controller: it decides, for this
// single axis and this single tick, the jerk sign that drives velocity
// toward the value needed to decelerate to a stop exactly at the target
// (a standard S-curve stopping-distance check), clamped to max
// acceleration/velocity/jerk, then Euler-integrates one cycle period.
func (g *Generator) stepAxis(pos, vel, acc, target, maxVel, maxAcc, maxJerk float64) (newPos, newVel, newAcc float64, finished bool) {
	dt := g.period
	remaining := target - pos

	if floats.EqualWithinAbs(remaining, 0, 1e-9) && floats.EqualWithinAbs(vel, 0, 1e-9) {
		return pos, 0, 0, true
	}

	// Stopping distance at the current velocity under max deceleration.
	stopDist := (vel * vel) / (2 * maxAcc)
	direction := 1.0
	if remaining < 0 {
		direction = -1.0
	}

	var desiredAcc float64
	switch {
	case direction > 0 && stopDist >= remaining && vel > 0:
		desiredAcc = -maxAcc
	case direction < 0 && stopDist >= -remaining && vel < 0:
		desiredAcc = maxAcc
	case vel*direction < maxVel:
		desiredAcc = maxAcc * direction
	default:
		desiredAcc = 0
	}

	// Jerk-limit the move from acc toward desiredAcc.
	accDelta := desiredAcc - acc
	maxAccDelta := maxJerk * dt
	if accDelta > maxAccDelta {
		accDelta = maxAccDelta
	} else if accDelta < -maxAccDelta {
		accDelta = -maxAccDelta
	}
	newAcc = acc + accDelta

	newVel = vel + newAcc*dt
	if newVel > maxVel {
		newVel = maxVel
	} else if newVel < -maxVel {
		newVel = -maxVel
	}

	newPos = pos + newVel*dt

	// Snap onto the target (zeroing velocity and acceleration) as soon as
	// this cycle's step reaches or passes it, whatever the current velocity,
	// so Finished is reported deterministically instead of asymptotically
	// approaching it forever.
	if (direction > 0 && newPos >= target) || (direction < 0 && newPos <= target) {
		return target, 0, 0, true
	}

	return newPos, newVel, newAcc, false
}
