package trajectory

import (
	"github.com/go-nlopt/nlopt"
)

// Waypoint is a single dense pose in joint space, matching the IK::Pose
// projection used by the original waypoint planner.
type Waypoint [Axes]float64

// PlanIntermediatePath walks a sequence of linked point-to-point segments,
// searching for the entry velocity scale factor (per original_source's
// Motion/waypoint.cpp "mag") at each waypoint boundary so neighbouring
// segments share the same sign of motion on every axis. It does not expand
// or reposition the waypoints themselves — each returned EntryVelocity
// pairs a waypoint with the scale Pathing applies to input.MaxVelocity
// while approaching it, so a sharp corner slows the approach instead of
// forcing an axis to reverse direction mid-segment.
//
// The search is the same 1-D bounded optimization the original performed
// with a manual binary search; nlopt's bounded local optimizer (a teacher
// dependency) replaces the hand-rolled loop with the generic case.
func PlanIntermediatePath(origin InputParameter, waypoints []Waypoint) ([]EntryVelocity, error) {
	if len(waypoints) < 2 {
		path := make([]EntryVelocity, len(waypoints))
		for i, w := range waypoints {
			path[i] = EntryVelocity{Waypoint: w, Scale: 1.0}
		}
		return path, nil
	}

	path := make([]EntryVelocity, 0, len(waypoints))
	current := origin.CurrentPosition

	for i := 0; i < len(waypoints); i++ {
		target := waypoints[i]
		var next Waypoint
		if i+1 < len(waypoints) {
			next = waypoints[i+1]
		} else {
			next = target
		}

		scale, err := entryVelocityScale(current, target, next, origin.MaxVelocity)
		if err != nil {
			return path, err
		}

		path = append(path, EntryVelocity{Waypoint: target, Scale: scale})
		current = target
	}

	return path, nil
}

// EntryVelocity pairs a joint-space waypoint with the fraction of
// input.MaxVelocity Pathing allows while entering it.
type EntryVelocity struct {
	Waypoint Waypoint
	Scale    float64
}

// entryVelocityScale runs nlopt's bounded LN_BOBYQA optimizer over a scale
// factor in [0,1], starting from 1.0, minimizing the number of axes whose
// sign of motion from target to next does not match its sign of motion from
// current to target (an axis that has to reverse direction at the waypoint
// boundary). It returns whatever scale the optimizer stops at, not
// necessarily the largest one with the fewest mismatches, and 1.0 if the
// optimizer reports an error.
func entryVelocityScale(current, target, next Waypoint, maxVelocity [Axes]float64) (float64, error) {
	goodAxisCount := func(mag float64) int {
		good := 0
		for axis := 0; axis < Axes; axis++ {
			incoming := target[axis] - current[axis]
			outgoing := next[axis] - target[axis]
			entryVel := maxVelocity[axis] * mag
			switch {
			case incoming > 0 && entryVel >= 0 && outgoing >= 0:
				good++
			case incoming < 0 && entryVel <= 0 && outgoing <= 0:
				good++
			case incoming == 0 && outgoing == 0:
				good++
			}
		}
		return good
	}

	opt, err := nlopt.NewNLopt(nlopt.LN_BOBYQA, uint(1))
	if err != nil {
		return 0, err
	}
	defer opt.Destroy()

	_ = opt.SetLowerBounds([]float64{0})
	_ = opt.SetUpperBounds([]float64{1})
	_ = opt.SetMaxEval(1000)
	_ = opt.SetMinObjective(func(x, gradient []float64) float64 {
		// minimize the axis-mismatch count; nlopt minimizes, so negate.
		return float64(Axes - goodAxisCount(x[0]))
	})

	result, _, err := opt.Optimize([]float64{1.0})
	if err != nil {
		return 1.0, nil // fall back to full-speed entry, matching iterMax exhaustion in the original
	}
	return result[0], nil
}
