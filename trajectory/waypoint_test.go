package trajectory

import (
	"testing"

	"go.viam.com/test"
)

func TestPlanIntermediatePathPassesThroughFewerThanTwoWaypoints(t *testing.T) {
	waypoints := []Waypoint{{10, 20, 30, 40}}

	path, err := PlanIntermediatePath(InputParameter{}, waypoints)

	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldEqual, len(waypoints))
	test.That(t, path[0].Waypoint, test.ShouldResemble, waypoints[0])
	test.That(t, path[0].Scale, test.ShouldEqual, 1.0)
}

func TestPlanIntermediatePathEmptyInput(t *testing.T) {
	path, err := PlanIntermediatePath(InputParameter{}, nil)

	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldEqual, 0)
}

func TestPlanIntermediatePathPreservesWaypointOrder(t *testing.T) {
	origin := InputParameter{
		CurrentPosition: [Axes]float64{0, 0, 0, 0},
		MaxVelocity:     [Axes]float64{200, 200, 200, 200},
	}
	waypoints := []Waypoint{
		{10, 0, 0, 0},
		{20, 10, 0, 0},
		{30, 10, 0, 0},
	}

	path, err := PlanIntermediatePath(origin, waypoints)

	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldEqual, len(waypoints))
	for i, w := range waypoints {
		test.That(t, path[i].Waypoint, test.ShouldResemble, w)
	}
}

// TestPlanIntermediatePathCornerEntryScaleStaysInRange exercises a genuine
// direction reversal on axis 0 (10 -> 20 incoming, 20 -> 10 outgoing): no
// scale can make both legs agree in sign, so the mismatch count is the same
// for every scale and the test checks only that each returned scale stays
// within [0,1].
func TestPlanIntermediatePathCornerEntryScaleStaysInRange(t *testing.T) {
	origin := InputParameter{
		CurrentPosition: [Axes]float64{0, 0, 0, 0},
		MaxVelocity:     [Axes]float64{200, 200, 200, 200},
	}
	waypoints := []Waypoint{
		{10, 0, 0, 0},
		{20, 0, 0, 0},
		{10, 0, 0, 0},
	}

	path, err := PlanIntermediatePath(origin, waypoints)

	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldEqual, len(waypoints))
	for _, ev := range path {
		test.That(t, ev.Scale, test.ShouldBeGreaterThanOrEqualTo, 0.0)
		test.That(t, ev.Scale, test.ShouldBeLessThanOrEqualTo, 1.0)
	}
}
