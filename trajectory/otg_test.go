package trajectory

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestUpdateAlreadyAtTargetReportsFinishedImmediately(t *testing.T) {
	g := New(0.001)
	in := &InputParameter{}

	out, result := g.Update(in)

	test.That(t, result, test.ShouldEqual, Finished)
	for i := 0; i < Axes; i++ {
		test.That(t, out.NewPosition[i], test.ShouldEqual, 0.0)
	}
}

func TestUpdateFirstTickObeysJerkLimit(t *testing.T) {
	g := New(0.001)
	in := &InputParameter{
		TargetPosition:  [Axes]float64{90, 0, 0, 0},
		MaxVelocity:     [Axes]float64{200, 200, 200, 200},
		MaxAcceleration: [Axes]float64{400, 400, 400, 400},
		MaxJerk:         [Axes]float64{4000, 4000, 4000, 4000},
	}

	out, result := g.Update(in)

	test.That(t, result, test.ShouldEqual, Working)
	// a single 1ms tick starting from rest can change acceleration by at
	// most maxJerk*dt = 4, so velocity can change by at most roughly
	// maxJerk*dt*dt = 0.004 and position by even less.
	test.That(t, out.NewVelocity[0], test.ShouldBeGreaterThanOrEqualTo, 0.0)
	test.That(t, out.NewVelocity[0], test.ShouldBeLessThan, 0.01)
	test.That(t, out.NewPosition[0], test.ShouldBeGreaterThanOrEqualTo, 0.0)
	test.That(t, out.NewPosition[0], test.ShouldBeLessThan, 0.001)
}

func TestUpdateEventuallyReachesTarget(t *testing.T) {
	g := New(0.001)
	in := &InputParameter{
		TargetPosition:  [Axes]float64{90, -45, 10, 180},
		MaxVelocity:     [Axes]float64{200, 200, 200, 200},
		MaxAcceleration: [Axes]float64{400, 400, 400, 400},
		MaxJerk:         [Axes]float64{4000, 4000, 4000, 4000},
	}

	var out OutputParameter
	var result Result
	for i := 0; i < 5000 && result != Finished; i++ {
		out, result = g.Update(in)
		out.PassToInput(in)
	}

	test.That(t, result, test.ShouldEqual, Finished)
	for i, target := range in.TargetPosition {
		test.That(t, math.Abs(out.NewPosition[i]-target), test.ShouldBeLessThan, 1e-6)
		test.That(t, out.NewVelocity[i], test.ShouldEqual, 0.0)
	}
}

func TestUpdateNegativeDirectionDecelerates(t *testing.T) {
	g := New(0.001)
	in := &InputParameter{
		CurrentPosition: [Axes]float64{100, 0, 0, 0},
		TargetPosition:  [Axes]float64{0, 0, 0, 0},
		MaxVelocity:     [Axes]float64{200, 200, 200, 200},
		MaxAcceleration: [Axes]float64{400, 400, 400, 400},
		MaxJerk:         [Axes]float64{4000, 4000, 4000, 4000},
	}

	var result Result
	for i := 0; i < 5000 && result != Finished; i++ {
		var out OutputParameter
		out, result = g.Update(in)
		out.PassToInput(in)
	}

	test.That(t, result, test.ShouldEqual, Finished)
	test.That(t, in.CurrentPosition[0], test.ShouldEqual, 0.0)
}

func TestPassToInputCarriesOutputForward(t *testing.T) {
	out := OutputParameter{
		NewPosition:     [Axes]float64{1, 2, 3, 4},
		NewVelocity:     [Axes]float64{5, 6, 7, 8},
		NewAcceleration: [Axes]float64{9, 10, 11, 12},
	}
	in := &InputParameter{}

	out.PassToInput(in)

	test.That(t, in.CurrentPosition, test.ShouldResemble, out.NewPosition)
	test.That(t, in.CurrentVelocity, test.ShouldResemble, out.NewVelocity)
	test.That(t, in.CurrentAcceleration, test.ShouldResemble, out.NewAcceleration)
}
