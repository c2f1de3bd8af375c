package kinematics

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestForwardInverseRoundTrip(t *testing.T) {
	for _, tc := range []struct{ alpha, beta, theta, phi float64 }{
		{0, 0, 10, 5},
		{30, -60, 0, 0},
		{120, -90, -15, 20},
		{200, -140, 5, -5},
	} {
		fwd := ForwardKinematics(tc.alpha, tc.beta, tc.theta, tc.phi, 0)
		test.That(t, fwd.Y, test.ShouldBeGreaterThanOrEqualTo, 0) // stay clear of the reflected branch

		inv, result := InverseKinematics(fwd.X, fwd.Y, fwd.Z, fwd.R, 0)
		test.That(t, result, test.ShouldEqual, Success)
		test.That(t, math.Abs(inv.Alpha-tc.alpha), test.ShouldBeLessThan, 1e-6)
		test.That(t, math.Abs(inv.Beta-tc.beta), test.ShouldBeLessThan, 1e-6)
	}
}

func TestForwardInverseRoundTripReflectedBranch(t *testing.T) {
	fwd := ForwardKinematics(160, 60, -15, 20, 0)
	test.That(t, fwd.Y, test.ShouldBeLessThan, 0) // only the reflected branch lands here

	inv, result := InverseKinematics(fwd.X, fwd.Y, fwd.Z, fwd.R, 0)
	test.That(t, result, test.ShouldEqual, Success)
	test.That(t, math.Abs(inv.Alpha-160), test.ShouldBeLessThan, 1e-6)
	test.That(t, math.Abs(inv.Beta-60), test.ShouldBeLessThan, 1e-6)
}

func TestPreprocessingRejectsBehindBaseKeepOut(t *testing.T) {
	_, _, _, _, result := Preprocessing(50, -50, 0, 0)
	test.That(t, result, test.ShouldEqual, JointLimit)

	cx, cy, _, _, result := Preprocessing(200, 200, 0, 0)
	test.That(t, result, test.ShouldEqual, Success)
	test.That(t, cx, test.ShouldEqual, 200.0)
	test.That(t, cy, test.ShouldEqual, 200.0)
}

func TestInverseKinematicsSingularity(t *testing.T) {
	// x=500 lies beyond the arm's 400mm reach (L1+L2) — unreachable, c2
	// rises above 1 and s2 = sqrt(negative) is NaN.
	_, result := InverseKinematics(500, 0, 0, 0, 0)
	test.That(t, result, test.ShouldEqual, Singularity)
}

func TestPostprocessingFlagsForwardKinematicViolation(t *testing.T) {
	// alpha=-30, beta=-120 brings the tool to roughly (0,-200), inside the
	// keep-out zone in front of the base (y <= 0, |x| < 110).
	_, result := Postprocessing(-30, -120, 0, 0, 0)
	test.That(t, result, test.ShouldEqual, ForwardKinematicViolation)
}
