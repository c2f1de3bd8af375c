package bus

import (
	"testing"

	"go.viam.com/test"
)

func TestBringupReportsSlaveCountAndExpectedWKC(t *testing.T) {
	sim := NewSim(4)

	slaveCount, expectedWKC, dcCapable, err := sim.Bringup("eth0")

	test.That(t, err, test.ShouldBeNil)
	test.That(t, slaveCount, test.ShouldEqual, 4)
	test.That(t, expectedWKC, test.ShouldEqual, 4)
	test.That(t, dcCapable, test.ShouldBeTrue)
}

func TestReceiveProcessReturnsFullWKCUntilDegraded(t *testing.T) {
	sim := NewSim(4)

	test.That(t, sim.ReceiveProcess(), test.ShouldEqual, 4)

	sim.SetDegraded(true)
	test.That(t, sim.ReceiveProcess(), test.ShouldEqual, 3)

	sim.SetDegraded(false)
	test.That(t, sim.ReceiveProcess(), test.ShouldEqual, 4)
}

func TestSetDegradedDropsEverySlaveToPreOp(t *testing.T) {
	sim := NewSim(2)

	sim.SetDegraded(true)

	test.That(t, sim.Statecheck(1), test.ShouldEqual, StatePreOp)
	test.That(t, sim.Statecheck(2), test.ShouldEqual, StatePreOp)
	test.That(t, sim.ReadState(), test.ShouldEqual, 0)
}

func TestRecoveryLadderBringsASlaveBackToOp(t *testing.T) {
	sim := NewSim(2)
	sim.SetDegraded(true)
	test.That(t, sim.Statecheck(1), test.ShouldEqual, StatePreOp)

	sim.WriteState(1, StateSafeOpAck)
	test.That(t, sim.Statecheck(1), test.ShouldEqual, StateSafeOpAck)

	sim.WriteState(1, StateOp)
	test.That(t, sim.Statecheck(1), test.ShouldEqual, StateOp)

	sim.ReconfigSlave(2)
	test.That(t, sim.Statecheck(2), test.ShouldEqual, StateSafeOp)

	sim.RecoverSlave(2)
	test.That(t, sim.Statecheck(2), test.ShouldEqual, StateOp)
	test.That(t, sim.ReceiveProcess(), test.ShouldEqual, 2)
}

func TestWriteStateZeroResetsEverySlave(t *testing.T) {
	sim := NewSim(3)
	sim.SetDegraded(true)

	sim.WriteState(0, StateOp)

	for slave := 1; slave <= 3; slave++ {
		test.That(t, sim.Statecheck(slave), test.ShouldEqual, StateOp)
	}
}

func TestWriteSDOAlwaysSucceeds(t *testing.T) {
	sim := NewSim(1)
	test.That(t, sim.WriteSDO(1, 0x6040, 0, []byte{0, 0}), test.ShouldEqual, 1)
}

func TestCloseIsANoOp(t *testing.T) {
	sim := NewSim(1)
	test.That(t, sim.Close(), test.ShouldBeNil)
}
