package pipeline

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/coe"
	"github.com/thetooth/robot-ctrl/dcsync"
	"github.com/thetooth/robot-ctrl/drive"
	"github.com/thetooth/robot-ctrl/eventlog"
	"github.com/thetooth/robot-ctrl/motion"
	"github.com/thetooth/robot-ctrl/trajectory"
)

func newTestFSM() *motion.FSM {
	motors := make([]*drive.Motor, trajectory.Axes)
	for i := range motors {
		motors[i] = drive.NewMotor(i+1, noopPDO{}, 1000.0, 1000.0, -360, 360, coe.New(clock.NewMock()))
	}
	group := drive.NewGroup(motors...)
	otg := trajectory.New(1.0 / 1000.0)
	return motion.New(nil, bus.NewSim(trajectory.Axes), group, otg, motion.HomingOffsets{})
}

// noopPDO is a zero-value PDO sufficient for the pipeline tests, which
// never drive a drive to ON.
type noopPDO struct{}

func (noopPDO) GetStatusWord() uint16     { return 0 }
func (noopPDO) SetControlWord(uint16)     {}
func (noopPDO) GetActualPosition() int32  { return 0 }
func (noopPDO) SetTargetPosition(int32)   {}
func (noopPDO) GetActualVelocity() int32  { return 0 }
func (noopPDO) SetTargetVelocity(int32)   {}
func (noopPDO) GetActualTorque() int16    { return 0 }
func (noopPDO) SetTargetTorque(int16)     {}
func (noopPDO) GetFollowingError() int32  { return 0 }
func (noopPDO) GetErrorCode() uint16      { return 0 }
func (noopPDO) GetDigitalInputs() uint32  { return 0 }
func (noopPDO) SetDigitalOutputs(uint32)  {}
func (noopPDO) EmergencyStop() bool       { return false }

func TestStepRunsOneCycleWithoutShutdown(t *testing.T) {
	fsm := newTestFSM()
	sim := bus.NewSim(trajectory.Axes)
	p := New(eventlog.New(), sim, fsm, &dcsync.Controller{}, clock.New(), time.Millisecond, trajectory.Axes)

	exited := p.Step(nil)

	test.That(t, exited, test.ShouldBeFalse)
	test.That(t, p.Status().State, test.ShouldEqual, bus.StateOp)
}

func TestStepClearsEstopOnDegradedWKC(t *testing.T) {
	fsm := newTestFSM()
	fsm.Estop.Store(true)
	sim := bus.NewSim(trajectory.Axes)
	sim.SetDegraded(true)
	log := eventlog.New()
	p := New(log, sim, fsm, &dcsync.Controller{}, clock.New(), time.Millisecond, trajectory.Axes)

	p.Step(nil)

	test.That(t, fsm.Estop.Load(), test.ShouldBeFalse)
	test.That(t, log.Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
}

func TestStepClosesBusImmediatelyWhenIdleAndShuttingDown(t *testing.T) {
	fsm := newTestFSM()
	fsm.Shutdown.Store(true)
	mock := clock.NewMock()
	p := New(eventlog.New(), bus.NewSim(trajectory.Axes), fsm, &dcsync.Controller{}, mock, time.Millisecond, trajectory.Axes)

	drained := false
	exited := p.Step(func() { drained = true })

	test.That(t, exited, test.ShouldBeTrue)
	test.That(t, drained, test.ShouldBeTrue)
}

func TestStepForcesExitAfterHaltTimeoutElapses(t *testing.T) {
	fsm := newTestFSM()
	fsm.Run.Store(true) // drives stepIdle -> Reset, so state != Idle this tick
	fsm.Shutdown.Store(true)
	p := New(eventlog.New(), bus.NewSim(trajectory.Axes), fsm, &dcsync.Controller{}, clock.New(), time.Millisecond, trajectory.Axes)
	p.SetHaltTimeout(time.Millisecond)

	first := p.Step(nil)
	test.That(t, first, test.ShouldBeFalse)

	time.Sleep(3 * time.Millisecond)

	second := p.Step(nil)
	test.That(t, second, test.ShouldBeTrue)
}
