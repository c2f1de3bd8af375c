package drive

import (
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/thetooth/robot-ctrl/coe"
)

// fakePDO is a minimal in-memory PDO used only by this package's tests.
type fakePDO struct {
	statusWord     uint16
	controlWord    uint16
	actualPosition int32
	targetPosition int32
	actualTorque   int16
	followingError int32
	errorCode      uint16
	digitalInputs  uint32
}

func (p *fakePDO) GetStatusWord() uint16         { return p.statusWord }
func (p *fakePDO) SetControlWord(v uint16)       { p.controlWord = v }
func (p *fakePDO) GetActualPosition() int32      { return p.actualPosition }
func (p *fakePDO) SetTargetPosition(v int32)     { p.targetPosition = v }
func (p *fakePDO) GetActualVelocity() int32      { return 0 }
func (p *fakePDO) SetTargetVelocity(int32)       {}
func (p *fakePDO) GetActualTorque() int16        { return p.actualTorque }
func (p *fakePDO) SetTargetTorque(int16)         {}
func (p *fakePDO) GetFollowingError() int32      { return p.followingError }
func (p *fakePDO) GetErrorCode() uint16          { return p.errorCode }
func (p *fakePDO) GetDigitalInputs() uint32      { return p.digitalInputs }
func (p *fakePDO) SetDigitalOutputs(uint32)      {}
func (p *fakePDO) EmergencyStop() bool           { return p.digitalInputs&(1<<16) != 0 }

func newTestMotor() (*Motor, *fakePDO) {
	pdo := &fakePDO{}
	m := NewMotor(1, pdo, 1000.0, 1000.0, -90, 90, coe.New(clock.NewMock()))
	return m, pdo
}

func TestMoveWritesTargetTimesPositionRatio(t *testing.T) {
	m, pdo := newTestMotor()

	ok := m.Move(10)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, pdo.targetPosition, test.ShouldEqual, int32(10000))
	test.That(t, m.Fault(), test.ShouldBeFalse)
}

func TestMoveRejectsLargeDeviation(t *testing.T) {
	m, pdo := newTestMotor()

	fault := m.Move(301)
	test.That(t, fault, test.ShouldBeTrue)
	test.That(t, m.Fault(), test.ShouldBeTrue)
	test.That(t, pdo.targetPosition, test.ShouldEqual, int32(0)) // PDO left unchanged
}

func TestMoveRejectsOutsideSoftLimits(t *testing.T) {
	m, _ := newTestMotor()

	fault := m.Move(91)
	test.That(t, fault, test.ShouldBeTrue)
	test.That(t, m.LastFault(), test.ShouldContainSubstring, "soft limits")
}

func TestMoveRefusesOnceFaulted(t *testing.T) {
	m, pdo := newTestMotor()
	m.Move(301) // fault

	pdo.targetPosition = 0
	fault := m.Move(5) // should be a pure no-op, fault already latched
	test.That(t, fault, test.ShouldBeTrue)
	test.That(t, pdo.targetPosition, test.ShouldEqual, int32(0))
}

func TestMoveTorqueThresholdTripsAfterEnoughSamples(t *testing.T) {
	m, _ := newTestMotor()
	m.TorqueThreshold = 15
	pdo := &fakePDO{actualTorque: 500} // 50.0%
	m.pdo = pdo

	var fault bool
	for i := 0; i < 500; i++ {
		fault = m.Move(0)
	}

	test.That(t, fault, test.ShouldBeTrue)
	test.That(t, m.LastFault(), test.ShouldEqual, "Torque threshold exceeded: 50%")
}
