package coe

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestEnableReachesOnWithinOneSecond(t *testing.T) {
	mock := clock.NewMock()
	f := New(mock)
	f.SetCommand(ENABLE)

	status := uint16(0)
	for i := 0; i < 100; i++ {
		f.Update(status)
		mock.Add(2 * time.Millisecond)

		switch f.State() {
		case SAFE_RESET:
			status = 0
		case PREPARE_TO_SWITCH_ON:
			status = ReadyToSwitchOnState
		case SWITCH_ON:
			status = OnState
		}
		if f.State() == ON {
			break
		}
	}
	// the cycle after reaching ON clears the command.
	f.Update(status)

	test.That(t, f.State(), test.ShouldEqual, ON)
	test.That(t, f.command, test.ShouldEqual, NONE)
}

func TestEnableTimesOutBackToOff(t *testing.T) {
	mock := clock.NewMock()
	f := New(mock)
	f.SetCommand(ENABLE)

	// status word stuck below ON_STATE forever
	f.Update(0)
	test.That(t, f.State(), test.ShouldEqual, SAFE_RESET)

	mock.Add(MotorResetDelay + time.Millisecond)
	f.Update(0)
	test.That(t, f.State(), test.ShouldEqual, PREPARE_TO_SWITCH_ON)

	mock.Add(MotorInitTimeout + time.Millisecond)
	f.Update(0)

	test.That(t, f.State(), test.ShouldEqual, OFF)
	test.That(t, f.State(), test.ShouldNotEqual, FAULT)
}

func TestDisableReturnsToOff(t *testing.T) {
	mock := clock.NewMock()
	f := New(mock)
	f.state = ON
	f.SetCommand(DISABLE)

	f.Update(OnState)
	test.That(t, f.State(), test.ShouldEqual, ON)
	test.That(t, f.GetControlWord(), test.ShouldEqual, DisableVoltage)

	f.Update(OffState)
	test.That(t, f.State(), test.ShouldEqual, OFF)
	test.That(t, f.command, test.ShouldEqual, NONE)
}

func TestHomeSequence(t *testing.T) {
	mock := clock.NewMock()
	f := New(mock)
	f.state = ON
	f.SetCommand(HOME)

	f.Update(OnState)
	test.That(t, f.GetControlWord(), test.ShouldEqual, SetAbsPointNoBlend)
	test.That(t, f.State(), test.ShouldEqual, ON)

	f.Update(HomingCompleteState)
	test.That(t, f.State(), test.ShouldEqual, HOMING_COMPLETE)

	f.Update(HomingCompleteState)
	test.That(t, f.GetControlWord(), test.ShouldEqual, EnableOperation)
	test.That(t, f.command, test.ShouldEqual, NONE)
}
