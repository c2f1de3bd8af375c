// Package coe implements the DS402 power state machine (C3) each drive runs
// under: masked reads of the 16-bit status word drive transitions; the
// control word sent back is a pure function of state and pending command.
package coe

import (
	"time"

	"github.com/benbjohnson/clock"
)

// State is the DS402 power state.
type State int

const (
	OFF State = iota
	SAFE_RESET
	PREPARE_TO_SWITCH_ON
	SWITCH_ON
	ON
	HOMING_COMPLETE
	FAULT
)

func (s State) String() string {
	switch s {
	case OFF:
		return "OFF"
	case SAFE_RESET:
		return "SAFE_RESET"
	case PREPARE_TO_SWITCH_ON:
		return "PREPARE_TO_SWITCH_ON"
	case SWITCH_ON:
		return "SWITCH_ON"
	case ON:
		return "ON"
	case HOMING_COMPLETE:
		return "HOMING_COMPLETE"
	case FAULT:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// Command is requested of the FSM by the owning drive/motion FSM.
type Command int

const (
	NONE Command = iota
	ENABLE
	DISABLE
	HOME
)

// Status word bit masks, DS402 0x6041.
const (
	ReadyToSwitchOn    uint16 = 1 << 0
	SwitchedOn         uint16 = 1 << 1
	OperationEnable    uint16 = 1 << 2
	FaultBit           uint16 = 1 << 3
	VoltageEnabled     uint16 = 1 << 4
	QuickStop          uint16 = 1 << 5
	SwitchOnDisabled   uint16 = 1 << 6
	Warning            uint16 = 1 << 7
	Remote             uint16 = 1 << 9
	TargetReached      uint16 = 1 << 10
	InternalLimit      uint16 = 1 << 11
	SetpointAck        uint16 = 1 << 12
)

// Composite status-word values corresponding to named DS402 states.
const (
	OffState              = SwitchOnDisabled
	ReadyToSwitchOnState  = VoltageEnabled | ReadyToSwitchOn
	OnState               = QuickStop | VoltageEnabled | OperationEnable | SwitchedOn | ReadyToSwitchOn
	HomingCompleteState   = OnState | TargetReached | SetpointAck
)

// Control word values, DS402 0x6040.
const (
	Shutdown                 uint16 = 0x0006
	SwitchOnOrDisableOp      uint16 = 0x0007
	EnableOperation          uint16 = 0x000F
	FaultReset               uint16 = 0x0080
	DisableVoltage           uint16 = 0x0000
	SetAbsPointNoBlend       uint16 = 0x001F
)

// Timeouts that prevent the FSM from blocking forever on a misbehaving drive.
const (
	MotorResetDelay  = 10 * time.Millisecond
	MotorInitTimeout = 1 * time.Second
)

// FSM is a single drive's DS402 power state machine. It is a sub-object of
// the owning drive.Motor and is updated once per cycle with the drive's
// current status word.
type FSM struct {
	clock  clock.Clock
	state  State
	command Command

	statusWord  uint16
	controlWord uint16

	startMotorTS time.Time
}

// New constructs an FSM starting in OFF, using clk for timeout tracking (pass
// clock.New() in production, a *clock.Mock in tests).
func New(clk clock.Clock) *FSM {
	return &FSM{clock: clk, state: OFF}
}

// SetCommand requests a transition; DISABLE and ENABLE are always accepted,
// HOME is only meaningful from ON (silently a no-op from any other state,
// matching the original switch's default case).
func (f *FSM) SetCommand(cmd Command) {
	f.command = cmd
}

// State returns the current DS402 state.
func (f *FSM) State() State { return f.state }

// CompareState reports whether the FSM is currently in s.
func (f *FSM) CompareState(s State) bool { return f.state == s }

// GetControlWord returns the control word to write to the drive this cycle.
func (f *FSM) GetControlWord() uint16 { return f.controlWord }

// Update advances the state machine given this cycle's status word.
func (f *FSM) Update(statusWord uint16) {
	f.statusWord = statusWord

	switch f.command {
	case ENABLE:
		f.updateEnable()
	case DISABLE:
		f.updateDisable()
	case HOME:
		f.updateHome()
	case NONE:
	}
}

func (f *FSM) updateEnable() {
	switch f.state {
	case OFF:
		f.startMotorTS = f.clock.Now()
		f.controlWord = FaultReset
		f.state = SAFE_RESET
	case SAFE_RESET:
		f.controlWord = Shutdown
		if f.clock.Now().Sub(f.startMotorTS) > MotorResetDelay {
			f.state = PREPARE_TO_SWITCH_ON
		}
	case PREPARE_TO_SWITCH_ON:
		f.controlWord = SwitchOnOrDisableOp
		if f.statusWord&ReadyToSwitchOnState == ReadyToSwitchOnState {
			f.state = SWITCH_ON
		}
	case SWITCH_ON:
		f.controlWord = EnableOperation
		if f.statusWord&OnState == OnState {
			f.state = ON
		}
	case ON:
		f.command = NONE
	case FAULT:
		// no-op output; reported once by the owning drive.
	}

	if f.state != ON && f.state != FAULT && f.state != OFF &&
		f.clock.Now().Sub(f.startMotorTS) > MotorInitTimeout {
		f.state = OFF
	}
}

func (f *FSM) updateDisable() {
	f.controlWord = DisableVoltage
	if f.statusWord&OffState == OffState {
		f.state = OFF
		f.command = NONE
	}
}

func (f *FSM) updateHome() {
	switch f.state {
	case ON:
		f.controlWord = SetAbsPointNoBlend
		if f.statusWord&HomingCompleteState == HomingCompleteState {
			f.state = HOMING_COMPLETE
		}
	case HOMING_COMPLETE:
		f.controlWord = EnableOperation
		f.command = NONE
	case FAULT:
	}
}

// EnterFault transitions the FSM directly into FAULT, independent of the
// status word. Nothing in this module calls it: Motor.Update latches its
// own fault flag on a non-zero error code without changing the CoE state.
func (f *FSM) EnterFault() {
	f.state = FAULT
}
