// Package simdrive implements an in-process drive.PDO that mimics DS402
// transitions (C12): it interprets writes to the control word as state
// transitions mirroring coe's FSM rather than exchanging real PDO frames,
// letting the whole cyclic pipeline run bring-up-free against bus.Sim.
package simdrive

import "github.com/thetooth/robot-ctrl/coe"

// Drive is a simulated servo: its status word tracks the control word it
// was last written exactly the way a real drive's DS402 firmware would,
// and its actual position/velocity are synthesized directly from the
// target the host last commanded.
type Drive struct {
	statusWord     uint16
	controlWord    uint16
	targetPosition int32
	actualPosition int32
	actualVelocity int32
	actualTorque   int16
	followingError int32
	errorCode      uint16
	digitalInputs  uint32
}

// New returns a Drive starting in the OFF state (status word
// SwitchOnDisabled), as a freshly powered DS402 device would report.
func New() *Drive {
	return &Drive{statusWord: uint16(coe.OffState)}
}

func (d *Drive) GetStatusWord() uint16 { return d.statusWord }

// SetControlWord advances the simulated status word to whatever composite
// state the coe FSM would expect to see in response to this control word,
// matching the real DS402 transitions in coe.FSM.updateEnable/updateHome.
func (d *Drive) SetControlWord(v uint16) {
	d.controlWord = v
	switch v {
	case coe.FaultReset:
		d.statusWord = uint16(coe.OffState)
	case coe.Shutdown:
		d.statusWord = uint16(coe.ReadyToSwitchOnState)
	case coe.SwitchOnOrDisableOp:
		d.statusWord = uint16(coe.ReadyToSwitchOnState)
	case coe.EnableOperation:
		d.statusWord = uint16(coe.OnState)
	case coe.DisableVoltage:
		d.statusWord = uint16(coe.OffState)
	case coe.SetAbsPointNoBlend:
		d.statusWord = uint16(coe.HomingCompleteState)
	}
}

func (d *Drive) GetActualPosition() int32 { return d.actualPosition }

// SetTargetPosition synthesizes actual_position = target_position and
// actual_velocity = delta(target) * 1000, i.e. the full position step is
// assumed to occur within a single (1ms-scaled) cycle.
func (d *Drive) SetTargetPosition(v int32) {
	delta := v - d.targetPosition
	d.actualVelocity = delta * 1000
	d.targetPosition = v
	d.actualPosition = v
}

func (d *Drive) GetActualVelocity() int32 { return d.actualVelocity }
func (d *Drive) SetTargetVelocity(int32)  {}

func (d *Drive) GetActualTorque() int16 { return d.actualTorque }
func (d *Drive) SetTargetTorque(v int16) { d.actualTorque = v }

func (d *Drive) GetFollowingError() int32 { return d.followingError }
func (d *Drive) GetErrorCode() uint16     { return d.errorCode }
func (d *Drive) GetDigitalInputs() uint32 { return d.digitalInputs }
func (d *Drive) SetDigitalOutputs(uint32) {}

// EmergencyStop reports bit 16 of the digital inputs word.
func (d *Drive) EmergencyStop() bool { return d.digitalInputs&(1<<16) != 0 }

// SetEmergencyStop lets a test or a simulated operator console assert or
// clear the drive's E-stop input.
func (d *Drive) SetEmergencyStop(v bool) {
	if v {
		d.digitalInputs |= 1 << 16
	} else {
		d.digitalInputs &^= 1 << 16
	}
}

// InjectErrorCode lets a test drive the drive into a DS402 error, which
// the owning Motor surfaces as a fault on its next Update.
func (d *Drive) InjectErrorCode(code uint16) { d.errorCode = code }
