package drive

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/coe"
)

// ModeOfOperation values for DS402 object 0x6060.
type ModeOfOperation int8

const (
	ModeNone            ModeOfOperation = 0
	ModeProfiledPosition ModeOfOperation = 1
	ModeVelocity         ModeOfOperation = 3
	ModeTorque           ModeOfOperation = 4
	ModeHoming           ModeOfOperation = 6
	ModeCSP              ModeOfOperation = 8
)

// torqueHistoryCapacity is the FIFO depth of the torque moving-average
// guard (spec.md §3: "bounded torque history (FIFO, capacity ~500 samples)").
const torqueHistoryCapacity = 500

// maxTargetDeviationDeg is the largest accepted |target - current| jump per
// move, guarding against commanding a drive to "leave low earth orbit" the
// first cycle CSP activates (see original_source Robot/Drive/drive.cpp).
const maxTargetDeviationDeg = 300.0

// Motor is the cooked, degrees/deg-per-second view of a single servo drive:
// identity, calibration, soft limits, torque guard, and an embedded DS402
// power state machine. It is constructed once at bring-up and mutated only
// from the cyclic control thread.
type Motor struct {
	*coe.FSM

	SlaveID int
	pdo     PDO

	positionRatio float64 // PDO units per degree
	velocityRatio float64 // PDO units per deg/s

	MinPosition, MaxPosition float64
	TorqueThreshold          float64

	fault     bool
	lastFault string

	torqueHistory []float64
}

// NewMotor constructs a Motor bound to pdo, with the given calibration and
// soft position bounds.
func NewMotor(slaveID int, pdo PDO, positionRatio, velocityRatio, minPosition, maxPosition float64, fsm *coe.FSM) *Motor {
	return &Motor{
		FSM:             fsm,
		SlaveID:         slaveID,
		pdo:             pdo,
		positionRatio:   positionRatio,
		velocityRatio:   velocityRatio,
		MinPosition:     minPosition,
		MaxPosition:     maxPosition,
		TorqueThreshold: 100,
	}
}

// Update pulls the status word from the PDO view into the CoE FSM, mirrors
// the resulting control word back, and clamps the CSP target position to
// the current actual position so activation never commands a runaway delta.
//
// Entry into CoE FAULT or a non-zero DS402 error code sets fault exactly
// once and captures lastFault.
func (m *Motor) Update() {
	m.FSM.Update(m.pdo.GetStatusWord())

	if m.FSM.CompareState(coe.FAULT) && !m.fault {
		m.lastFault = fmt.Sprintf("Drive %d CoE entered %s state", m.SlaveID, m.FSM.State())
		m.fault = true
	}
	if errorCode := m.pdo.GetErrorCode(); errorCode != 0 && !m.fault {
		m.lastFault = fmt.Sprintf("Drive %d error code %#x", m.SlaveID, errorCode)
		m.fault = true
	}

	m.pdo.SetControlWord(m.FSM.GetControlWord())
	m.pdo.SetTargetPosition(m.pdo.GetActualPosition())
}

// Move commands a new CSP target position in degrees. It refuses (returning
// true, the drive's new fault state) if the drive is already faulted; else
// it asserts the 300 degree single-cycle deviation bound and the soft
// position limits, then appends to the torque history and refuses if the
// moving average exceeds TorqueThreshold. On success it writes
// target*positionRatio to the output PDO and leaves fault false.
func (m *Motor) Move(target float64) bool {
	if m.fault {
		return m.fault
	}

	current := m.GetPosition()
	if deviation := target - current; deviation > maxTargetDeviationDeg || deviation < -maxTargetDeviationDeg {
		m.fail(fmt.Sprintf("Target deviation %.2f -> %.2f", current, target))
		return m.fault
	}
	if target < m.MinPosition || target > m.MaxPosition {
		m.fail(fmt.Sprintf("Outside soft limits: %.2f", target))
		return m.fault
	}

	m.torqueHistory = append(m.torqueHistory, m.GetTorque())
	if len(m.torqueHistory) > torqueHistoryCapacity {
		m.torqueHistory = m.torqueHistory[len(m.torqueHistory)-torqueHistoryCapacity:]
	}
	avg, err := stats.Mean(m.torqueHistory)
	if err == nil && avg > m.TorqueThreshold {
		m.fail(fmt.Sprintf("Torque threshold exceeded: %.0f%%", avg))
		return m.fault
	}

	m.pdo.SetTargetPosition(int32(target * m.positionRatio))
	return m.fault
}

func (m *Motor) fail(reason string) {
	m.fault = true
	m.lastFault = reason
}

// GetPosition returns the current actual position in degrees.
func (m *Motor) GetPosition() float64 {
	return float64(m.pdo.GetActualPosition()) / m.positionRatio
}

// GetVelocity returns the current actual velocity in degrees/second.
func (m *Motor) GetVelocity() float64 {
	return float64(m.pdo.GetActualVelocity()) / m.velocityRatio
}

// GetTorque returns the current actual torque as a percentage.
func (m *Motor) GetTorque() float64 {
	return float64(m.pdo.GetActualTorque()) / 10.0
}

// GetFollowingError returns the current following error in degrees.
func (m *Motor) GetFollowingError() float64 {
	return float64(m.pdo.GetFollowingError()) / m.positionRatio
}

// GetErrorCode returns the drive's raw DS402 error code.
func (m *Motor) GetErrorCode() uint16 {
	return m.pdo.GetErrorCode()
}

// GetStatusWord returns the drive's raw DS402 status word, as last read by
// Update.
func (m *Motor) GetStatusWord() uint16 {
	return m.pdo.GetStatusWord()
}

// GetControlWord returns the control word Update last wrote to the drive.
func (m *Motor) GetControlWord() uint16 {
	return m.FSM.GetControlWord()
}

// GetEmergencyStop reports the drive's digital-input E-stop bit.
func (m *Motor) GetEmergencyStop() bool {
	return m.pdo.EmergencyStop()
}

// Fault reports whether the drive has latched a fault.
func (m *Motor) Fault() bool { return m.fault }

// LastFault returns the human-readable reason for the most recent fault.
func (m *Motor) LastFault() string { return m.lastFault }

// SDO write helpers. bus.Bus.WriteSDO returns the working counter; a
// working counter of zero is surfaced as an error so callers (and the Drive
// Group's fan-out sum) can distinguish success from silent drops.

func (m *Motor) SetModeOfOperation(b bus.Bus, value ModeOfOperation) (int, error) {
	wkc := b.WriteSDO(m.SlaveID, 0x6060, 0, []byte{byte(value)})
	return wkc, sdoErr(wkc, "set mode of operation")
}

func (m *Motor) SetHomingMode(b bus.Bus, value int8) (int, error) {
	wkc := b.WriteSDO(m.SlaveID, 0x6098, 0, []byte{byte(value)})
	return wkc, sdoErr(wkc, "set homing mode")
}

func (m *Motor) SetHomingOffset(b bus.Bus, valueDeg float64) (int, error) {
	final := int32(valueDeg * m.positionRatio)
	wkc := b.WriteSDO(m.SlaveID, 0x607C, 0, int32ToBytes(final))
	return wkc, sdoErr(wkc, "set homing offset")
}

// SetTorqueLimit writes the drive-internal torque limit (0x6072, 0.1%
// units), clamped to [0, 100]%.
func (m *Motor) SetTorqueLimit(b bus.Bus, percent float64) (int, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	final := uint16(percent * 10)
	wkc := b.WriteSDO(m.SlaveID, 0x6072, 0, uint16ToBytes(final))
	return wkc, sdoErr(wkc, "set torque limit")
}

// SetTorqueThreshold sets the local moving-average fault threshold used by
// Move; it is not itself an SDO write.
func (m *Motor) SetTorqueThreshold(percent float64) {
	m.TorqueThreshold = percent
}

// SetFollowingWindow writes the drive's following-error window (0x6065),
// outside of which the drive itself raises AL009 and requires reset.
func (m *Motor) SetFollowingWindow(b bus.Bus, deg float64) (int, error) {
	if deg < 0 {
		deg = 0
	}
	final := uint32(deg * m.positionRatio)
	wkc := b.WriteSDO(m.SlaveID, 0x6065, 0, uint32ToBytes(final))
	return wkc, sdoErr(wkc, "set following window")
}

// FaultReset clears local fault state and torque history, then sends a
// FAULT_RESET control word via SDO so the drive itself also resets.
func (m *Motor) FaultReset(b bus.Bus) (int, error) {
	m.fault = false
	m.lastFault = "OK"
	m.torqueHistory = nil
	wkc := b.WriteSDO(m.SlaveID, 0x6040, 0, uint16ToBytes(coe.FaultReset))
	return wkc, sdoErr(wkc, "fault reset")
}

func sdoErr(wkc int, op string) error {
	if wkc <= 0 {
		return errors.Errorf("drive: %s: working counter %d", op, wkc)
	}
	return nil
}

func int32ToBytes(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func uint16ToBytes(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
