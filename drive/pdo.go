// Package drive implements the cooked PDO view of a single servo drive
// (C4): soft limits, torque/following guards, and the CoE FSM, plus the
// Drive Group fan-out over the axes that make up the arm.
package drive

// PDO is the capability set a drive's cyclic process-data view exposes, per
// the DS402 RX/TX mapping in spec.md §6. The only implementation in this
// module is simdrive.Drive; no bus-backed implementation reaching a real
// EtherCAT slave through bus.Bus exists here.
type PDO interface {
	GetStatusWord() uint16
	SetControlWord(uint16)

	GetActualPosition() int32
	SetTargetPosition(int32)

	GetActualVelocity() int32
	SetTargetVelocity(int32)

	GetActualTorque() int16
	SetTargetTorque(int16)

	GetFollowingError() int32
	GetErrorCode() uint16
	GetDigitalInputs() uint32
	SetDigitalOutputs(uint32)

	// EmergencyStop reports bit 16 of the digital inputs word.
	EmergencyStop() bool
}
