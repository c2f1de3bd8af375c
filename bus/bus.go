// Package bus abstracts the EtherCAT master (C2): cyclic PDO exchange, SDO
// writes, and slave state management. The real master library (bus
// discovery, PDO mapping, SDO transport) is an out-of-scope external
// collaborator; this package only defines the boundary it is consumed
// through, plus a loop-back simulator used by cmd/scara-ctrld's simulated
// mode and in tests.
package bus

import "github.com/pkg/errors"

// SlaveState mirrors the EtherCAT state machine states relevant to bring-up
// and recovery.
type SlaveState int

const (
	StateInit SlaveState = iota
	StatePreOp
	StateSafeOp
	StateSafeOpAck
	StateOp
)

// ErrNotConfigured is returned by operations attempted before Bringup.
var ErrNotConfigured = errors.New("bus: not configured, call Bringup first")

// Bus is the abstract boundary the cyclic pipeline (C11) and the bus
// supervisor (C9) depend on. A real implementation wraps an EtherCAT master
// (e.g. SOEM); Sim (this package) is a loop-back implementation used for
// bring-up without hardware and in tests.
type Bus interface {
	// Bringup discovers slaves on iface and returns the slave count, the
	// expected working counter, and whether every slave is DC-capable.
	Bringup(iface string) (slaveCount int, expectedWKC int, dcCapable bool, err error)

	// SendProcess transmits the outbound PDO frame for this cycle.
	SendProcess()

	// ReceiveProcess blocks for the inbound PDO frame and returns the
	// working counter (number of slaves that processed the frame).
	ReceiveProcess() int

	// WriteSDO performs an acyclic SDO write and returns the working
	// counter (0 on failure).
	WriteSDO(slave int, index uint16, subindex uint8, data []byte) int

	// SetDCSync0 enables or disables the DC sync0 pulse on a slave.
	SetDCSync0(slave int, enabled bool, period, shift int64)

	// ReadState refreshes every slave's reported EtherCAT state.
	ReadState() int

	// WriteState requests that a slave (0 = all slaves) transition to
	// target and returns the working counter of the request.
	WriteState(slave int, target SlaveState) int

	// ReconfigSlave attempts to bring a single misbehaving slave back
	// in sync with the bus's expected mapping.
	ReconfigSlave(slave int) int

	// RecoverSlave attempts a full slave recovery (re-address + re-map).
	RecoverSlave(slave int) int

	// Statecheck returns the last-known state of a slave.
	Statecheck(slave int) SlaveState

	// Close tears down the bus connection.
	Close() error
}
