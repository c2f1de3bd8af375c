// Package facade implements the command/status boundary (C10) between the
// message bus and the motion FSM: inbound commands decode into
// single-statement FSM mutations, and the FSM's state is snapshotted into
// the outbound status and event payloads. The façade owns no FSM state of
// its own beyond what it needs to densify moveLinear into a waypoint queue.
package facade

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/eventlog"
	"github.com/thetooth/robot-ctrl/kinematics"
	"github.com/thetooth/robot-ctrl/motion"
	"github.com/thetooth/robot-ctrl/trajectory"
)

// Command type names carried on the motion.command subject.
const (
	Stop       = "stop"
	Start      = "start"
	Goto       = "goto"
	MoveLinear = "moveLinear"
	Jog        = "jog"
	Waypoints  = "waypoints"
	Reset      = "reset"
	Home       = "home"
	SetHome    = "setHome"
	HotStart   = "hotStart"
)

// Command is the decoded payload of a single motion.command message. Only
// the fields relevant to Type are populated by the sender.
type Command struct {
	Type          string                   `json:"type"`
	Pose          *kinematics.Pose         `json:"pose,omitempty"`
	Duration      float64                  `json:"duration,omitempty"`
	Jog           [trajectory.Axes]float64 `json:"jog,omitempty"`
	Waypoints     []kinematics.Pose        `json:"waypoints,omitempty"`
	HomingOffsets motion.HomingOffsets     `json:"homingOffsets,omitempty"`
}

// Facade decodes inbound commands onto fsm and builds outbound status
// snapshots from it.
type Facade struct {
	fsm         *motion.FSM
	cyclePeriod time.Duration

	lastWaypoint kinematics.Pose
}

// New returns a Facade driving fsm, using cyclePeriod to size the linear
// interpolation moveLinear performs.
func New(fsm *motion.FSM, cyclePeriod time.Duration) *Facade {
	return &Facade{fsm: fsm, cyclePeriod: cyclePeriod}
}

// Dispatch decodes one motion.command payload and applies it to the FSM.
// A decode failure is logged as an Error event and never touches FSM
// state, so a malformed command from one client cannot corrupt the
// machine's run state.
func (fac *Facade) Dispatch(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		fac.fsm.EventLog.Error(fmt.Sprintf("facade: decode command: %v", err))
		return
	}

	switch cmd.Type {
	case Stop:
		fac.fsm.Run.Store(false)
		fac.fsm.Jog.Store(false)

	case Start:
		if fac.fsm.Estop.Load() {
			fac.fsm.Run.Store(true)
		}

	case Goto:
		if fac.fsm.Estop.Load() && !fac.fsm.Jog.Load() && cmd.Pose != nil {
			fac.fsm.SetTarget(*cmd.Pose)
			fac.lastWaypoint = *cmd.Pose
		}

	case MoveLinear:
		if fac.fsm.Estop.Load() && !fac.fsm.Jog.Load() && cmd.Pose != nil {
			fac.densify(*cmd.Pose, cmd.Duration)
		}

	case Jog:
		if fac.fsm.Estop.Load() {
			fac.fsm.Run.Store(true)
			fac.fsm.Jog.Store(true)
			current := fac.fsm.CurrentJointPositions()
			var target [trajectory.Axes]float64
			for i := range target {
				target[i] = current[i] + cmd.Jog[i]
			}
			fac.fsm.SetJogTarget(target)
		}

	case Waypoints:
		if fac.fsm.Estop.Load() {
			waypoints := fac.applyEntryVelocityScales(cmd.Waypoints)
			fac.fsm.SetWaypoints(waypoints)
			if n := len(waypoints); n > 0 {
				fac.lastWaypoint = waypoints[n-1]
			}
		}

	case Reset:
		fac.fsm.ResetFlag.Store(true)
		if !fac.fsm.Run.Load() {
			fac.fsm.ForceIdle()
		}

	case Home:
		fac.fsm.NeedsHoming.Store(true)
		fac.fsm.Run.Store(true)

	case SetHome:
		fac.fsm.SetHomingOffsets(cmd.HomingOffsets)
		fac.fsm.NeedsHoming.Store(true)
		fac.fsm.Run.Store(true)

	case HotStart:
		fac.fsm.NeedsHoming.Store(false)

	default:
		fac.fsm.EventLog.Error(fmt.Sprintf("facade: unknown command %q", cmd.Type))
	}
}

// densify interpolates linearly between lastWaypoint (the most recent goto
// or moveLinear target, or the last pose of a waypoints command) and target
// over duration,
// producing one waypoint per cycle period, and installs the result as the
// FSM's waypoint queue.
func (fac *Facade) densify(target kinematics.Pose, duration float64) {
	steps := int(duration / fac.cyclePeriod.Seconds())
	if steps < 1 {
		steps = 1
	}

	from := fac.lastWaypoint
	waypoints := make([]kinematics.Pose, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		waypoints = append(waypoints, kinematics.Pose{
			X:          lerp(from.X, target.X, t),
			Y:          lerp(from.Y, target.Y, t),
			Z:          lerp(from.Z, target.Z, t),
			R:          lerp(from.R, target.R, t),
			ToolOffset: target.ToolOffset,
		})
	}

	fac.fsm.SetWaypoints(fac.applyEntryVelocityScales(waypoints))
	fac.lastWaypoint = target
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// applyEntryVelocityScales runs poses through trajectory.PlanIntermediatePath
// in joint space and stamps the resulting per-waypoint entry velocity scale
// back onto each Cartesian pose's VelocityScale, so Pathing can rescale
// input.MaxVelocity as it drains the queue. If the inverse kinematics
// can't solve any pose (Singularity), the whole queue is returned
// unchanged, with no scale stamped on any pose.
func (fac *Facade) applyEntryVelocityScales(poses []kinematics.Pose) []kinematics.Pose {
	if len(poses) < 2 {
		return poses
	}

	joints := make([]trajectory.Waypoint, len(poses))
	for i, p := range poses {
		ik, result := kinematics.InverseKinematics(p.X, p.Y, p.Z, p.R, p.ToolOffset)
		if result == kinematics.Singularity {
			return poses
		}
		joints[i] = trajectory.Waypoint{ik.Alpha, ik.Beta, ik.Theta, ik.Phi}
	}

	origin := trajectory.InputParameter{
		CurrentPosition: fac.fsm.CurrentJointPositions(),
		MaxVelocity:     fac.fsm.MaxVelocity(),
	}

	planned, err := trajectory.PlanIntermediatePath(origin, joints)
	if err != nil {
		fac.fsm.EventLog.Error(fmt.Sprintf("facade: plan waypoint entry velocity: %v", err))
		return poses
	}

	for i := range poses {
		poses[i].VelocityScale = planned[i].Scale
	}
	return poses
}

// EtherCATStatus is the DC sync snapshot the cyclic pipeline hands the
// façade each tick; the FSM has no notion of the bus's distributed clock,
// so Snapshot takes it as a parameter rather than reading it off the FSM.
type EtherCATStatus struct {
	Interval     time.Duration   `json:"interval"`
	Sync0        time.Duration   `json:"sync0"`
	Compensation time.Duration   `json:"compensation"`
	Integral     int64           `json:"integral"`
	State        bus.SlaveState  `json:"state"`
}

// OTGStatus mirrors the two result enums a status consumer needs to
// diagnose a stalled or alarmed motion without reaching into the FSM.
type OTGStatus struct {
	Result          trajectory.Result  `json:"result"`
	KinematicResult kinematics.Result  `json:"kinematicResult"`
}

// Status is the full outbound snapshot published on motion.status.
type Status struct {
	Run             bool                `json:"run"`
	Estop           bool                `json:"estop"`
	Alarm           bool                `json:"alarm"`
	NeedsHoming     bool                `json:"needsHoming"`
	State           string              `json:"state"`
	OTG             OTGStatus           `json:"otg"`
	EtherCAT        EtherCATStatus      `json:"ethercat"`
	Drives          []motion.DriveStatus `json:"drives"`
	Pose            kinematics.Pose     `json:"pose"`
	RuntimeDuration int64               `json:"runtimeDuration"`
	PowerOnDuration int64               `json:"powerOnDuration"`
	CPUTemperature  float64             `json:"cpuTemperature"`
	DiagMsg         string              `json:"diagMsg"`
}

// Snapshot builds the outbound status payload and, in the same call,
// drains the event log — spec.md's "status emitter also drains the event
// log" — so the caller can publish motion.status and motion.event from one
// consistent tick without racing a second drain. ethercat and
// cpuTemperature come from the pipeline and thermal supervisor
// respectively, neither of which the FSM tracks itself.
func (fac *Facade) Snapshot(ethercat EtherCATStatus, cpuTemperature float64) (Status, []eventlog.Event) {
	f := fac.fsm
	alarm := f.AnyDriveFault() || f.KinematicAlarm() || f.EtherCATFault() || !f.Estop.Load()

	events := f.EventLog.Drain()
	diagMsg := ""
	if len(events) > 0 {
		diagMsg = events[len(events)-1].Message
	}

	status := Status{
		Run:         f.Run.Load(),
		Estop:       f.Estop.Load(),
		Alarm:       alarm,
		NeedsHoming: f.NeedsHoming.Load(),
		State:       f.State().String(),
		OTG: OTGStatus{
			Result:          f.LastOTGResult(),
			KinematicResult: f.LastKinematicResult(),
		},
		EtherCAT:        ethercat,
		Drives:          f.DriveStatuses(),
		Pose:            f.Pose(),
		RuntimeDuration: f.RuntimeDuration(),
		PowerOnDuration: f.PowerOnDuration(),
		CPUTemperature:  cpuTemperature,
		DiagMsg:         diagMsg,
	}
	return status, events
}
