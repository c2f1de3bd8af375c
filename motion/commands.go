package motion

import (
	"github.com/thetooth/robot-ctrl/kinematics"
	"github.com/thetooth/robot-ctrl/trajectory"
)

// SetTarget installs the single Cartesian pose Tracking steps toward. It is
// the target of the façade's "goto" command; "moveLinear" goes through
// SetWaypoints instead.
func (f *FSM) SetTarget(p kinematics.Pose) {
	f.target = p
}

// Target returns the currently active Cartesian target.
func (f *FSM) Target() kinematics.Pose {
	return f.target
}

// SetWaypoints replaces the pending waypoint queue consumed one pose per
// cycle by Pathing.
func (f *FSM) SetWaypoints(poses []kinematics.Pose) {
	f.waypoints = append(f.waypoints[:0], poses...)
}

// SetJogTarget installs the per-axis joint target Jogging steps toward.
func (f *FSM) SetJogTarget(axes [4]float64) {
	f.jogTarget = axes
}

// CurrentJointPositions returns the OTG's most recently resynced joint
// positions (degrees), the base the façade's jog command adds its delta to.
func (f *FSM) CurrentJointPositions() [trajectory.Axes]float64 {
	return f.input.CurrentPosition
}

// MaxVelocity returns the OTG's currently configured per-axis velocity
// limit, the domain the façade's waypoint planner searches an entry scale
// factor within.
func (f *FSM) MaxVelocity() [trajectory.Axes]float64 {
	return f.input.MaxVelocity
}

// SetHomingOffsets replaces the per-axis homing offsets applied the next
// time Home runs; it is the façade's "setHome" command.
func (f *FSM) SetHomingOffsets(o HomingOffsets) {
	f.homingOffsets = o
}

// ForceIdle snaps the top-level state directly to Idle; it backs the
// façade's "reset" command when the FSM is not currently running.
func (f *FSM) ForceIdle() {
	f.state = Idle
}

// DriveStatus is one drive's entry in a status snapshot.
type DriveStatus struct {
	SlaveID        int     `json:"slaveID"`
	StatusWord     uint16  `json:"statusWord"`
	ControlWord    uint16  `json:"controlWord"`
	ErrorCode      uint16  `json:"errorCode"`
	Fault          bool    `json:"fault"`
	LastFault      string  `json:"lastFault"`
	ActualTorque   float64 `json:"actualTorque"`
	FollowingError float64 `json:"followingError"`
}

// DriveStatuses snapshots every drive in the group for the outbound status
// payload.
func (f *FSM) DriveStatuses() []DriveStatus {
	statuses := make([]DriveStatus, len(f.group.Drives))
	for i, d := range f.group.Drives {
		statuses[i] = DriveStatus{
			SlaveID:        d.SlaveID,
			StatusWord:     d.GetStatusWord(),
			ControlWord:    d.GetControlWord(),
			ErrorCode:      d.GetErrorCode(),
			Fault:          d.Fault(),
			LastFault:      d.LastFault(),
			ActualTorque:   d.GetTorque(),
			FollowingError: d.GetFollowingError(),
		}
	}
	return statuses
}

// Pose returns the Cartesian pose corresponding to the OTG's most recently
// resynced joint positions, via forward kinematics.
func (f *FSM) Pose() kinematics.Pose {
	cp := f.input.CurrentPosition
	return kinematics.ForwardKinematics(cp[0], cp[1], cp[2], cp[3], f.target.ToolOffset)
}

// LastOTGResult returns the Result of the most recent OTG.Update call.
func (f *FSM) LastOTGResult() trajectory.Result { return f.lastOTGResult }

// LastKinematicResult returns the Result of the most recent kinematics
// solve, as distinct from KinematicAlarm's boolean collapse of it.
func (f *FSM) LastKinematicResult() kinematics.Result { return f.lastKinematicResult }

// AnyDriveFault reports whether any drive in the group has latched a fault,
// one of the terms of the status snapshot's alarm computation.
func (f *FSM) AnyDriveFault() bool { return f.group.AnyFault() }

// EtherCATFault reports whether the bus supervisor currently has the bus
// marked degraded.
func (f *FSM) EtherCATFault() bool { return f.etherCATFault.Load() }

// SetShutdown lets the thermal supervisor request an orderly shutdown (the
// process signal handler stores Shutdown directly); the cyclic pipeline
// observes it and exits once the FSM is Idle or HaltTimeout has elapsed.
func (f *FSM) SetShutdown(v bool) { f.Shutdown.Store(v) }

// KinematicAlarm reports whether the most recent Tracking/Pathing cycle hit
// a non-Success kinematics result short of an outright violation (e.g. a
// clamped joint limit).
func (f *FSM) KinematicAlarm() bool { return f.kinematicAlarm }

// RuntimeDuration returns the number of cycles Update has been called,
// regardless of state.
func (f *FSM) RuntimeDuration() int64 { return f.runtimeDuration }

// PowerOnDuration returns the number of cycles spent actively driving
// motion (Tracking, Jogging, or Pathing).
func (f *FSM) PowerOnDuration() int64 { return f.powerOnDuration }
