// Package motion implements the top-level motion FSM (C7): run/halt/home/
// track/jog orchestration over a drive.Group, the kinematics envelope, and
// the OTG. The cyclic thread exclusively owns this type; every other
// thread interacts with it only through the command/status façade's
// single-statement flag updates (see facade.Command).
package motion

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/coe"
	"github.com/thetooth/robot-ctrl/drive"
	"github.com/thetooth/robot-ctrl/eventlog"
	"github.com/thetooth/robot-ctrl/kinematics"
	"github.com/thetooth/robot-ctrl/logging"
	"github.com/thetooth/robot-ctrl/trajectory"
)

// State is the top-level motion state.
type State int

const (
	Idle State = iota
	Reset
	Resetting
	Halt
	Halting
	Start
	Starting
	Home
	Homing
	Track
	Tracking
	Path
	Pathing
	Jog
	Jogging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Reset:
		return "Reset"
	case Resetting:
		return "Resetting"
	case Halt:
		return "Halt"
	case Halting:
		return "Halting"
	case Start:
		return "Start"
	case Starting:
		return "Starting"
	case Home:
		return "Home"
	case Homing:
		return "Homing"
	case Track:
		return "Track"
	case Tracking:
		return "Tracking"
	case Path:
		return "Path"
	case Pathing:
		return "Pathing"
	case Jog:
		return "Jog"
	case Jogging:
		return "Jogging"
	default:
		return "Unknown"
	}
}

// DynamicsPreset is a bundle of per-axis OTG limits plus a synchronization
// mode, as delivered by the KV settings watch on key dynamics.active.
type DynamicsPreset struct {
	ID                    string                                    `json:"id"`
	Name                  string                                    `json:"name"`
	AxisConfigurations    [trajectory.Axes]AxisDynamics             `json:"axisConfigurations"`
	SynchronisationMethod trajectory.SyncMode                       `json:"synchronisationMethod"`
}

// AxisDynamics is one axis's entry in a DynamicsPreset.
type AxisDynamics struct {
	MaxVelocity     float64 `json:"max_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`
	MaxJerk         float64 `json:"max_jerk"`
}

// HomingOffsets carries the per-axis homing offset (degrees) applied before
// issuing HOME; the original source hardcodes J1=-235, J2=145 — SPEC_FULL
// generalizes that into a configured table covering all four axes.
type HomingOffsets [trajectory.Axes]float64

// FSM is the top-level motion state machine.
type FSM struct {
	log *logging.Logger

	bus   bus.Bus
	group *drive.Group
	otg   *trajectory.Generator
	input trajectory.InputParameter

	EventLog *eventlog.Log

	state State

	// Shared cross-thread flags. Atomics so the ingress goroutine can set
	// them without a mutex; everything else is owned exclusively by the
	// cyclic thread per the single-writer rule in spec.md §5.
	Run          atomic.Bool
	Jog          atomic.Bool
	Estop        atomic.Bool
	ResetFlag    atomic.Bool
	NeedsHoming  atomic.Bool
	Shutdown     atomic.Bool

	inSync          bool
	kinematicAlarm  bool
	etherCATFault   atomic.Bool

	lastOTGResult       trajectory.Result
	lastKinematicResult kinematics.Result

	target     kinematics.Pose
	waypoints  []kinematics.Pose

	jogTarget [trajectory.Axes]float64

	homingOffsets HomingOffsets
	axisToHome    int

	previousDynamics *DynamicsPreset
	joggingPreset    DynamicsPreset
	pathBaseVelocity [trajectory.Axes]float64

	runtimeDuration  int64 // cycles
	powerOnDuration  int64 // cycles

	lastEstop bool
}

// New constructs an idle FSM driving group over b, stepping otg once per
// cycle.
func New(log *logging.Logger, b bus.Bus, group *drive.Group, otg *trajectory.Generator, homingOffsets HomingOffsets) *FSM {
	f := &FSM{
		log:           log,
		bus:           b,
		group:         group,
		otg:           otg,
		EventLog:      eventlog.New(),
		state:         Idle,
		homingOffsets: homingOffsets,
	}
	f.Estop.Store(true)
	f.lastEstop = true
	return f
}

// State returns the current top-level state.
func (f *FSM) State() State { return f.state }

// Update advances every drive's CoE FSM, then runs one step of the
// top-level transition table. It must be called exactly once per cycle
// from the cyclic pipeline.
func (f *FSM) Update() {
	f.group.Update()

	f.handleEstopLatch()

	switch f.state {
	case Idle:
		f.stepIdle()
	case Reset:
		f.stepReset()
	case Resetting:
		f.stepResetting()
	case Halt:
		f.stepHalt()
	case Halting:
		f.stepHalting()
	case Start:
		f.stepStart()
	case Starting:
		f.stepStarting()
	case Home:
		f.stepHome()
	case Homing:
		f.stepHoming()
	case Track:
		f.stepTrack()
	case Tracking:
		f.stepTracking()
	case Path:
		f.stepPath()
	case Pathing:
		f.stepPathing()
	case Jog:
		f.stepJog()
	case Jogging:
		f.stepJogging()
	}

	f.runtimeDuration++
	if f.state == Tracking || f.state == Jogging || f.state == Pathing {
		f.powerOnDuration++
	}
}

// handleEstopLatch polls the group E-stop and the EtherCAT fault flag once
// per cycle and clears run/reset/estop if either asserts; it re-asserts
// estop only on a later cycle where both are clear, logging the transition
// either way.
func (f *FSM) handleEstopLatch() {
	tripped := f.group.EmergencyStop() || f.etherCATFault.Load()

	if tripped {
		if f.lastEstop {
			f.EventLog.Critical("Emergency Stop")
		}
		f.Run.Store(false)
		f.ResetFlag.Store(false)
		f.Estop.Store(false)
		f.lastEstop = false
		return
	}

	if !f.lastEstop {
		f.EventLog.Info("Emergency Stop reset")
		f.Estop.Store(true)
		f.lastEstop = true
	}
}

// SetEtherCATFault lets the bus supervisor (C9) drive the FSM into Halt.
func (f *FSM) SetEtherCATFault(v bool) { f.etherCATFault.Store(v) }

func (f *FSM) stepIdle() {
	if f.ResetFlag.Load() {
		f.ResetFlag.Store(false)
		f.NeedsHoming.Store(true)
		f.state = Reset
		return
	}
	if f.Estop.Load() && f.Run.Load() {
		f.EventLog.Info("Entering run mode")
		f.state = Reset
		return
	}
	if !f.Estop.Load() {
		f.NeedsHoming.Store(true)
		f.state = Halt
	}
}

func (f *FSM) stepReset() {
	f.group.FaultReset(f.bus)

	pendingErrorCode := false
	for _, d := range f.group.Drives {
		if d.GetErrorCode() != 0 {
			f.EventLog.Warning(fmt.Sprintf("Drive %d has pending error code %#x", d.SlaveID, d.GetErrorCode()))
			pendingErrorCode = true
		}
	}
	if pendingErrorCode {
		return
	}
	f.state = Resetting
}

func (f *FSM) stepResetting() {
	anyError := false
	for _, d := range f.group.Drives {
		if d.GetErrorCode() != 0 {
			anyError = true
		}
	}
	if anyError {
		return
	}
	f.EventLog.Info("Fault reset complete")
	if f.Run.Load() {
		f.state = Start
	} else {
		f.state = Idle
	}
}

func (f *FSM) stepHalt() {
	f.group.SetModeOfOperation(f.bus, drive.ModeNone)
	f.group.SetCommand(coe.DISABLE)
	f.state = Halting
}

func (f *FSM) stepHalting() {
	allOff := true
	for _, d := range f.group.Drives {
		if !d.CompareState(coe.OFF) {
			allOff = false
		}
	}
	if allOff {
		f.state = Idle
	}
}

func (f *FSM) stepStart() {
	f.group.SetCommand(coe.ENABLE)
	f.state = Starting
}

func (f *FSM) stepStarting() {
	allOn := true
	for _, d := range f.group.Drives {
		if !d.CompareState(coe.ON) {
			allOn = false
		}
	}
	if allOn {
		if f.NeedsHoming.Load() {
			f.EventLog.Info("Entered ON state, enter homing")
			f.state = Home
		} else {
			f.EventLog.Info("Entered ON state, enter tracking")
			f.state = Track
		}
		return
	}
	if !f.Estop.Load() || !f.Run.Load() {
		f.state = Halt
	}
}

func (f *FSM) stepHome() {
	f.group.SetModeOfOperation(f.bus, drive.ModeHoming)
	for i, d := range f.group.Drives {
		if i < len(f.homingOffsets) {
			d.SetHomingOffset(f.bus, f.homingOffsets[i])
		}
	}
	f.axisToHome = 0
	f.state = Homing
}

func (f *FSM) stepHoming() {
	// advance one axis at a time through HOME, matching the original's
	// axisToHome counter rather than waiting on every drive at once.
	if f.axisToHome < len(f.group.Drives) {
		d := f.group.Drives[f.axisToHome]
		d.SetCommand(coe.HOME)
		if d.CompareState(coe.HOMING_COMPLETE) {
			f.axisToHome++
		}
	}

	if f.axisToHome >= len(f.group.Drives) {
		f.EventLog.Info("Homing complete")
		f.NeedsHoming.Store(false)
		f.Run.Store(false)
		f.state = Halt
		return
	}

	if !f.Estop.Load() || !f.Run.Load() {
		f.state = Halt
	}
}

func (f *FSM) stepTrack() {
	f.group.SetModeOfOperation(f.bus, drive.ModeCSP)
	f.state = Tracking
}

func (f *FSM) stepTracking() {
	halt := f.tracking()
	if !f.Estop.Load() || !f.Run.Load() || halt {
		f.EventLog.Info(fmt.Sprintf("Tracking interrupted EStop: %v Run: %v Tracking: %v",
			f.Estop.Load(), f.Run.Load(), halt))
		f.inSync = false
		f.state = Halt
	}
}

func (f *FSM) stepPath() {
	f.group.SetModeOfOperation(f.bus, drive.ModeCSP)
	f.pathBaseVelocity = f.input.MaxVelocity
	f.state = Pathing
}

// stepPathing drains the waypoint queue into the tracking target one pose
// at a time; it is otherwise identical to Tracking, matching spec.md's
// Open Question that Path/Pathing is "currently equivalent to Tracking fed
// from waypoints". Each popped pose's VelocityScale (as computed by the
// façade's trajectory.PlanIntermediatePath call) rescales input.MaxVelocity
// off the dynamics snapshotted on Path entry, so a sharp corner slows the
// approach instead of forcing an axis to reverse mid-segment.
func (f *FSM) stepPathing() {
	if len(f.waypoints) > 0 {
		f.target = f.waypoints[0]
		f.waypoints = f.waypoints[1:]

		scale := f.target.VelocityScale
		if scale <= 0 || scale > 1 {
			scale = 1
		}
		for i := 0; i < trajectory.Axes; i++ {
			f.input.MaxVelocity[i] = f.pathBaseVelocity[i] * scale
		}
	}
	halt := f.tracking()
	if !f.Estop.Load() || !f.Run.Load() || halt {
		f.EventLog.Info(fmt.Sprintf("Pathing interrupted EStop: %v Run: %v", f.Estop.Load(), f.Run.Load()))
		f.state = Halt
	}
}

func (f *FSM) stepJog() {
	f.group.SetModeOfOperation(f.bus, drive.ModeCSP)
	f.setJoggingDynamics()
	f.state = Jogging
}

func (f *FSM) stepJogging() {
	halt := f.jogging()
	if !f.Estop.Load() || !f.Run.Load() || halt {
		f.restoreDynamics()
		f.inSync = false
		f.state = Halt
	}
}

// tracking is the Tracking step body (also reused by Pathing): resync the
// OTG to the actual joint state on first entry, run kinematics, step the
// OTG, postprocess, then move every drive.
func (f *FSM) tracking() bool {
	f.resyncIfNeeded()

	cx, cy, cz, cr, preResult := kinematics.Preprocessing(f.target.X, f.target.Y, f.target.Z, f.target.R)
	ik, ikResult := kinematics.InverseKinematics(cx, cy, cz, cr, f.target.ToolOffset)

	if ikResult != kinematics.Singularity {
		f.input.TargetPosition = [trajectory.Axes]float64{ik.Alpha, ik.Beta, ik.Theta, ik.Phi}
	}
	kinResult := ikResult
	if kinResult == kinematics.Success {
		kinResult = preResult
	}
	f.kinematicAlarm = kinResult != kinematics.Success
	f.lastKinematicResult = kinResult

	out, otgResult := f.otg.Update(&f.input)
	f.lastOTGResult = otgResult

	_, postResult := kinematics.Postprocessing(out.NewPosition[0], out.NewPosition[1], out.NewPosition[2], out.NewPosition[3], f.target.ToolOffset)
	if postResult == kinematics.ForwardKinematicViolation {
		f.EventLog.Error("Forward kinematic violation, refusing new target")
		f.Run.Store(false)
		return true
	}

	if f.group.Move(out.NewPosition[:]) {
		for _, d := range f.group.Drives {
			if d.Fault() {
				f.EventLog.Error(fmt.Sprintf("J%d %s", d.SlaveID, d.LastFault()), f.diagnosticDump())
			}
		}
		return true
	}

	out.PassToInput(&f.input)
	return false
}

// jogging is the Jogging step body: identical resync to tracking, but
// skips kinematics entirely — the jog target is set directly by command.
func (f *FSM) jogging() bool {
	f.resyncIfNeeded()

	f.input.TargetPosition = f.jogTarget

	out, otgResult := f.otg.Update(&f.input)
	f.lastOTGResult = otgResult

	if f.group.Move(out.NewPosition[:]) {
		for _, d := range f.group.Drives {
			if d.Fault() {
				f.EventLog.Error(fmt.Sprintf("J%d %s", d.SlaveID, d.LastFault()), f.diagnosticDump())
			}
		}
		return true
	}

	out.PassToInput(&f.input)
	return false
}

func (f *FSM) resyncIfNeeded() {
	if f.inSync {
		return
	}
	for i, d := range f.group.Drives {
		if i >= trajectory.Axes {
			break
		}
		f.input.CurrentPosition[i] = d.GetPosition()
		f.input.CurrentVelocity[i] = d.GetVelocity()
		f.input.CurrentAcceleration[i] = 0
	}
	f.EventLog.Kinematic("Resync OTG to actual position")
	f.inSync = true
}

func (f *FSM) diagnosticDump() map[string]interface{} {
	dump := make(map[string]interface{}, len(f.group.Drives))
	for _, d := range f.group.Drives {
		dump[fmt.Sprintf("J%d", d.SlaveID)] = map[string]interface{}{
			"position":       d.GetPosition(),
			"followingError": d.GetFollowingError(),
			"torque":         d.GetTorque(),
			"errorCode":      d.GetErrorCode(),
		}
	}
	return dump
}
