package motion

import "github.com/thetooth/robot-ctrl/trajectory"

// SetJoggingPreset installs the dynamics used whenever the FSM enters
// Jogging. It is safe to call from the façade at any time; jogging always
// reads joggingPreset fresh on entry via stepJog.
func (f *FSM) SetJoggingPreset(preset DynamicsPreset) {
	f.joggingPreset = preset
}

// setJoggingDynamics snapshots the OTG's current per-axis limits into
// previousDynamics (if not already saved) and applies joggingPreset,
// matching the original's jog-then-restore pattern in Robot/jogging.cpp.
func (f *FSM) setJoggingDynamics() {
	if f.previousDynamics == nil {
		saved := DynamicsPreset{
			SynchronisationMethod: f.input.Synchronization,
		}
		for i := 0; i < trajectory.Axes; i++ {
			saved.AxisConfigurations[i] = AxisDynamics{
				MaxVelocity:     f.input.MaxVelocity[i],
				MaxAcceleration: f.input.MaxAcceleration[i],
				MaxJerk:         f.input.MaxJerk[i],
			}
		}
		f.previousDynamics = &saved
	}
	f.applyDynamics(f.joggingPreset)
}

// restoreDynamics reinstates whatever dynamics preset was active before
// Jogging started, clearing the saved snapshot so the next Jog entry
// re-captures whatever is active at that time.
func (f *FSM) restoreDynamics() {
	if f.previousDynamics == nil {
		return
	}
	f.applyDynamics(*f.previousDynamics)
	f.previousDynamics = nil
}

func (f *FSM) applyDynamics(preset DynamicsPreset) {
	f.input.Synchronization = preset.SynchronisationMethod
	for i := 0; i < trajectory.Axes; i++ {
		f.input.MaxVelocity[i] = preset.AxisConfigurations[i].MaxVelocity
		f.input.MaxAcceleration[i] = preset.AxisConfigurations[i].MaxAcceleration
		f.input.MaxJerk[i] = preset.AxisConfigurations[i].MaxJerk
	}
}

// UpdateDynamics applies preset as the running tracking/pathing dynamics.
// Per the original's receiveSettings guard (Robot/settings.cpp), changing
// dynamics while the arm is actively running a motion state is refused:
// the OTG's current input limits must only change between motions, never
// mid-segment, or a running move could suddenly exceed the new bound.
func (f *FSM) UpdateDynamics(preset DynamicsPreset) bool {
	if f.Run.Load() {
		f.EventLog.Warning("Refusing dynamics update while running")
		return false
	}
	f.applyDynamics(preset)
	return true
}
