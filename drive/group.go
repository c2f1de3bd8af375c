package drive

import (
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/coe"
)

// Group is an ordered sequence of drive handles making up the arm. Fan-out
// operations return the sum of per-drive working counters; the group owns
// no extra state beyond the slice of handles.
type Group struct {
	Drives []*Motor
}

// NewGroup returns a Group over drives, in axis order.
func NewGroup(drives ...*Motor) *Group {
	return &Group{Drives: drives}
}

// Update advances every drive's CoE FSM for this cycle.
func (g *Group) Update() {
	for _, d := range g.Drives {
		d.Update()
	}
}

// SetCommand fans a CoE command out to every drive.
func (g *Group) SetCommand(cmd coe.Command) {
	for _, d := range g.Drives {
		d.SetCommand(cmd)
	}
}

// Move fans target positions (indexed the same as Drives) out to every
// drive, returning true if any drive reports a fault.
func (g *Group) Move(targets []float64) bool {
	anyFault := false
	for i, d := range g.Drives {
		if i >= len(targets) {
			break
		}
		if d.Move(targets[i]) {
			anyFault = true
		}
	}
	return anyFault
}

// EmergencyStop is the OR across every member's E-stop input bit.
func (g *Group) EmergencyStop() bool {
	return lo.SomeBy(g.Drives, func(d *Motor) bool { return d.GetEmergencyStop() })
}

// AnyFault reports whether any drive in the group has latched a fault.
func (g *Group) AnyFault() bool {
	return lo.SomeBy(g.Drives, func(d *Motor) bool { return d.Fault() })
}

// FaultReset fans a fault-reset SDO write out to every drive, summing
// working counters and combining every non-nil error with multierr so a
// caller sees every drive that failed to reset, not just the first.
func (g *Group) FaultReset(b bus.Bus) (int, error) {
	wkc := 0
	var errs error
	for _, d := range g.Drives {
		n, err := d.FaultReset(b)
		wkc += n
		errs = multierr.Append(errs, err)
	}
	return wkc, errs
}

// SetModeOfOperation fans a mode-of-operation SDO write out to every drive.
func (g *Group) SetModeOfOperation(b bus.Bus, mode ModeOfOperation) (int, error) {
	wkc := 0
	var errs error
	for _, d := range g.Drives {
		n, err := d.SetModeOfOperation(b, mode)
		wkc += n
		errs = multierr.Append(errs, err)
	}
	return wkc, errs
}
