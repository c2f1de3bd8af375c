// Package pipeline implements the single-threaded cyclic control loop
// (C11) that ties every other component together once per tick: PDO
// exchange, the working-counter health check, the motion FSM, the DC phase
// lock, and the absolute-monotonic sleep to the next bus edge. Nothing in
// this package blocks except the sleep itself, per spec.md §5's
// suspension-point rule.
package pipeline

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/dcsync"
	"github.com/thetooth/robot-ctrl/eventlog"
	"github.com/thetooth/robot-ctrl/motion"
)

// HaltTimeout bounds how long a requested shutdown waits for the FSM to
// reach Idle before the pipeline forces the bus closed anyway.
const HaltTimeout = 1 * time.Second

// EtherCATStatus is the bus-health snapshot Step captures each tick, for a
// caller (the façade) to fold into the outbound status payload.
type EtherCATStatus struct {
	Interval     time.Duration
	Sync0        time.Duration
	Compensation time.Duration
	Integral     int64
	State        bus.SlaveState
}

// Pipeline drives one cyclic tick at a time. It is the bus's single
// writer; within a tick the ordering is fixed — PDO exchange, CoE update
// (inside fsm.Update), FSM transition, kinematics/OTG, Motor.move, the next
// PDO write on the following tick's SendProcess — matching spec.md §5's
// ordering guarantee.
type Pipeline struct {
	log *eventlog.Log

	b           bus.Bus
	fsm         *motion.FSM
	dc          *dcsync.Controller
	clk         clock.Clock
	period      time.Duration
	expectedWKC int

	// readDCDiff reads the EtherCAT master's DC reference-to-local-clock
	// offset for this tick. The real master library is an out-of-scope
	// external collaborator (see bus.Bus's doc comment), so this is
	// injected the same way supervisor.ThermalSupervisor injects
	// readTemps. New installs a reader that always returns zero;
	// SetDCReader replaces it, and neither cmd/scara-ctrld nor the tests
	// call SetDCReader.
	readDCDiff func() time.Duration

	tick        time.Time
	shutdownAt  time.Time
	haltTimeout time.Duration

	lastRef    time.Duration
	lastOffset time.Duration
	lastWKC    int
}

// New returns a Pipeline ticking at period over b and fsm, expecting wkc
// working counters per cycle, starting its absolute tick at clk.Now().
func New(log *eventlog.Log, b bus.Bus, fsm *motion.FSM, dc *dcsync.Controller, clk clock.Clock, period time.Duration, expectedWKC int) *Pipeline {
	return &Pipeline{
		log:         log,
		b:           b,
		fsm:         fsm,
		dc:          dc,
		clk:         clk,
		period:      period,
		expectedWKC: expectedWKC,
		readDCDiff:  func() time.Duration { return 0 },
		tick:        clk.Now(),
		haltTimeout: HaltTimeout,
	}
}

// SetDCReader overrides the DC reference reader.
func (p *Pipeline) SetDCReader(f func() time.Duration) { p.readDCDiff = f }

// SetHaltTimeout overrides HaltTimeout, mainly so tests don't wait a full
// second for the forced-exit path.
func (p *Pipeline) SetHaltTimeout(d time.Duration) { p.haltTimeout = d }

// Step runs exactly one cycle. drain, if non-nil, is called once — after
// the FSM has reached Idle or HaltTimeout has elapsed following a shutdown
// request — to let the caller tear down its supervisors before Step closes
// the bus and returns true. The caller's loop should stop calling Step once
// it returns true.
func (p *Pipeline) Step(drain func()) bool {
	p.b.SendProcess()
	wkc := p.b.ReceiveProcess()
	p.lastWKC = wkc

	if p.fsm.Estop.Load() && wkc < p.expectedWKC {
		p.log.Critical("Working counter below expected during cycle, clearing estop")
		p.fsm.Estop.Store(false)
	}

	p.fsm.Update()

	if p.fsm.Shutdown.Load() {
		if p.shutdownAt.IsZero() {
			p.shutdownAt = p.clk.Now()
		}
		if p.fsm.State() == motion.Idle || p.clk.Now().Sub(p.shutdownAt) > p.haltTimeout {
			if drain != nil {
				drain()
			}
			_ = p.b.Close()
			return true
		}
	}

	p.lastRef = p.readDCDiff()
	p.lastOffset = p.dc.DCSync(p.lastRef, p.period)

	target := dcsync.ApplyOffset(p.tick, p.lastOffset)
	dcsync.SleepUntil(p.clk, target)
	p.tick = dcsync.Increment(p.tick, p.period)

	return false
}

// LastWKC returns the working counter observed by the most recent Step,
// for the bus supervisor's scheduled Check.
func (p *Pipeline) LastWKC() int { return p.lastWKC }

// Status returns the bus-health snapshot captured by the most recent Step.
func (p *Pipeline) Status() EtherCATStatus {
	return EtherCATStatus{
		Interval:     p.period,
		Sync0:        p.lastRef,
		Compensation: p.lastOffset,
		Integral:     p.dc.Integral,
		State:        p.b.Statecheck(1),
	}
}
