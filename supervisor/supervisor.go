// Package supervisor implements the bus-health and thermal watchdogs
// (C9): independent low-rate checks that observe the rest of the system
// and can only influence it through the Motion FSM's shared
// EtherCATFault flag and shutdown flag, never by touching FSM state
// directly.
package supervisor

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/atomic"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/eventlog"
)

// FaultReporter is the subset of *motion.FSM the supervisors drive; kept
// as an interface here so neither supervisor import-cycles back into
// motion.
type FaultReporter interface {
	SetEtherCATFault(v bool)
}

// BusSupervisor runs every 10 cycle periods: if the working counter
// falls below expectedWKC, it walks the non-OP recovery ladder
// (SAFE_OP+ACK → SAFE_OP→OP → reconfig_slave → recover_slave) and sets
// EtherCATFault until a cycle reports wkc >= expectedWKC again.
type BusSupervisor struct {
	b           bus.Bus
	fsm         FaultReporter
	log         *eventlog.Log
	expectedWKC int
	degraded    bool
}

// NewBusSupervisor returns a BusSupervisor over b, reporting into fsm and
// appending recovery events to log.
func NewBusSupervisor(b bus.Bus, fsm FaultReporter, log *eventlog.Log, expectedWKC int) *BusSupervisor {
	return &BusSupervisor{b: b, fsm: fsm, log: log, expectedWKC: expectedWKC}
}

// Check runs one bus-health pass given this cycle's working counter.
func (s *BusSupervisor) Check(wkc int) {
	if wkc >= s.expectedWKC {
		if s.degraded {
			s.degraded = false
			s.fsm.SetEtherCATFault(false)
			s.log.EtherCAT("Bus recovered, working counter nominal")
		}
		return
	}

	if !s.degraded {
		s.degraded = true
		s.fsm.SetEtherCATFault(true)
		s.log.EtherCAT("Working counter degraded, entering recovery ladder")
	}

	s.b.ReadState()
	for slave := 1; slave <= s.expectedWKC; slave++ {
		if s.b.Statecheck(slave) == bus.StateOp {
			continue
		}
		// Four-step ladder: acknowledge into SAFE_OP, request the
		// SAFE_OP->OP transition, then fall back to a full reconfigure
		// and, if that still hasn't cleared, a full recovery.
		s.b.WriteState(slave, bus.StateSafeOpAck)
		s.b.WriteState(slave, bus.StateOp)
		s.b.ReconfigSlave(slave)
		s.b.RecoverSlave(slave)
	}
}

// Schedule registers Check to run every 10*cyclePeriod via gocron, reading
// the latest working counter from wkc() each tick. The scheduler itself
// runs on its own goroutine; Check must not block.
func (s *BusSupervisor) Schedule(sched gocron.Scheduler, cyclePeriod time.Duration, wkc func() int) error {
	_, err := sched.NewJob(
		gocron.DurationJob(10*cyclePeriod),
		gocron.NewTask(func() { s.Check(wkc()) }),
	)
	return err
}

// ThermalSupervisor reads the host CPU temperature once a second; above
// ThermalLimitCelsius it logs Critical and requests shutdown via the
// Shutdowner.
type ThermalSupervisor struct {
	limit      float64
	log        *eventlog.Log
	shutdowner Shutdowner
	readTemps  func(ctx context.Context) ([]host.TemperatureStat, error)
	lastTemp   atomic.Float64
}

// Shutdowner is the subset of *motion.FSM the thermal supervisor drives.
type Shutdowner interface {
	SetShutdown(v bool)
}

// NewThermalSupervisor returns a ThermalSupervisor tripping at
// limitCelsius, reading sensors through gopsutil's host package.
func NewThermalSupervisor(limitCelsius float64, log *eventlog.Log, shutdowner Shutdowner) *ThermalSupervisor {
	return &ThermalSupervisor{
		limit:      limitCelsius,
		log:        log,
		shutdowner: shutdowner,
		readTemps:  host.SensorsTemperaturesWithContext,
	}
}

// Check reads the host temperature sensors and requests shutdown if any
// sensor exceeds the configured limit.
func (s *ThermalSupervisor) Check(ctx context.Context) error {
	sensors, err := s.readTemps(ctx)
	if err != nil {
		return err
	}
	if len(sensors) == 0 {
		return nil
	}
	highest := sensors[0].Temperature
	for _, sensor := range sensors[1:] {
		if sensor.Temperature > highest {
			highest = sensor.Temperature
		}
	}
	s.lastTemp.Store(highest)
	if highest > s.limit {
		s.log.Critical("Thermal limit exceeded, shutting down")
		s.shutdowner.SetShutdown(true)
	}
	return nil
}

// LastTemperature returns the highest sensor reading observed by the most
// recent Check, for the status façade to publish alongside the FSM's own
// state. Zero until the first Check runs.
func (s *ThermalSupervisor) LastTemperature() float64 {
	return s.lastTemp.Load()
}

// Schedule registers Check to run once a second via gocron.
func (s *ThermalSupervisor) Schedule(sched gocron.Scheduler) error {
	_, err := sched.NewJob(
		gocron.DurationJob(time.Second),
		gocron.NewTask(func() {
			_ = s.Check(context.Background())
		}),
	)
	return err
}
