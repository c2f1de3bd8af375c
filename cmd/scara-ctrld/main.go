// Command scara-ctrld is the SCARA motion controller daemon: it brings up
// the EtherCAT bus (or the in-process simulator), wires the drive group,
// kinematics envelope, OTG, and motion FSM together, and runs the cyclic
// pipeline on the calling goroutine while the message-bus façade, the bus
// and thermal supervisors, and the Prometheus exporter run on their own.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/thetooth/robot-ctrl/bus"
	"github.com/thetooth/robot-ctrl/coe"
	"github.com/thetooth/robot-ctrl/config"
	"github.com/thetooth/robot-ctrl/dcsync"
	"github.com/thetooth/robot-ctrl/drive"
	"github.com/thetooth/robot-ctrl/facade"
	"github.com/thetooth/robot-ctrl/logging"
	"github.com/thetooth/robot-ctrl/metrics"
	"github.com/thetooth/robot-ctrl/motion"
	"github.com/thetooth/robot-ctrl/pipeline"
	"github.com/thetooth/robot-ctrl/simdrive"
	"github.com/thetooth/robot-ctrl/supervisor"
	"github.com/thetooth/robot-ctrl/trajectory"

	"github.com/go-co-op/gocron/v2"
)

func main() {
	app := &cli.App{
		Name:  "scara-ctrld",
		Usage: "SCARA arm motion controller",
		Flags: config.Flags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := logging.NewLogger("scara-ctrld")
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(c)
	if err != nil {
		return err
	}
	period := time.Duration(cfg.CyclePeriodMicros) * time.Microsecond

	b, motors, err := buildBus(cfg)
	if err != nil {
		return err
	}
	group := drive.NewGroup(motors...)
	otg := trajectory.New(period.Seconds())

	var homingOffsets motion.HomingOffsets
	for i, axis := range cfg.Axes {
		if i >= trajectory.Axes {
			break
		}
		homingOffsets[i] = axis.HomingOffset
	}

	fsm := motion.New(log.Named("motion"), b, group, otg, homingOffsets)
	fsm.UpdateDynamics(defaultDynamics(cfg))

	reg := prometheus.NewRegistry()
	mc := metrics.New(reg)

	fac := facade.New(fsm, period)

	busSupervisor := supervisor.NewBusSupervisor(b, fsm, fsm.EventLog, trajectory.Axes)
	thermalSupervisor := supervisor.NewThermalSupervisor(cfg.ThermalLimitCelsius, fsm.EventLog, fsm)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	pl := pipeline.New(fsm.EventLog, b, fsm, &dcsync.Controller{}, clock.New(), period, trajectory.Axes)
	if err := busSupervisor.Schedule(sched, period, pl.LastWKC); err != nil {
		return err
	}
	if err := thermalSupervisor.Schedule(sched); err != nil {
		return err
	}
	sched.Start()
	defer sched.Shutdown() //nolint:errcheck

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.Subscribe("motion.command", func(msg *nats.Msg) {
		fac.Dispatch(msg.Data)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe() //nolint:errcheck

	if err := watchDynamics(nc, fsm); err != nil {
		log.Warnw("settings watch unavailable, running with defaults only", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: ":9090", Handler: mux}
	go metricsSrv.ListenAndServe() //nolint:errcheck
	defer metricsSrv.Shutdown(context.Background())

	stopStatus := make(chan struct{})
	go publishStatus(nc, pl, fac, mc, thermalSupervisor, stopStatus)
	defer close(stopStatus)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fsm.Estop.Store(false)
		fsm.Shutdown.Store(true)
		<-sigCh
		os.Exit(255)
	}()

	for {
		cycleStart := time.Now()
		exited := pl.Step(func() {
			sched.Shutdown() //nolint:errcheck
		})
		mc.ObserveCycle(time.Since(cycleStart))
		mc.ObserveBus(pl.LastWKC(), pl.LastWKC() < trajectory.Axes)
		if exited {
			break
		}
	}

	return cli.Exit("controlled halt", 1)
}

// buildBus brings up either the real EtherCAT interface or the in-process
// simulator, returning a Bus and one Motor handle per configured axis.
// This codebase ships no real EtherCAT master binding (see bus.Bus's doc
// comment), so a non-simulated run fails fast rather than pretending.
func buildBus(cfg *config.Config) (bus.Bus, []*drive.Motor, error) {
	if !cfg.Simulated {
		return nil, nil, cli.Exit("real EtherCAT master not wired in this build; run with --simulated", 1)
	}

	axisCount := len(cfg.Axes)
	b := bus.NewSim(axisCount)
	motors := make([]*drive.Motor, axisCount)
	for i, axis := range cfg.Axes {
		clk := clock.New()
		motors[i] = drive.NewMotor(axis.SlaveID, simdrive.New(), axis.PositionRatio, axis.VelocityRatio, axis.MinPosition, axis.MaxPosition, coe.New(clk))
	}
	if _, _, _, err := b.Bringup("sim"); err != nil {
		return nil, nil, err
	}
	return b, motors, nil
}

func defaultDynamics(cfg *config.Config) motion.DynamicsPreset {
	preset := motion.DynamicsPreset{ID: "default", Name: "default", SynchronisationMethod: trajectory.SyncTime}
	for i := range preset.AxisConfigurations {
		preset.AxisConfigurations[i] = motion.AxisDynamics{
			MaxVelocity:     cfg.DefaultMaxVelocity,
			MaxAcceleration: cfg.DefaultMaxAcceleration,
			MaxJerk:         cfg.DefaultMaxJerk,
		}
	}
	return preset
}

// watchDynamics subscribes to the key-value bucket "setting", watching key
// "dynamics.active" for Preset updates and applying each one via
// fsm.UpdateDynamics.
func watchDynamics(nc *nats.Conn, fsm *motion.FSM) error {
	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	kv, err := js.KeyValue("setting")
	if err != nil {
		return err
	}
	watcher, err := kv.Watch("dynamics.active")
	if err != nil {
		return err
	}
	go func() {
		for entry := range watcher.Updates() {
			if entry == nil {
				continue
			}
			var preset motion.DynamicsPreset
			if err := json.Unmarshal(entry.Value(), &preset); err != nil {
				fsm.EventLog.Error("facade: decode dynamics preset: " + err.Error())
				continue
			}
			if fsm.UpdateDynamics(preset) {
				fsm.EventLog.Debug("Settings update: dynamics.active", json.RawMessage(entry.Value()))
			}
		}
	}()
	return nil
}

// publishStatus runs the ~250 Hz status/event emitter: each tick it
// snapshots the FSM through the façade and publishes motion.status and
// motion.event, until stop is closed.
func publishStatus(nc *nats.Conn, pl *pipeline.Pipeline, fac *facade.Facade, mc *metrics.Collector, thermal *supervisor.ThermalSupervisor, stop <-chan struct{}) {
	ticker := time.NewTicker(4 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			plStatus := pl.Status()
			cpuTemp := thermal.LastTemperature()
			status, events := fac.Snapshot(facade.EtherCATStatus{
				Interval:     plStatus.Interval,
				Sync0:        plStatus.Sync0,
				Compensation: plStatus.Compensation,
				Integral:     plStatus.Integral,
				State:        plStatus.State,
			}, cpuTemp)
			mc.ObserveDCSync(plStatus.Compensation, plStatus.Integral)
			mc.ObserveThermal(cpuTemp)

			if payload, err := json.Marshal(status); err == nil {
				nc.Publish("motion.status", payload) //nolint:errcheck
			}
			for _, ev := range events {
				if payload, err := json.Marshal(ev); err == nil {
					nc.Publish("motion.event", payload) //nolint:errcheck
				}
			}
		}
	}
}
