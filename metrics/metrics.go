// Package metrics exposes the control loop's timing discipline as
// Prometheus gauges and histograms: cycle duration, DC offset/integral, and
// working counter. spec.md §1 scopes logging/formatting out, but the whole
// point of a DC-synchronized control loop is the timing budget it holds to,
// so that budget is observable even where log formatting is not.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the metrics registered against a single
// prometheus.Registerer; cmd/scara-ctrld registers one against its own
// prometheus.NewRegistry() and serves that over /metrics.
type Collector struct {
	CycleDuration   prometheus.Histogram
	DCOffset        prometheus.Gauge
	DCIntegral      prometheus.Gauge
	WorkingCounter  prometheus.Gauge
	BusDegraded     prometheus.Gauge
	CPUTemperature  prometheus.Gauge
}

// New constructs a Collector and registers every metric against reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scara",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of one control cycle, SendProcess through the absolute-monotonic sleep.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 2, 16),
		}),
		DCOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scara",
			Subsystem: "dcsync",
			Name:      "offset_seconds",
			Help:      "Most recent DC PI controller output offset applied to the next tick.",
		}),
		DCIntegral: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scara",
			Subsystem: "dcsync",
			Name:      "integral",
			Help:      "Accumulated integral term of the DC PI controller.",
		}),
		WorkingCounter: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scara",
			Subsystem: "bus",
			Name:      "working_counter",
			Help:      "Working counter reported by the most recent ReceiveProcess.",
		}),
		BusDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scara",
			Subsystem: "bus",
			Name:      "degraded",
			Help:      "1 if the most recent cycle's working counter was below the expected count, else 0.",
		}),
		CPUTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scara",
			Subsystem: "host",
			Name:      "cpu_temperature_celsius",
			Help:      "Most recent host CPU temperature sample.",
		}),
	}

	reg.MustRegister(
		c.CycleDuration,
		c.DCOffset,
		c.DCIntegral,
		c.WorkingCounter,
		c.BusDegraded,
		c.CPUTemperature,
	)
	return c
}

// ObserveCycle records one cycle's wall-clock duration.
func (c *Collector) ObserveCycle(d time.Duration) {
	c.CycleDuration.Observe(d.Seconds())
}

// ObserveDCSync records the PI controller's latest offset and integral.
func (c *Collector) ObserveDCSync(offset time.Duration, integral int64) {
	c.DCOffset.Set(offset.Seconds())
	c.DCIntegral.Set(float64(integral))
}

// ObserveBus records the latest working counter and degraded flag.
func (c *Collector) ObserveBus(wkc int, degraded bool) {
	c.WorkingCounter.Set(float64(wkc))
	if degraded {
		c.BusDegraded.Set(1)
	} else {
		c.BusDegraded.Set(0)
	}
}

// ObserveThermal records the latest CPU temperature sample.
func (c *Collector) ObserveThermal(celsius float64) {
	c.CPUTemperature.Set(celsius)
}
