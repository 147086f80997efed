package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for monitor self-observation.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Degraded      prometheus.Gauge
	SamplerState  *prometheus.GaugeVec

	// Source metrics
	SourcePollDuration *prometheus.HistogramVec
	DeviceErrorsTotal  *prometheus.CounterVec

	// Normalization metrics
	ClampedValuesTotal     prometheus.Counter
	DiscardedReadingsTotal prometheus.Counter

	// Store metrics
	ActiveDevices prometheus.Gauge
	SeriesCount   prometheus.Gauge

	// Process metrics
	MemoryPressureTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpumonitor_cycles_total",
			Help: "Total number of completed poll cycles.",
		}, []string{"status"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpumonitor_cycle_duration_seconds",
			Help:    "Duration of poll cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		Degraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpumonitor_degraded",
			Help: "Whether the last cycle failed to reach any telemetry source (1 = degraded).",
		}),
		SamplerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpumonitor_sampler_state",
			Help: "Current sampler cycle state (1 = active, 0 = inactive).",
		}, []string{"state"}),

		SourcePollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gpumonitor_source_poll_duration_seconds",
			Help:    "Duration of individual source polls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		DeviceErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpumonitor_device_errors_total",
			Help: "Total number of per-device query failures.",
		}, []string{"device"}),

		ClampedValuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpumonitor_clamped_values_total",
			Help: "Total number of raw values clamped into the 0-100 range.",
		}),
		DiscardedReadingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpumonitor_discarded_readings_total",
			Help: "Total number of readings discarded as physically implausible.",
		}),

		ActiveDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpumonitor_active_devices",
			Help: "Number of devices currently in the active set.",
		}),
		SeriesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpumonitor_series",
			Help: "Number of metric series held in the history store.",
		}),

		MemoryPressureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpumonitor_memory_pressure_total",
			Help: "Total number of forced GC runs triggered by memory pressure.",
		}),
	}

	// Register all metrics with the custom registry.
	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.Degraded,
		m.SamplerState,
		m.SourcePollDuration,
		m.DeviceErrorsTotal,
		m.ClampedValuesTotal,
		m.DiscardedReadingsTotal,
		m.ActiveDevices,
		m.SeriesCount,
		m.MemoryPressureTotal,
	)

	return m
}
