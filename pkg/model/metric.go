package model

import "time"

// MetricType identifies one of the canonical metric kinds the sampler
// tracks. GPU-class types are scoped to a device; host-class types are
// unscoped.
type MetricType string

// The closed set of metric types.
const (
	MetricGPUUtil  MetricType = "gpu_util"
	MetricMemUtil  MetricType = "mem_util"
	MetricPowerPct MetricType = "power_pct"
	MetricTempC    MetricType = "temp_c"
	MetricCPUUtil  MetricType = "cpu_util"
	MetricRAMUtil  MetricType = "ram_util"
)

// GPUMetricTypes lists the metric types scoped to a GPU device,
// in display order.
var GPUMetricTypes = []MetricType{MetricGPUUtil, MetricMemUtil, MetricPowerPct, MetricTempC}

// HostMetricTypes lists the host-level (unscoped) metric types.
var HostMetricTypes = []MetricType{MetricCPUUtil, MetricRAMUtil}

// Valid reports whether t is one of the known metric types.
func (t MetricType) Valid() bool {
	switch t {
	case MetricGPUUtil, MetricMemUtil, MetricPowerPct, MetricTempC, MetricCPUUtil, MetricRAMUtil:
		return true
	}
	return false
}

// IsPercentage reports whether values of this type are percentages
// clamped to [0,100]. Temperature is the only non-percentage type.
func (t MetricType) IsPercentage() bool {
	return t != MetricTempC
}

// Status is the severity bucket assigned to a metric value by the
// configured thresholds.
type Status string

// Severity buckets, ordered from least to most severe.
const (
	StatusNormal Status = "normal"
	StatusWarm   Status = "warm"
	StatusHot    Status = "hot"
)

// MetricRecord is one normalized sample. Records are immutable once
// created; every record in a cycle carries that cycle's timestamp so
// cross-metric values from the same cycle are never torn in time.
type MetricRecord struct {
	Timestamp time.Time  `json:"timestamp"`
	Cycle     uint64     `json:"cycle"`
	Type      MetricType `json:"type"`
	DeviceID  DeviceID   `json:"device_id,omitempty"`
	Value     float64    `json:"value"`
	Status    Status     `json:"status"`
}

// Key returns the series key this record belongs to.
func (r MetricRecord) Key() SeriesKey {
	return SeriesKey{DeviceID: r.DeviceID, Type: r.Type}
}

// SeriesKey identifies one bounded history series: a metric type scoped
// to a device, or unscoped (empty DeviceID) for host metrics.
type SeriesKey struct {
	DeviceID DeviceID   `json:"device_id,omitempty"`
	Type     MetricType `json:"type"`
}

// HostKey returns the series key for a host-level metric type.
func HostKey(t MetricType) SeriesKey {
	return SeriesKey{Type: t}
}

// DeviceKey returns the series key for a device-scoped metric type.
func DeviceKey(id DeviceID, t MetricType) SeriesKey {
	return SeriesKey{DeviceID: id, Type: t}
}
