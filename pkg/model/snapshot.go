package model

import "time"

// SeriesView is the read-only view of one series inside a Snapshot:
// the latest record plus the bounded history window, oldest first.
type SeriesView struct {
	Latest  MetricRecord   `json:"latest"`
	History []MetricRecord `json:"history,omitempty"`
}

// DeviceSnapshot groups one device with its per-type series views.
type DeviceSnapshot struct {
	Device  Device                    `json:"device"`
	Metrics map[MetricType]SeriesView `json:"metrics"`
}

// Snapshot is a consistent composite view published at the end of one
// poll cycle. Every record it contains carries the same cycle id and
// timestamp. Snapshots are immutable after publication; consumers may
// hold them indefinitely.
type Snapshot struct {
	SnapshotID string    `json:"snapshot_id"`
	Cycle      uint64    `json:"cycle"`
	Timestamp  time.Time `json:"timestamp"`
	// Degraded is set when no telemetry source could be reached at all
	// during the cycle that produced this snapshot.
	Degraded bool             `json:"degraded"`
	Devices  []DeviceSnapshot `json:"devices"`
	// Host holds the unscoped cpu_util / ram_util series.
	Host map[MetricType]SeriesView `json:"host,omitempty"`
	// DeviceErrors maps devices whose query failed this cycle to a
	// human-readable reason. Devices listed here have no fresh records.
	DeviceErrors map[DeviceID]string `json:"device_errors,omitempty"`
}

// Diagnostics is the source-health view exposed alongside snapshots.
type Diagnostics struct {
	Cycle        uint64              `json:"cycle"`
	Degraded     bool                `json:"degraded"`
	DeviceErrors map[DeviceID]string `json:"device_errors,omitempty"`
	// ClampedValues counts raw readings pulled into [0,100] since start.
	ClampedValues uint64 `json:"clamped_values"`
	// DiscardedReadings counts readings rejected as physically
	// implausible since start.
	DiscardedReadings uint64   `json:"discarded_readings"`
	ActiveErrors      []string `json:"active_errors,omitempty"`
}
