// Package source defines the uniform capability shared by all telemetry
// backends. A Source is a passive poll target: the sampler drives it
// once per cycle with a bounded context, and every source variant (GPU
// via nvidia-smi, GPU via dcgm-exporter, host via /proc) returns the
// same raw-reading shape.
package source

import (
	"context"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// DeviceReading carries one GPU's identity and raw metric values for a
// single poll. Metric fields are pointers: nil means the source did not
// report that value this cycle.
type DeviceReading struct {
	Device model.Device

	UtilizationPct    *float64
	MemUtilizationPct *float64
	PowerDrawWatts    *float64
	TemperatureC      *float64
}

// HostReading carries raw host-level utilization for a single poll.
type HostReading struct {
	CPUUtilPct *float64
	RAMUtilPct *float64
}

// Reading is the uniform result of one source poll. GPU sources fill
// Devices and DeviceErrors; the host source fills Host. A partially
// failed poll still returns the successful readings: one device's error
// never suppresses another device's data.
type Reading struct {
	Devices []DeviceReading
	Host    *HostReading

	// DeviceErrors lists devices whose query failed this poll. Devices
	// present here are known to exist but contributed no reading.
	DeviceErrors map[model.DeviceID]error
}

// Source is one telemetry backend.
//
// Poll returns the readings for one cycle. A total backend failure is
// reported as *errors.SourceUnavailableError; the sampler marks the
// cycle degraded and retries next cycle. Any other returned error is
// treated the same way. Poll must honor ctx cancellation and never
// block past the sampler's per-cycle deadline.
type Source interface {
	// Name identifies the source in logs and diagnostics.
	Name() string
	Poll(ctx context.Context) (Reading, error)
}
