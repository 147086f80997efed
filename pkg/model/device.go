package model

// DeviceID is the stable identity of a monitored GPU. The nvidia-smi
// source uses the board UUID; dcgm-exporter sources use the UUID label.
// Identity is never positional: indexes can shift across driver resets.
type DeviceID string

// Device describes one monitored GPU as reported by a source.
type Device struct {
	ID   DeviceID `json:"id"`
	Name string   `json:"name"`
	// Index is the source-reported ordinal, kept for display only.
	Index int `json:"index"`
	// RatedPowerWatts is the hardware-enforced maximum power limit (TDP),
	// the denominator for power_pct. Zero means unknown.
	RatedPowerWatts float64 `json:"rated_power_watts,omitempty"`
}

// HasRatedPower reports whether the device has a usable rated power
// limit for deriving power_pct.
func (d Device) HasRatedPower() bool {
	return d.RatedPowerWatts > 0
}
