package config

import (
	"fmt"
	"time"
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("config: PollInterval must be >= 100ms, got %v", c.PollInterval)
	}

	if c.DeviceQueryTimeout <= 0 {
		return fmt.Errorf("config: DeviceQueryTimeout must be > 0, got %v", c.DeviceQueryTimeout)
	}

	if c.HistorySize < 1 {
		return fmt.Errorf("config: HistorySize must be >= 1, got %d", c.HistorySize)
	}

	if c.RetireAfterMisses < 1 {
		return fmt.Errorf("config: RetireAfterMisses must be >= 1, got %d", c.RetireAfterMisses)
	}

	if c.TempWarmC >= c.TempHotC {
		return fmt.Errorf("config: TempWarm (%g) must be below TempHot (%g)", c.TempWarmC, c.TempHotC)
	}

	if c.UtilWarm >= c.UtilHot {
		return fmt.Errorf("config: UtilWarm (%g) must be below UtilHot (%g)", c.UtilWarm, c.UtilHot)
	}

	if !c.NvidiaSMIEnabled && len(c.DCGMEndpoints) == 0 && !c.HostEnabled {
		return fmt.Errorf("config: at least one telemetry source must be enabled")
	}

	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("config: HealthPort must be 0-65535, got %d", c.HealthPort)
	}

	return nil
}
