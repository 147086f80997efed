package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all monitor configuration values.
type Config struct {
	PollInterval       time.Duration // MONITOR_POLL_INTERVAL, default: 1s
	DeviceQueryTimeout time.Duration // MONITOR_DEVICE_TIMEOUT, default: 5s
	HistorySize        int           // MONITOR_HISTORY_SIZE, default: 15
	RetireAfterMisses  int           // MONITOR_RETIRE_AFTER, default: 3

	// Status classification thresholds. Boundaries are inclusive-lower:
	// a value exactly at a boundary lands in the more severe bucket.
	TempWarmC float64 // MONITOR_TEMP_WARM, default: 60
	TempHotC  float64 // MONITOR_TEMP_HOT, default: 80
	UtilWarm  float64 // MONITOR_UTIL_WARM, default: 75
	UtilHot   float64 // MONITOR_UTIL_HOT, default: 90

	// Sources. nvidia-smi and dcgm-exporter enumerate the same physical
	// GPUs, so only one GPU backend is wired at a time: configured DCGM
	// endpoints take precedence over nvidia-smi.
	NvidiaSMIEnabled bool     // MONITOR_NVIDIA_SMI_ENABLED, default: true
	NvidiaSMIPath    string   // MONITOR_NVIDIA_SMI_PATH, default: "nvidia-smi"
	DCGMEndpoints    []string // MONITOR_DCGM_ENDPOINTS, comma-separated base URLs
	HostEnabled      bool     // MONITOR_HOST_ENABLED, default: true

	HealthPort     int    // MONITOR_HEALTH_PORT, default: 8080
	DebugEndpoints bool   // MONITOR_DEBUG_ENDPOINTS, default: false — enables pprof
	LogLevel       string // MONITOR_LOG_LEVEL, default: "info"
	Version        string
}

// Load reads configuration from a .env file (if present) and the
// environment, applying defaults for any unset values.
func Load() Config {
	// Existing environment variables win over .env entries.
	_ = godotenv.Load()

	return Config{
		PollInterval:       parseDuration("MONITOR_POLL_INTERVAL", time.Second),
		DeviceQueryTimeout: parseDuration("MONITOR_DEVICE_TIMEOUT", 5*time.Second),
		HistorySize:        parseInt("MONITOR_HISTORY_SIZE", 15),
		RetireAfterMisses:  parseInt("MONITOR_RETIRE_AFTER", 3),

		TempWarmC: parseFloat("MONITOR_TEMP_WARM", 60),
		TempHotC:  parseFloat("MONITOR_TEMP_HOT", 80),
		UtilWarm:  parseFloat("MONITOR_UTIL_WARM", 75),
		UtilHot:   parseFloat("MONITOR_UTIL_HOT", 90),

		NvidiaSMIEnabled: parseBool("MONITOR_NVIDIA_SMI_ENABLED", true),
		NvidiaSMIPath:    envOrDefault("MONITOR_NVIDIA_SMI_PATH", "nvidia-smi"),
		DCGMEndpoints:    parseStringSlice("MONITOR_DCGM_ENDPOINTS"),
		HostEnabled:      parseBool("MONITOR_HOST_ENABLED", true),

		HealthPort:     parseInt("MONITOR_HEALTH_PORT", 8080),
		DebugEndpoints: parseBool("MONITOR_DEBUG_ENDPOINTS", false),
		LogLevel:       envOrDefault("MONITOR_LOG_LEVEL", "info"),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to
// treating the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func parseStringSlice(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
