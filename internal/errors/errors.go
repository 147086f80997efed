package errors

import (
	"fmt"
	"sync"
	"time"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// Code represents a typed error code surfaced through diagnostics.
type Code string

// Sampler error codes.
const (
	ErrSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	ErrDeviceQueryFailed Code = "DEVICE_QUERY_FAILED"
	ErrDeviceTimeout     Code = "DEVICE_TIMEOUT"
	ErrInvalidReading    Code = "INVALID_READING"
	ErrParseFailed       Code = "PARSE_FAILED"
)

// defaultTTL is the auto-expiry duration for errors not re-reported.
const defaultTTL = 5 * time.Minute

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// SourceUnavailableError marks a total backend failure: the telemetry
// tool is absent, the driver is not loaded, or no endpoint answered.
// It degrades the cycle but is never fatal; the source is retried on
// the next cycle.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// DeviceQueryError marks a single device's query failing within an
// otherwise successful poll. The device's series are not extended this
// cycle; other devices proceed.
type DeviceQueryError struct {
	Device model.DeviceID
	Err    error
}

func (e *DeviceQueryError) Error() string {
	return fmt.Sprintf("device %s query failed: %v", e.Device, e.Err)
}

func (e *DeviceQueryError) Unwrap() error { return e.Err }

// InvalidReadingError marks a value outside physically sensible bounds
// even after clamping. The reading is discarded for the cycle.
type InvalidReadingError struct {
	Type  model.MetricType
	Value float64
}

func (e *InvalidReadingError) Error() string {
	return fmt.Sprintf("invalid %s reading: %g", e.Type, e.Value)
}

// MonitorError is a typed error with code, component, and optional
// wrapped error, as stored by the ErrorCollector.
type MonitorError struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *MonitorError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *MonitorError) Unwrap() error {
	return e.Err
}

// entry wraps a MonitorError with its last-reported time for expiry tracking.
type entry struct {
	err        MonitorError
	lastReport time.Time
}

// ErrorCollector is a thread-safe store for active errors. Errors are
// keyed by Code+Component and auto-expire after 5 minutes if not
// re-reported.
type ErrorCollector struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]entry // key = string(Code) + "|" + Component
}

// NewErrorCollector creates an ErrorCollector with the given clock.
func NewErrorCollector(clock Clock) *ErrorCollector {
	return &ErrorCollector{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// key builds the dedup key for an error.
func key(code Code, component string) string {
	return string(code) + "|" + component
}

// Report stores or refreshes an error. The dedup key is Code+Component.
func (ec *ErrorCollector) Report(err MonitorError) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	k := key(err.Code, err.Component)
	ec.entries[k] = entry{
		err:        err,
		lastReport: ec.clock.Now(),
	}
}

// GetActiveErrors returns all errors reported within the TTL window.
func (ec *ErrorCollector) GetActiveErrors() []MonitorError {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	now := ec.clock.Now()
	result := make([]MonitorError, 0, len(ec.entries))
	for k, e := range ec.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(ec.entries, k)
			continue
		}
		result = append(result, e.err)
	}
	return result
}

// GetActiveErrorCodes returns a deduplicated list of active error codes.
func (ec *ErrorCollector) GetActiveErrorCodes() []string {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	now := ec.clock.Now()
	seen := make(map[Code]struct{})
	codes := make([]string, 0)
	for k, e := range ec.entries {
		if now.Sub(e.lastReport) > defaultTTL {
			delete(ec.entries, k)
			continue
		}
		if _, ok := seen[e.err.Code]; !ok {
			seen[e.err.Code] = struct{}{}
			codes = append(codes, string(e.err.Code))
		}
	}
	return codes
}

// Clear removes all tracked errors.
func (ec *ErrorCollector) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.entries = make(map[string]entry)
}
