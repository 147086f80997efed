package nvidiasmi

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	monerrors "github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/errors"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// Runner abstracts command execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

const (
	discoveryFields = "index,uuid,name,power.max_limit"
	metricFields    = "power.draw,temperature.gpu,utilization.gpu,utilization.memory"
	csvFormat       = "csv,noheader,nounits"
)

// Source polls GPU telemetry by executing nvidia-smi. Devices are
// rediscovered on every poll so hot-plug and driver resets are picked
// up; each device's metric query runs in its own goroutine with its own
// timeout so a stuck device cannot stall the rest of the cycle.
type Source struct {
	path    string
	runner  Runner
	timeout time.Duration
}

// New creates a Source that executes the nvidia-smi binary at path.
// timeout bounds each individual nvidia-smi invocation. If runner is
// nil, commands run through os/exec.
func New(path string, timeout time.Duration, runner Runner) *Source {
	if runner == nil {
		runner = execRunner{}
	}
	return &Source{path: path, runner: runner, timeout: timeout}
}

// Name identifies the source in logs and diagnostics.
func (s *Source) Name() string { return "nvidia-smi" }

// Poll discovers the current device set and queries each device's
// metrics concurrently. A failed or timed-out device query is reported
// in Reading.DeviceErrors; only a total nvidia-smi failure (binary
// missing, driver not loaded, no devices) returns an error.
func (s *Source) Poll(ctx context.Context) (source.Reading, error) {
	devices, err := s.discover(ctx)
	if err != nil {
		return source.Reading{}, &monerrors.SourceUnavailableError{Source: s.Name(), Err: err}
	}
	if len(devices) == 0 {
		return source.Reading{}, &monerrors.SourceUnavailableError{
			Source: s.Name(),
			Err:    fmt.Errorf("no GPU devices reported"),
		}
	}

	type result struct {
		reading source.DeviceReading
		err     error
	}

	results := make([]result, len(devices))
	var wg sync.WaitGroup
	for i, dev := range devices {
		wg.Add(1)
		go func(i int, dev model.Device) {
			defer wg.Done()
			reading, err := s.queryDevice(ctx, dev)
			results[i] = result{reading: reading, err: err}
		}(i, dev)
	}
	wg.Wait()

	reading := source.Reading{DeviceErrors: make(map[model.DeviceID]error)}
	for i, res := range results {
		if res.err != nil {
			reading.DeviceErrors[devices[i].ID] = res.err
			continue
		}
		reading.Devices = append(reading.Devices, res.reading)
	}
	return reading, nil
}

// discover lists the current devices with their rated power limits.
func (s *Source) discover(ctx context.Context) ([]model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Run(ctx, s.path,
		"--query-gpu="+discoveryFields, "--format="+csvFormat)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", s.path, err)
	}
	return parseDeviceList(out)
}

// queryDevice fetches one device's raw metrics by UUID.
func (s *Source) queryDevice(ctx context.Context, dev model.Device) (source.DeviceReading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner.Run(ctx, s.path,
		"--id="+string(dev.ID),
		"--query-gpu="+metricFields, "--format="+csvFormat)
	if err != nil {
		return source.DeviceReading{}, &monerrors.DeviceQueryError{Device: dev.ID, Err: err}
	}

	reading, err := parseMetricLine(out)
	if err != nil {
		return source.DeviceReading{}, &monerrors.DeviceQueryError{Device: dev.ID, Err: err}
	}
	reading.Device = dev
	return reading, nil
}
