// Package host implements the host telemetry source. CPU utilization
// is derived from /proc/stat counter deltas between consecutive polls;
// RAM utilization comes from /proc/meminfo via MemAvailable.
package host

import (
	"context"
	"fmt"
	"os"
	"sync"

	monerrors "github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/errors"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
)

// cpuCounters holds the aggregate jiffy counters from the first line of
// /proc/stat.
type cpuCounters struct {
	idle  uint64
	total uint64
}

// Source reads host CPU and RAM utilization from procfs.
type Source struct {
	statPath    string
	meminfoPath string

	mu   sync.Mutex
	prev *cpuCounters
}

// New creates a host Source reading the standard procfs paths.
func New() *Source {
	return &Source{
		statPath:    "/proc/stat",
		meminfoPath: "/proc/meminfo",
	}
}

// Name identifies the source in logs and diagnostics.
func (s *Source) Name() string { return "host" }

// Poll reads the current CPU and RAM utilization. CPU utilization needs
// two polls to establish a delta, so the first poll reports RAM only.
// procfs being unreadable is a SourceUnavailable condition.
func (s *Source) Poll(_ context.Context) (source.Reading, error) {
	cur, err := s.readCPUCounters()
	if err != nil {
		return source.Reading{}, &monerrors.SourceUnavailableError{Source: s.Name(), Err: err}
	}
	ram, err := s.readRAMUtil()
	if err != nil {
		return source.Reading{}, &monerrors.SourceUnavailableError{Source: s.Name(), Err: err}
	}

	host := &source.HostReading{RAMUtilPct: ram}

	s.mu.Lock()
	if s.prev != nil {
		host.CPUUtilPct = cpuPercent(*s.prev, cur)
	}
	s.prev = &cur
	s.mu.Unlock()

	return source.Reading{Host: host}, nil
}

// cpuPercent computes busy time as a percentage of elapsed jiffies
// between two counter snapshots. Returns nil when no time has elapsed.
func cpuPercent(prev, cur cpuCounters) *float64 {
	totalDelta := cur.total - prev.total
	if cur.total <= prev.total {
		return nil
	}
	idleDelta := cur.idle - prev.idle
	pct := float64(totalDelta-idleDelta) / float64(totalDelta) * 100
	return &pct
}

func (s *Source) readCPUCounters() (cpuCounters, error) {
	data, err := os.ReadFile(s.statPath)
	if err != nil {
		return cpuCounters{}, fmt.Errorf("reading %s: %w", s.statPath, err)
	}
	return parseCPULine(data)
}

func (s *Source) readRAMUtil() (*float64, error) {
	data, err := os.ReadFile(s.meminfoPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.meminfoPath, err)
	}
	return parseMeminfo(data)
}
