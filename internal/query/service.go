// Package query is the read side of the monitor: consistent snapshots,
// per-series history windows, and source-health diagnostics. It only
// reads through the sampler's published pointer and the history store's
// copy-on-read accessors, so calls never block an in-progress cycle
// beyond a single store read lock.
package query

import (
	"fmt"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/history"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// SnapshotProvider publishes the latest cycle's snapshot.
type SnapshotProvider interface {
	LatestSnapshot() *model.Snapshot
	Diagnostics() model.Diagnostics
}

// Service composes the presentation-facing query surface.
type Service struct {
	provider SnapshotProvider
	store    *history.Store
}

// NewService creates a Service reading from the given provider and store.
func NewService(provider SnapshotProvider, store *history.Store) *Service {
	return &Service{provider: provider, store: store}
}

// CurrentSnapshot returns the most recently published snapshot, or nil
// before the first cycle completes. The result is immutable and at
// most one in-flight cycle stale.
func (s *Service) CurrentSnapshot() *model.Snapshot {
	return s.provider.LatestSnapshot()
}

// History returns the bounded history for one series, oldest first.
// Pass an empty device id for the host-level metric types. The slice
// is a stable copy: later appends do not mutate it.
func (s *Service) History(device model.DeviceID, metric model.MetricType) ([]model.MetricRecord, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown metric type %q", metric)
	}
	return s.store.Window(model.SeriesKey{DeviceID: device, Type: metric}), nil
}

// Latest returns the newest record for one series, if any.
func (s *Service) Latest(device model.DeviceID, metric model.MetricType) (model.MetricRecord, bool) {
	return s.store.Latest(model.SeriesKey{DeviceID: device, Type: metric})
}

// Devices returns the current active device set.
func (s *Service) Devices() []model.Device {
	return s.store.Devices()
}

// Diagnostics returns the last cycle's source-health view.
func (s *Service) Diagnostics() model.Diagnostics {
	return s.provider.Diagnostics()
}
