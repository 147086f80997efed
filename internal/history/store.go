// Package history owns all metric series: bounded rolling windows keyed
// by (device, metric type), plus the device lifecycle. The sampler is
// the sole writer; any number of readers may call Latest/Window/Devices
// concurrently and always observe a fully written state.
package history

import (
	"sort"
	"sync"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// deviceState tracks a device's presence across polls.
type deviceState struct {
	device  model.Device
	misses  int
	retired bool
}

// Store is the concurrency-safe history store. A single RWMutex guards
// the whole store; every read copies, so returned slices are safe to
// hold across subsequent appends.
type Store struct {
	mu          sync.RWMutex
	capacity    int
	retireAfter int
	series      map[model.SeriesKey]*ring
	devices     map[model.DeviceID]*deviceState
}

// NewStore creates a Store whose series retain at most capacity records
// and whose devices retire after retireAfter consecutive absent polls.
func NewStore(capacity, retireAfter int) *Store {
	return &Store{
		capacity:    capacity,
		retireAfter: retireAfter,
		series:      make(map[model.SeriesKey]*ring),
		devices:     make(map[model.DeviceID]*deviceState),
	}
}

// Append adds a record to its series, creating the series on first use
// and evicting the oldest record when the bound is reached.
func (s *Store) Append(rec model.MetricRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	r, ok := s.series[key]
	if !ok {
		r = newRing(s.capacity)
		s.series[key] = r
	}
	r.append(rec)
}

// Latest returns the newest record for the key, if the series has one.
func (s *Store) Latest(key model.SeriesKey) (model.MetricRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[key]
	if !ok {
		return model.MetricRecord{}, false
	}
	return r.latest()
}

// Window returns the retained records for the key, oldest first. The
// returned slice is a copy.
func (s *Store) Window(key model.SeriesKey) []model.MetricRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[key]
	if !ok {
		return nil
	}
	return r.window()
}

// SeriesLen returns the number of retained records for the key.
func (s *Store) SeriesLen(key model.SeriesKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.series[key]
	if !ok {
		return 0
	}
	return r.len()
}

// ObserveDevices reconciles the device set against one poll's report.
// Reported devices are refreshed (identity data can change across
// driver resets) and revived if previously retired; errored lists
// devices whose query failed but which the backend still enumerated,
// so they count as present without overwriting their stored identity.
// Known devices absent from both lists accrue a miss and retire once
// they have been absent for retireAfter consecutive polls. Retirement
// removes a device from Devices() but leaves its series intact.
//
// authoritative marks the poll as a complete device census. A cycle in
// which a source was unavailable reports nothing for devices it could
// not see; that is not absence, so miss accounting is skipped and the
// known device set carries over unchanged.
func (s *Store) ObserveDevices(reported []model.Device, errored []model.DeviceID, authoritative bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[model.DeviceID]struct{}, len(reported)+len(errored))
	for _, dev := range reported {
		seen[dev.ID] = struct{}{}
		st, ok := s.devices[dev.ID]
		if !ok {
			s.devices[dev.ID] = &deviceState{device: dev}
			continue
		}
		st.device = dev
		st.misses = 0
		st.retired = false
	}

	for _, id := range errored {
		seen[id] = struct{}{}
		if st, ok := s.devices[id]; ok {
			st.misses = 0
			st.retired = false
		}
	}

	if !authoritative {
		return
	}

	for id, st := range s.devices {
		if _, ok := seen[id]; ok || st.retired {
			continue
		}
		st.misses++
		if st.misses >= s.retireAfter {
			st.retired = true
		}
	}
}

// Devices returns the active (non-retired) device set, ordered by
// source index with the id as a tiebreaker.
func (s *Store) Devices() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Device, 0, len(s.devices))
	for _, st := range s.devices {
		if st.retired {
			continue
		}
		out = append(out, st.device)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SeriesCount returns the number of series ever created. Retired
// devices' series are counted; memory stays bounded because every
// series is capacity-bounded.
func (s *Store) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}
