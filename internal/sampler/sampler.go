// Package sampler drives the poll cycle: fan out to the telemetry
// sources, normalize the raw readings, append them to the history
// store, and publish a consistent snapshot. Nothing inside the loop is
// allowed to terminate it; every failure is converted into diagnostic
// state and the next cycle proceeds on schedule.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/errors"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/history"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/normalize"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/observability"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// Sampler runs the poll-normalize-publish loop over a fixed set of
// sources. It is the sole writer to the history store.
type Sampler struct {
	sources       []source.Source
	store         *history.Store
	normalizer    *normalize.Normalizer
	metrics       *observability.Metrics
	errs          *errors.ErrorCollector
	interval      time.Duration
	sourceTimeout time.Duration

	state *stateTracker
	cycle atomic.Uint64

	latestSnapshot atomic.Pointer[model.Snapshot]
	clampedTotal   atomic.Uint64
	discardedTotal atomic.Uint64
}

// New creates a Sampler polling the given sources every interval.
// sourceTimeout bounds one source's share of a cycle; a source that
// exceeds it is treated as unavailable for that cycle only.
func New(
	sources []source.Source,
	store *history.Store,
	normalizer *normalize.Normalizer,
	metrics *observability.Metrics,
	errs *errors.ErrorCollector,
	interval time.Duration,
	sourceTimeout time.Duration,
) *Sampler {
	return &Sampler{
		sources:       sources,
		store:         store,
		normalizer:    normalizer,
		metrics:       metrics,
		errs:          errs,
		interval:      interval,
		sourceTimeout: sourceTimeout,
		state:         newStateTracker(),
	}
}

// LatestSnapshot returns the most recently published snapshot, or nil
// before the first cycle completes. The returned value is immutable.
func (s *Sampler) LatestSnapshot() *model.Snapshot {
	return s.latestSnapshot.Load()
}

// State returns the sampler's current position in the cycle.
func (s *Sampler) State() CycleState {
	return s.state.get()
}

// Diagnostics composes the source-health view from the latest snapshot
// and the running normalization counters.
func (s *Sampler) Diagnostics() model.Diagnostics {
	d := model.Diagnostics{
		ClampedValues:     s.clampedTotal.Load(),
		DiscardedReadings: s.discardedTotal.Load(),
		ActiveErrors:      s.errs.GetActiveErrorCodes(),
	}
	if snap := s.latestSnapshot.Load(); snap != nil {
		d.Cycle = snap.Cycle
		d.Degraded = snap.Degraded
		d.DeviceErrors = snap.DeviceErrors
	}
	return d
}

// Run executes the sampling loop until ctx is canceled. The first
// cycle runs immediately; an in-flight cycle always finishes before
// Run returns, so no record is ever left half-written.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// sourceResult is one source's contribution to a cycle.
type sourceResult struct {
	name    string
	reading source.Reading
	err     error
}

func (s *Sampler) runCycle(ctx context.Context) {
	start := time.Now()
	cycle := s.cycle.Add(1)
	ts := start

	// Polling: fan out, one goroutine per source, joined before the
	// cycle can publish.
	s.setState(StatePolling)
	results := make([]sourceResult, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			pollStart := time.Now()
			pollCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
			defer cancel()

			reading, err := src.Poll(pollCtx)
			results[i] = sourceResult{name: src.Name(), reading: reading, err: err}
			s.metrics.SourcePollDuration.WithLabelValues(src.Name()).Observe(time.Since(pollStart).Seconds())
		}(i, src)
	}
	wg.Wait()

	// Normalizing: convert raw readings to records, stamped with this
	// cycle's single timestamp.
	s.setState(StateNormalizing)
	var (
		records      []model.MetricRecord
		devices      []model.Device
		erroredIDs   []model.DeviceID
		deviceErrors = make(map[model.DeviceID]string)
		clamped      int
		discarded    int
		degraded     bool
	)
	for _, res := range results {
		if res.err != nil {
			degraded = true
			slog.Warn("source unavailable", "source", res.name, "cycle", cycle, "error", res.err)
			s.errs.Report(errors.MonitorError{
				Code:      errors.ErrSourceUnavailable,
				Message:   res.err.Error(),
				Component: res.name,
				Timestamp: ts.UnixMilli(),
				Err:       res.err,
			})
			continue
		}

		for id, err := range res.reading.DeviceErrors {
			deviceErrors[id] = err.Error()
			erroredIDs = append(erroredIDs, id)
			s.metrics.DeviceErrorsTotal.WithLabelValues(string(id)).Inc()
			s.errs.Report(errors.MonitorError{
				Code:      errors.ErrDeviceQueryFailed,
				Message:   err.Error(),
				Component: fmt.Sprintf("%s/%s", res.name, id),
				Timestamp: ts.UnixMilli(),
				Err:       err,
			})
		}

		for _, dr := range res.reading.Devices {
			devices = append(devices, dr.Device)
			nr := s.normalizer.Device(dr, ts, cycle)
			records = append(records, nr.Records...)
			clamped += nr.Clamped
			discarded += nr.Discarded
		}
		if res.reading.Host != nil {
			nr := s.normalizer.Host(*res.reading.Host, ts, cycle)
			records = append(records, nr.Records...)
			clamped += nr.Clamped
			discarded += nr.Discarded
		}
	}

	for _, rec := range records {
		s.store.Append(rec)
	}
	// A degraded cycle has no complete device census: an unavailable
	// source says nothing about device presence, so misses must not
	// accrue and the known set carries over.
	s.store.ObserveDevices(devices, erroredIDs, !degraded)

	if clamped > 0 {
		s.clampedTotal.Add(uint64(clamped))
		s.metrics.ClampedValuesTotal.Add(float64(clamped))
	}
	if discarded > 0 {
		s.discardedTotal.Add(uint64(discarded))
		s.metrics.DiscardedReadingsTotal.Add(float64(discarded))
		s.errs.Report(errors.MonitorError{
			Code:      errors.ErrInvalidReading,
			Message:   fmt.Sprintf("%d readings discarded as implausible", discarded),
			Component: "normalizer",
			Timestamp: ts.UnixMilli(),
		})
	}

	// Publishing: assemble and atomically swap in the snapshot.
	s.setState(StatePublishing)
	snap := s.buildSnapshot(cycle, ts, degraded, deviceErrors)
	s.latestSnapshot.Store(snap)

	s.metrics.ActiveDevices.Set(float64(len(snap.Devices)))
	s.metrics.SeriesCount.Set(float64(s.store.SeriesCount()))
	s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if degraded {
		s.metrics.Degraded.Set(1)
		s.metrics.CyclesTotal.WithLabelValues("degraded").Inc()
	} else {
		s.metrics.Degraded.Set(0)
		s.metrics.CyclesTotal.WithLabelValues("ok").Inc()
	}
	s.setState(StateIdle)

	slog.Debug("cycle complete",
		"cycle", cycle,
		"devices", len(snap.Devices),
		"records", len(records),
		"degraded", degraded,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// buildSnapshot reads the store back into an immutable composite view.
// Building happens inside the cycle, after all appends, so the latest
// record of every refreshed series carries this cycle's id.
func (s *Sampler) buildSnapshot(cycle uint64, ts time.Time, degraded bool, deviceErrors map[model.DeviceID]string) *model.Snapshot {
	snap := &model.Snapshot{
		SnapshotID: uuid.New().String(),
		Cycle:      cycle,
		Timestamp:  ts,
		Degraded:   degraded,
	}
	if len(deviceErrors) > 0 {
		snap.DeviceErrors = deviceErrors
	}

	for _, dev := range s.store.Devices() {
		ds := model.DeviceSnapshot{
			Device:  dev,
			Metrics: make(map[model.MetricType]model.SeriesView),
		}
		for _, typ := range model.GPUMetricTypes {
			key := model.DeviceKey(dev.ID, typ)
			if view, ok := s.seriesView(key); ok {
				ds.Metrics[typ] = view
			}
		}
		snap.Devices = append(snap.Devices, ds)
	}

	for _, typ := range model.HostMetricTypes {
		if view, ok := s.seriesView(model.HostKey(typ)); ok {
			if snap.Host == nil {
				snap.Host = make(map[model.MetricType]model.SeriesView)
			}
			snap.Host[typ] = view
		}
	}

	return snap
}

func (s *Sampler) seriesView(key model.SeriesKey) (model.SeriesView, bool) {
	window := s.store.Window(key)
	if len(window) == 0 {
		return model.SeriesView{}, false
	}
	return model.SeriesView{
		Latest:  window[len(window)-1],
		History: window,
	}, true
}

func (s *Sampler) setState(st CycleState) {
	s.state.set(st)
	for _, other := range allStates {
		v := 0.0
		if other == st {
			v = 1.0
		}
		s.metrics.SamplerState.WithLabelValues(string(other)).Set(v)
	}
}
