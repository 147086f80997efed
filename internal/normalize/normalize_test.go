package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

func f(v float64) *float64 { return &v }

func deviceReading(rated float64) source.DeviceReading {
	return source.DeviceReading{
		Device: model.Device{ID: "GPU-a", Name: "Test GPU", RatedPowerWatts: rated},
	}
}

func findRecord(t *testing.T, records []model.MetricRecord, typ model.MetricType) model.MetricRecord {
	t.Helper()
	for _, r := range records {
		if r.Type == typ {
			return r
		}
	}
	t.Fatalf("no %s record in %+v", typ, records)
	return model.MetricRecord{}
}

func hasRecord(records []model.MetricRecord, typ model.MetricType) bool {
	for _, r := range records {
		if r.Type == typ {
			return true
		}
	}
	return false
}

func TestDevice_PowerPercentage(t *testing.T) {
	n := New(DefaultThresholds())
	ts := time.Now()

	r := deviceReading(300)
	r.PowerDrawWatts = f(150)

	res := n.Device(r, ts, 1)
	rec := findRecord(t, res.Records, model.MetricPowerPct)
	assert.InDelta(t, 50.0, rec.Value, 0.001)
	assert.Zero(t, res.Clamped)
}

func TestDevice_PowerOverRatedClamps(t *testing.T) {
	n := New(DefaultThresholds())

	r := deviceReading(300)
	r.PowerDrawWatts = f(400) // sensor noise above TDP

	res := n.Device(r, time.Now(), 1)
	rec := findRecord(t, res.Records, model.MetricPowerPct)
	assert.InDelta(t, 100.0, rec.Value, 0.001)
	assert.Equal(t, 1, res.Clamped)
}

func TestDevice_NoRatedPowerNoRecord(t *testing.T) {
	n := New(DefaultThresholds())

	r := deviceReading(0) // rated limit unknown
	r.PowerDrawWatts = f(150)

	res := n.Device(r, time.Now(), 1)
	assert.False(t, hasRecord(res.Records, model.MetricPowerPct),
		"no power_pct record should be emitted without a rated limit")
}

func TestDevice_TemperatureStatusBoundaries(t *testing.T) {
	n := New(DefaultThresholds())

	cases := []struct {
		temp float64
		want model.Status
	}{
		{59.999, model.StatusNormal},
		{60, model.StatusWarm}, // inclusive lower bound
		{79.999, model.StatusWarm},
		{80, model.StatusHot}, // ties resolve to higher severity
		{95, model.StatusHot},
	}
	for _, tc := range cases {
		r := deviceReading(300)
		r.TemperatureC = f(tc.temp)

		res := n.Device(r, time.Now(), 1)
		rec := findRecord(t, res.Records, model.MetricTempC)
		assert.Equal(t, tc.want, rec.Status, "temp %g", tc.temp)
	}
}

func TestDevice_NegativeTemperatureDiscarded(t *testing.T) {
	n := New(DefaultThresholds())

	r := deviceReading(300)
	r.TemperatureC = f(-5)

	res := n.Device(r, time.Now(), 1)
	assert.False(t, hasRecord(res.Records, model.MetricTempC))
	assert.Equal(t, 1, res.Discarded)
}

func TestDevice_UtilizationClampedNotRejected(t *testing.T) {
	n := New(DefaultThresholds())

	r := deviceReading(300)
	r.UtilizationPct = f(104.2)
	r.MemUtilizationPct = f(-3)

	res := n.Device(r, time.Now(), 1)
	gpu := findRecord(t, res.Records, model.MetricGPUUtil)
	mem := findRecord(t, res.Records, model.MetricMemUtil)
	assert.Equal(t, 100.0, gpu.Value)
	assert.Equal(t, 0.0, mem.Value)
	assert.Equal(t, 2, res.Clamped)
	assert.Zero(t, res.Discarded)
}

func TestDevice_NaNDiscarded(t *testing.T) {
	n := New(DefaultThresholds())

	r := deviceReading(300)
	r.UtilizationPct = f(math.NaN())

	res := n.Device(r, time.Now(), 1)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Discarded)
}

func TestDevice_CycleStampPropagates(t *testing.T) {
	n := New(DefaultThresholds())
	ts := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	r := deviceReading(300)
	r.UtilizationPct = f(10)
	r.MemUtilizationPct = f(20)
	r.PowerDrawWatts = f(30)
	r.TemperatureC = f(40)

	res := n.Device(r, ts, 7)
	require.Len(t, res.Records, 4)
	for _, rec := range res.Records {
		assert.Equal(t, uint64(7), rec.Cycle)
		assert.True(t, rec.Timestamp.Equal(ts))
		assert.Equal(t, model.DeviceID("GPU-a"), rec.DeviceID)
	}
}

func TestHost(t *testing.T) {
	n := New(DefaultThresholds())

	res := n.Host(source.HostReading{CPUUtilPct: f(91), RAMUtilPct: f(76)}, time.Now(), 3)
	require.Len(t, res.Records, 2)

	cpu := findRecord(t, res.Records, model.MetricCPUUtil)
	ram := findRecord(t, res.Records, model.MetricRAMUtil)
	assert.Equal(t, model.StatusHot, cpu.Status)
	assert.Equal(t, model.StatusWarm, ram.Status)
	assert.Empty(t, cpu.DeviceID)
}

func TestHost_MissingFieldsProduceNoRecords(t *testing.T) {
	n := New(DefaultThresholds())

	res := n.Host(source.HostReading{}, time.Now(), 1)
	assert.Empty(t, res.Records)
}

func TestClassify_CustomThresholds(t *testing.T) {
	th := Thresholds{TempWarmC: 50, TempHotC: 70, UtilWarm: 40, UtilHot: 60}

	assert.Equal(t, model.StatusWarm, th.Classify(model.MetricTempC, 50))
	assert.Equal(t, model.StatusHot, th.Classify(model.MetricGPUUtil, 60))
	assert.Equal(t, model.StatusNormal, th.Classify(model.MetricRAMUtil, 39.9))
}
