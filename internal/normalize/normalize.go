// Package normalize converts raw source readings into canonical metric
// records. Normalization is pure: the same reading, thresholds, and
// cycle stamp always produce the same records.
package normalize

import (
	"math"
	"time"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// Thresholds is the ordered status boundary table. Boundaries are
// inclusive-lower: a value exactly at a boundary resolves to the
// higher-severity bucket.
type Thresholds struct {
	TempWarmC float64
	TempHotC  float64
	UtilWarm  float64
	UtilHot   float64
}

// DefaultThresholds returns the stock boundary table: temperature
// <60 normal, 60-80 warm, >=80 hot; percentage metrics <75 normal,
// 75-90 warm, >=90 hot.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempWarmC: 60,
		TempHotC:  80,
		UtilWarm:  75,
		UtilHot:   90,
	}
}

// Classify assigns the status bucket for a value of the given type.
func (t Thresholds) Classify(typ model.MetricType, v float64) model.Status {
	warm, hot := t.UtilWarm, t.UtilHot
	if typ == model.MetricTempC {
		warm, hot = t.TempWarmC, t.TempHotC
	}
	switch {
	case v >= hot:
		return model.StatusHot
	case v >= warm:
		return model.StatusWarm
	default:
		return model.StatusNormal
	}
}

// maxPlausibleTempC bounds temperature readings; silicon reports above
// this are sensor garbage, as are negative values.
const maxPlausibleTempC = 150

// Result carries the records produced from one reading plus the
// diagnostic counts accumulated while producing them.
type Result struct {
	Records []model.MetricRecord
	// Clamped counts percentage values pulled back into [0,100].
	Clamped int
	// Discarded counts readings rejected as physically implausible.
	Discarded int
}

// Normalizer turns raw readings into MetricRecords stamped with the
// poll cycle's single timestamp.
type Normalizer struct {
	thresholds Thresholds
}

// New creates a Normalizer with the given threshold table.
func New(t Thresholds) *Normalizer {
	return &Normalizer{thresholds: t}
}

// Device normalizes one GPU reading into up to four records: gpu_util,
// mem_util, power_pct, and temp_c. power_pct is derived from the power
// draw against the device's rated limit; if the limit is unknown, no
// power_pct record is emitted for the cycle.
func (n *Normalizer) Device(r source.DeviceReading, ts time.Time, cycle uint64) Result {
	var res Result
	id := r.Device.ID

	n.appendPct(&res, model.MetricGPUUtil, id, r.UtilizationPct, ts, cycle)
	n.appendPct(&res, model.MetricMemUtil, id, r.MemUtilizationPct, ts, cycle)

	if r.PowerDrawWatts != nil && r.Device.HasRatedPower() {
		pct := *r.PowerDrawWatts / r.Device.RatedPowerWatts * 100
		n.appendPct(&res, model.MetricPowerPct, id, &pct, ts, cycle)
	}

	if r.TemperatureC != nil {
		v := *r.TemperatureC
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > maxPlausibleTempC {
			res.Discarded++
		} else {
			res.Records = append(res.Records, model.MetricRecord{
				Timestamp: ts,
				Cycle:     cycle,
				Type:      model.MetricTempC,
				DeviceID:  id,
				Value:     v,
				Status:    n.thresholds.Classify(model.MetricTempC, v),
			})
		}
	}

	return res
}

// Host normalizes one host reading into cpu_util and ram_util records.
func (n *Normalizer) Host(r source.HostReading, ts time.Time, cycle uint64) Result {
	var res Result
	n.appendPct(&res, model.MetricCPUUtil, "", r.CPUUtilPct, ts, cycle)
	n.appendPct(&res, model.MetricRAMUtil, "", r.RAMUtilPct, ts, cycle)
	return res
}

// appendPct appends a percentage record, clamping to [0,100]. A clamp
// is counted for diagnostics but does not fail the cycle; NaN and Inf
// are discarded outright.
func (n *Normalizer) appendPct(res *Result, typ model.MetricType, id model.DeviceID, v *float64, ts time.Time, cycle uint64) {
	if v == nil {
		return
	}
	val := *v
	if math.IsNaN(val) || math.IsInf(val, 0) {
		res.Discarded++
		return
	}
	if val < 0 {
		val = 0
		res.Clamped++
	} else if val > 100 {
		val = 100
		res.Clamped++
	}
	res.Records = append(res.Records, model.MetricRecord{
		Timestamp: ts,
		Cycle:     cycle,
		Type:      typ,
		DeviceID:  id,
		Value:     val,
		Status:    n.thresholds.Classify(typ, val),
	})
}
