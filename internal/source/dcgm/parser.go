package dcgm

import (
	"bufio"
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// sentinelThreshold is the threshold above which DCGM metric values are
// treated as "blank" sentinel values (~1.8e19) and rejected.
const sentinelThreshold = 1e15

const (
	metricProfGrEngineActive = "DCGM_FI_PROF_GR_ENGINE_ACTIVE"
	metricDevGPUUtil         = "DCGM_FI_DEV_GPU_UTIL"
	metricDevMemCopyUtil     = "DCGM_FI_DEV_MEM_COPY_UTIL"
	metricDevFBUsed          = "DCGM_FI_DEV_FB_USED"
	metricDevFBTotal         = "DCGM_FI_DEV_FB_TOTAL"
	metricDevGPUTemp         = "DCGM_FI_DEV_GPU_TEMP"
	metricDevPowerUsage      = "DCGM_FI_DEV_POWER_USAGE"
	metricDevPowerLimitMax   = "DCGM_FI_DEV_POWER_MGMT_LIMIT_MAX"
	metricDevPowerLimit      = "DCGM_FI_DEV_POWER_MGMT_LIMIT"
)

type dcgmLabels struct {
	gpu       string
	uuid      string
	modelName string
}

// parsedSample is a single parsed Prometheus metric sample.
type parsedSample struct {
	name   string
	labels dcgmLabels
	value  float64
}

// deviceState accumulates samples for one GPU while parsing.
type deviceState struct {
	reading  source.DeviceReading
	hasProf  bool
	fbUsed   float64
	fbTotal  float64
	hasFB    bool
	hasLimit bool
}

// parseExposition parses dcgm-exporter exposition text into per-device
// raw readings. Devices are keyed by UUID, falling back to the gpu
// index label. For GPUs that support profiling metrics (Volta+),
// DCGM_FI_PROF_GR_ENGINE_ACTIVE is preferred over DCGM_FI_DEV_GPU_UTIL.
func parseExposition(data []byte) []source.DeviceReading {
	devices := make(map[string]*deviceState)

	for _, s := range parsePrometheusText(data) {
		if s.labels.uuid == "" && s.labels.gpu == "" {
			continue
		}
		if isSentinel(s.value) {
			continue
		}

		key := s.labels.uuid
		if key == "" {
			key = s.labels.gpu
		}
		d := getOrCreateDevice(devices, key, s.labels)

		switch s.name {
		case metricProfGrEngineActive:
			pct := s.value * 100
			d.reading.UtilizationPct = &pct
			d.hasProf = true

		case metricDevGPUUtil:
			if !d.hasProf {
				v := s.value
				d.reading.UtilizationPct = &v
			}

		case metricDevMemCopyUtil:
			v := s.value
			d.reading.MemUtilizationPct = &v

		case metricDevFBUsed:
			d.fbUsed = s.value
			d.hasFB = true

		case metricDevFBTotal:
			d.fbTotal = s.value

		case metricDevGPUTemp:
			v := s.value
			d.reading.TemperatureC = &v

		case metricDevPowerUsage:
			v := s.value
			d.reading.PowerDrawWatts = &v

		case metricDevPowerLimitMax:
			d.reading.Device.RatedPowerWatts = s.value
			d.hasLimit = true

		case metricDevPowerLimit:
			if !d.hasLimit {
				d.reading.Device.RatedPowerWatts = s.value
			}
		}
	}

	keys := make([]string, 0, len(devices))
	for k := range devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]source.DeviceReading, 0, len(devices))
	for _, k := range keys {
		d := devices[k]
		// Fall back to framebuffer occupancy when the exporter does not
		// publish memory copy utilization.
		if d.reading.MemUtilizationPct == nil && d.hasFB && d.fbTotal > 0 {
			pct := d.fbUsed / d.fbTotal * 100
			d.reading.MemUtilizationPct = &pct
		}
		result = append(result, d.reading)
	}
	return result
}

// getOrCreateDevice returns the accumulator for the given key, creating
// it from the sample's labels if needed.
func getOrCreateDevice(devices map[string]*deviceState, key string, labels dcgmLabels) *deviceState {
	if d, ok := devices[key]; ok {
		return d
	}

	index, _ := strconv.Atoi(labels.gpu)
	d := &deviceState{
		reading: source.DeviceReading{
			Device: model.Device{
				ID:    model.DeviceID(key),
				Name:  labels.modelName,
				Index: index,
			},
		},
	}
	devices[key] = d
	return d
}

func isSentinel(v float64) bool {
	return v > sentinelThreshold || v < -sentinelThreshold
}

// parsePrometheusText parses Prometheus exposition text line-by-line,
// extracting metric samples with their labels and values.
func parsePrometheusText(data []byte) []parsedSample {
	var samples []parsedSample
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		s, ok := parseSampleLine(line)
		if !ok {
			continue
		}
		samples = append(samples, s)
	}

	return samples
}

// parseSampleLine parses a single Prometheus metric line:
//
//	metric_name{label1="val1",label2="val2"} value [timestamp]
func parseSampleLine(line string) (parsedSample, bool) {
	var s parsedSample

	braceStart := strings.IndexByte(line, '{')
	if braceStart < 0 {
		// No labels: "name value"
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return s, false
		}
		s.name = parts[0]
		v, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return s, false
		}
		s.value = v
		return s, true
	}

	s.name = line[:braceStart]

	braceEnd := strings.LastIndexByte(line, '}')
	if braceEnd <= braceStart {
		return s, false
	}

	s.labels = parseLabels(line[braceStart+1 : braceEnd])

	valueStr := strings.TrimSpace(line[braceEnd+1:])
	parts := strings.Fields(valueStr)
	if len(parts) == 0 {
		return s, false
	}
	v, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return s, false
	}
	s.value = v

	return s, true
}

// parseLabels parses the label portion of a Prometheus metric line:
//
//	label1="val1",label2="val2"
//
// It handles escaped characters within quoted label values.
func parseLabels(s string) dcgmLabels {
	var l dcgmLabels
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := s[:eq]
		s = s[eq+1:]

		if len(s) == 0 || s[0] != '"' {
			break
		}
		s = s[1:]

		var val strings.Builder
		i := 0
		for i < len(s) {
			if s[i] == '\\' && i+1 < len(s) {
				switch s[i+1] {
				case '"':
					val.WriteByte('"')
				case '\\':
					val.WriteByte('\\')
				case 'n':
					val.WriteByte('\n')
				default:
					val.WriteByte('\\')
					val.WriteByte(s[i+1])
				}
				i += 2
				continue
			}
			if s[i] == '"' {
				break
			}
			val.WriteByte(s[i])
			i++
		}

		value := val.String()
		if i < len(s) {
			s = s[i+1:] // skip closing quote
		} else {
			s = ""
		}

		if len(s) > 0 && s[0] == ',' {
			s = s[1:]
		}

		switch key {
		case "gpu":
			l.gpu = value
		case "UUID", "uuid":
			l.uuid = value
		case "modelName":
			l.modelName = value
		}
	}
	return l
}
