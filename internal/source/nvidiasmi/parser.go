package nvidiasmi

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/source"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// parseDeviceList parses the CSV output of the discovery query:
// one "index, uuid, name, power.max_limit" line per device.
func parseDeviceList(out []byte) ([]model.Device, error) {
	var devices []model.Device

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := splitCSV(line, 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed device line %q", line)
		}

		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("bad device index %q: %w", fields[0], err)
		}
		if fields[1] == "" {
			return nil, fmt.Errorf("missing uuid in line %q", line)
		}

		dev := model.Device{
			ID:    model.DeviceID(fields[1]),
			Name:  fields[2],
			Index: index,
		}
		// Rated power can be "[N/A]" on some boards; leave it zero and
		// no power_pct will be derived for the device.
		if v := parseValue(fields[3]); v != nil {
			dev.RatedPowerWatts = *v
		}
		devices = append(devices, dev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

// parseMetricLine parses a single "power.draw, temperature.gpu,
// utilization.gpu, utilization.memory" CSV line.
func parseMetricLine(out []byte) (source.DeviceReading, error) {
	line := strings.TrimSpace(string(out))
	if line == "" {
		return source.DeviceReading{}, fmt.Errorf("empty nvidia-smi output")
	}
	// Only the first line matters; -i targets a single device.
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	fields := splitCSV(line, 4)
	if len(fields) != 4 {
		return source.DeviceReading{}, fmt.Errorf("malformed metric line %q", line)
	}

	return source.DeviceReading{
		PowerDrawWatts:    parseValue(fields[0]),
		TemperatureC:      parseValue(fields[1]),
		UtilizationPct:    parseValue(fields[2]),
		MemUtilizationPct: parseValue(fields[3]),
	}, nil
}

// splitCSV splits an nvidia-smi CSV line into at most n trimmed fields.
func splitCSV(line string, n int) []string {
	fields := strings.SplitN(line, ",", n)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// parseValue parses one numeric field. nvidia-smi reports "[N/A]" or
// "[Not Supported]" for values a board cannot provide; those (and
// anything else non-numeric) parse to nil rather than an error.
func parseValue(s string) *float64 {
	if s == "" || strings.HasPrefix(s, "[") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
