package host

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// parseCPULine extracts the aggregate "cpu " line from /proc/stat.
// Fields are user, nice, system, idle, iowait, irq, softirq, steal;
// idle and iowait both count as idle time.
func parseCPULine(data []byte) (cpuCounters, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)[1:]
		if len(fields) < 4 {
			return cpuCounters{}, fmt.Errorf("malformed cpu line %q", line)
		}

		var c cpuCounters
		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return cpuCounters{}, fmt.Errorf("bad cpu field %q: %w", f, err)
			}
			c.total += v
			if i == 3 || i == 4 { // idle, iowait
				c.idle += v
			}
		}
		return c, nil
	}
	return cpuCounters{}, fmt.Errorf("no cpu line in stat data")
}

// parseMeminfo computes used memory as a percentage of MemTotal using
// MemAvailable, falling back to MemFree on kernels without it.
func parseMeminfo(data []byte) (*float64, error) {
	var total, available, free float64
	var haveAvailable bool

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
			haveAvailable = true
		case "MemFree:":
			free = v
		}
	}

	if total <= 0 {
		return nil, fmt.Errorf("no MemTotal in meminfo data")
	}
	if !haveAvailable {
		available = free
	}
	pct := (total - available) / total * 100
	return &pct, nil
}
