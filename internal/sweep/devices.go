package sweep

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const infoRuntime = "hackrf_info"

// DeviceInfo identifies one connected HackRF board.
type DeviceInfo struct {
	Index  int
	Serial string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("HackRF %d - %s", d.Index, d.Serial)
}

// ListDevices runs hackrf_info and parses the connected boards. A missing
// binary or a failed run yields an empty list, not an error: device listing
// is advisory and the sweep tool picks the first board by default anyway.
func ListDevices(ctx context.Context) []DeviceInfo {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, infoRuntime).CombinedOutput()
	if err != nil && len(out) == 0 {
		return nil
	}

	var devices []DeviceInfo
	index := -1
	for _, line := range strings.Split(string(out), "\n") {
		raw := strings.TrimSpace(line)
		low := strings.ToLower(raw)

		// Lines like "Found HackRF board 0:"
		if strings.HasPrefix(low, "found hackrf") {
			index++
		}

		// Lines like "Serial number: 436c63dc2d7d7563"
		if strings.Contains(low, "serial") && strings.Contains(raw, ":") {
			_, val, _ := strings.Cut(raw, ":")
			if serial := strings.TrimSpace(val); serial != "" {
				devices = append(devices, DeviceInfo{Index: index, Serial: serial})
			}
		}
	}

	return devices
}
