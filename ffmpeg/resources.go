package ffmpeg

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Thresholds below which a host is considered too busy for a comfortable
// encode. Zero disables a check.
type Thresholds struct {
	CPUIdle  float64 // percent
	FreeMem  int64
	FreeDisk int64
}

// swapped in tests
var (
	cpuPercent    = cpu.Percent
	virtualMemory = mem.VirtualMemory
	diskUsage     = disk.Usage
)

// CheckResources reports resource shortfalls for an encode writing into
// dir. The result is advisory: jobs are serialized anyway and nothing is
// delayed or failed because of it.
func CheckResources(dir string, th Thresholds) []string {
	var warnings []string

	if th.CPUIdle > 0 {
		p, err := cpuPercent(time.Second, false)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not get CPU usage: %v", err))
		} else if len(p) > 0 && p[0] > 100.0-th.CPUIdle {
			warnings = append(warnings, fmt.Sprintf("not enough idle CPU: usage %.2f%%, idle threshold %.2f%%", p[0], th.CPUIdle))
		}
	}

	if th.FreeMem > 0 {
		vm, err := virtualMemory()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not get memory usage: %v", err))
		} else if vm.Available < uint64(th.FreeMem) {
			warnings = append(warnings, fmt.Sprintf("not enough free memory: available %s, wanted %s",
				datasize.ByteSize(vm.Available).HumanReadable(), datasize.ByteSize(th.FreeMem).HumanReadable()))
		}
	}

	if th.FreeDisk > 0 {
		d, err := diskUsage(dir)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not get disk usage for %s: %v", dir, err))
		} else if d.Free < uint64(th.FreeDisk) {
			warnings = append(warnings, fmt.Sprintf("not enough free disk space in %s: available %s, wanted %s",
				dir, datasize.ByteSize(d.Free).HumanReadable(), datasize.ByteSize(th.FreeDisk).HumanReadable()))
		}
	}
	return warnings
}
