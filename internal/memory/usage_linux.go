//go:build linux

package memory

import "golang.org/x/sys/unix"

func readUsage() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	if total == 0 {
		return 0
	}
	free := (uint64(info.Freeram) + uint64(info.Bufferram)) * uint64(info.Unit)
	if free > total {
		return 0
	}
	return float64(total-free) / float64(total)
}
