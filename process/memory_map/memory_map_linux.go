//go:build linux

package memory_map

import (
	"fmt"
	"os"
)

// LinuxMemoryMap reads process mappings from procfs.
type LinuxMemoryMap struct{}

// NewLinuxMemoryMap creates a new LinuxMemoryMap instance
func NewLinuxMemoryMap() *LinuxMemoryMap {
	return &LinuxMemoryMap{}
}

// ReadMemoryMap reads and parses the memory map for a process from /proc/[pid]/maps
func (l *LinuxMemoryMap) ReadMemoryMap(pid int) ([]MemoryMapItem, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMemoryMap(file)
}
