package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

func (pma ProcessMemoryAddress) String() string {
	return pma.ToString()
}

// Offset applies a signed displacement, wrapping like the target's pointer arithmetic would.
func (pma ProcessMemoryAddress) Offset(delta int64) ProcessMemoryAddress {
	return ProcessMemoryAddress(uint64(pma) + uint64(delta))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

// Max usable user-mode addresses, by target bitness.
const (
	MaxAddress32 ProcessMemoryAddress = 0xFFFFFFFF
	MaxAddress64 ProcessMemoryAddress = 0x7FFFFFFFFFFF
)

// DefaultMaxAddress returns the scan bound used when a caller does not provide one.
func DefaultMaxAddress(is64Bit bool) ProcessMemoryAddress {
	if is64Bit {
		return MaxAddress64
	}
	return MaxAddress32
}
