//go:build windows

package memory_map

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// QueryWindowsRegion queries the region containing addr with VirtualQueryEx.
func QueryWindowsRegion(handle windows.Handle, addr uint64) (MemoryRegion, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return MemoryRegion{}, err
	}

	return FromWin32(
		uint64(mbi.BaseAddress),
		uint64(mbi.AllocationBase),
		uint64(mbi.RegionSize),
		mbi.State,
		mbi.Protect,
		mbi.Type,
	), nil
}
