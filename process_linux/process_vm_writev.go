//go:build linux

package process_linux

import (
	"fmt"

	"golang.org/x/sys/unix"

	"procmem/process"
)

// processVMWritev copies data into the target in one call.
func processVMWritev(pid process.ProcessID, data []byte, remoteAddr process.ProcessMemoryAddress) (int, error) {
	local := []unix.Iovec{{Base: &data[0]}}
	local[0].SetLen(len(data))

	remote := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(data),
	}}

	return unix.ProcessVMWritev(int(pid), local, remote, 0)
}

// WriteMemory writes data to the process memory at the specified address.
// Read-only mappings are rejected by the kernel with EFAULT.
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (int, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if !p.rights.Has(process.RightVMWrite) {
		return 0, process.NewOSError("write", addr, uint64(len(data)), process.ErrWriteFailed, process.ErrAccessDenied)
	}
	if len(data) == 0 {
		return 0, nil
	}
	if err := p.checkLive("write", addr, len(data)); err != nil {
		return 0, err
	}

	n, err := processVMWritev(p.pid, data, addr)
	if err != nil {
		return 0, transferError("write", addr, len(data), process.ErrWriteFailed, err)
	}
	if n != len(data) {
		return n, process.NewOSError("write", addr, uint64(len(data)), process.ErrWriteFailed,
			fmt.Errorf("partial write: %d of %d bytes", n, len(data)))
	}
	return n, nil
}
