//go:build linux

package process_linux

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"procmem/process"
)

// processVMReadv copies len(buf) bytes from the target in one call.
func processVMReadv(pid process.ProcessID, buf []byte, remoteAddr process.ProcessMemoryAddress) (int, error) {
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))

	remote := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(buf),
	}}

	return unix.ProcessVMReadv(int(pid), local, remote, 0)
}

// transferError maps an errno from process_vm_readv/writev onto the error taxonomy.
func transferError(op string, addr process.ProcessMemoryAddress, size int, kind error, err error) error {
	switch {
	case errors.Is(err, unix.ESRCH):
		kind = process.ErrInvalidHandle
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		err = fmt.Errorf("%w: %w", process.ErrAccessDenied, err)
	case errors.Is(err, unix.EFAULT):
		err = fmt.Errorf("%w: %w", process.ErrAddressNotMapped, err)
	}
	return process.NewOSError(op, addr, uint64(size), kind, err)
}

// ReadMemory reads memory from the process at the specified address
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if !p.rights.Has(process.RightVMRead) {
		return nil, process.NewOSError("read", addr, uint64(size), process.ErrReadFailed, process.ErrAccessDenied)
	}
	if size == 0 {
		return []byte{}, nil
	}
	if err := p.checkLive("read", addr, int(size)); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	n, err := processVMReadv(p.pid, buf, addr)
	if err != nil {
		return nil, transferError("read", addr, len(buf), process.ErrReadFailed, err)
	}
	if n != len(buf) {
		return buf[:n], process.NewOSError("read", addr, uint64(size), process.ErrReadFailed,
			fmt.Errorf("partial read: %d of %d bytes", n, size))
	}
	return buf, nil
}
