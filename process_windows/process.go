//go:build windows

// Package process_windows implements process.Process with the Win32 process
// and virtual memory APIs.
package process_windows

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"

	"procmem/process"
	"procmem/process/memory_map"
)

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	rights process.AccessRights
	handle windows.Handle
	is64   bool
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
}

var (
	_ process.Process           = (*WindowsProcess)(nil)
	_ process.ProcessController = (*WindowsProcess)(nil)
	_ process.RemoteExecutor    = (*WindowsProcess)(nil)
	_ process.StateReporter     = (*WindowsProcess)(nil)
)

// Open opens pid with rights, always adding SYNCHRONIZE so liveness can be polled.
func Open(pid process.ProcessID, rights process.AccessRights) (*WindowsProcess, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d: %w", pid, process.ErrInvalidArgument)
	}

	rights = rights.ForOpen()
	h, err := windows.OpenProcess(uint32(rights), false, uint32(pid))
	if err != nil {
		return nil, openError(pid, err)
	}

	p := &WindowsProcess{
		pid:    pid,
		rights: rights,
		handle: h,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	is64, err := p.detectBitness()
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	p.is64 = is64

	p.log.Infoln("Process opened", "rights=", rights, "64bit=", is64)
	return p, nil
}

// Opener adapts Open to process.Opener.
func Opener(pid process.ProcessID, rights process.AccessRights) (process.Process, error) {
	p, err := Open(pid, rights)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func openError(pid process.ProcessID, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("process %d: %w: %w", pid, process.ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return fmt.Errorf("process %d: %w: %w", pid, process.ErrNotFound, err)
	default:
		return fmt.Errorf("open process %d: %w", pid, err)
	}
}

// detectBitness asks IsWow64Process about the target. Without query rights on
// the session handle a short-lived limited handle is used instead.
func (p *WindowsProcess) detectBitness() (bool, error) {
	h := p.handle
	if !p.rights.Has(process.RightQueryInformation) && !p.rights.Has(process.RightQueryLimitedInformation) {
		tmp, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(p.pid))
		if err != nil {
			return false, openError(p.pid, err)
		}
		defer windows.CloseHandle(tmp)
		h = tmp
	}

	var wow64 bool
	if err := windows.IsWow64Process(h, &wow64); err != nil {
		return false, process.NewOSError("IsWow64Process", 0, 0, process.ErrAccessDenied, err)
	}
	if wow64 {
		return false, nil
	}
	return nativeIs64(), nil
}

// nativeIs64 reports whether the OS itself is 64-bit.
func nativeIs64() bool {
	if process.ControllerPointerSize == 8 {
		return true
	}
	self, _ := windows.GetCurrentProcess()
	var wow64 bool
	return windows.IsWow64Process(self, &wow64) == nil && wow64
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := windows.CloseHandle(p.handle); err != nil {
		p.log.Warn("CloseHandle: ", err)
	}
	p.log.Infoln("Process closed")
	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	return p.pid
}

func (p *WindowsProcess) Is64Bit() bool {
	return p.is64
}

func (p *WindowsProcess) PointerSize() int {
	if p.is64 {
		return 8
	}
	return 4
}

func (p *WindowsProcess) MaxAddress() process.ProcessMemoryAddress {
	return process.DefaultMaxAddress(p.is64)
}

// Handle returns the session handle, or 0 once closed.
func (p *WindowsProcess) Handle() windows.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}
	return p.handle
}

func (p *WindowsProcess) live() (windows.Handle, error) {
	h := p.Handle()
	if h == 0 {
		return 0, process.ErrProcessNotOpen
	}
	return h, nil
}

// IsValid waits on the process handle with a zero timeout.
func (p *WindowsProcess) IsValid() bool {
	h := p.Handle()
	if h == 0 {
		return false
	}
	event, err := windows.WaitForSingleObject(h, 0)
	if err != nil {
		p.log.Debugln("WaitForSingleObject:", err)
		return false
	}
	return event == uint32(windows.WAIT_TIMEOUT)
}

// transferError maps a Read/WriteProcessMemory failure onto the error taxonomy.
func transferError(op string, addr process.ProcessMemoryAddress, size int, kind error, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_INVALID_HANDLE):
		kind = process.ErrInvalidHandle
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		err = fmt.Errorf("%w: %w", process.ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_PARTIAL_COPY), errors.Is(err, windows.ERROR_NOACCESS):
		err = fmt.Errorf("%w: %w", process.ErrAddressNotMapped, err)
	}
	return process.NewOSError(op, addr, uint64(size), kind, err)
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	h, err := p.live()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)
	var n uintptr
	if err := windows.ReadProcessMemory(h, uintptr(addr), &buf[0], uintptr(size), &n); err != nil {
		return nil, transferError("read", addr, len(buf), process.ErrReadFailed, err)
	}
	if n != uintptr(size) {
		return buf[:n], process.NewOSError("read", addr, uint64(size), process.ErrReadFailed,
			fmt.Errorf("partial read: %d of %d bytes", n, size))
	}
	return buf, nil
}

func (p *WindowsProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (int, error) {
	h, err := p.live()
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	var n uintptr
	if err := windows.WriteProcessMemory(h, uintptr(addr), &data[0], uintptr(len(data)), &n); err != nil {
		return int(n), transferError("write", addr, len(data), process.ErrWriteFailed, err)
	}
	if n != uintptr(len(data)) {
		return int(n), process.NewOSError("write", addr, uint64(len(data)), process.ErrWriteFailed,
			fmt.Errorf("partial write: %d of %d bytes", n, len(data)))
	}
	return int(n), nil
}

// QueryRegion queries addr with VirtualQueryEx. Addresses above the highest
// application address come back as one free region reaching MaxAddress.
func (p *WindowsProcess) QueryRegion(addr process.ProcessMemoryAddress) (memory_map.MemoryRegion, error) {
	h, err := p.live()
	if err != nil {
		return memory_map.MemoryRegion{}, err
	}

	r, err := memory_map.QueryWindowsRegion(h, uint64(addr))
	if err == nil {
		return r, nil
	}

	maxAddr := p.MaxAddress()
	if errors.Is(err, windows.ERROR_INVALID_PARAMETER) && addr <= maxAddr {
		base := memory_map.AlignDown(uint64(addr), memory_map.PageSize)
		return memory_map.MemoryRegion{
			BaseAddress:    base,
			AllocationBase: base,
			Size:           uint64(maxAddr) + 1 - base,
			State:          memory_map.StateFree,
			Protection:     memory_map.ProtNoAccess,
		}, nil
	}
	if errors.Is(err, windows.ERROR_INVALID_HANDLE) {
		return memory_map.MemoryRegion{}, process.NewOSError("query", addr, 0, process.ErrInvalidHandle, err)
	}
	return memory_map.MemoryRegion{}, process.NewOSError("query", addr, 0, process.ErrQueryFailed, err)
}

// ExitCode returns the exit code of the target, or STILL_ACTIVE (259) while it runs.
func (p *WindowsProcess) ExitCode() (uint32, error) {
	h, err := p.live()
	if err != nil {
		return 0, err
	}
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return 0, err
	}
	return code, nil
}

// stillActive is the exit code GetExitCodeProcess reports for a running process.
const stillActive = 259

// State is ProcessDead once the target has an exit code, ProcessRunning before.
// Windows has no cheap query for a suspended process.
func (p *WindowsProcess) State() (process.ProcessState, error) {
	code, err := p.ExitCode()
	if err != nil {
		return process.ProcessUnknown, err
	}
	if code == stillActive && p.IsValid() {
		return process.ProcessRunning, nil
	}
	return process.ProcessDead, nil
}

// ImagePath returns the full path of the main executable.
func (p *WindowsProcess) ImagePath() (string, error) {
	h, err := p.live()
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}
