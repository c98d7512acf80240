//go:build windows

package process_windows

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"procmem/process"
	"procmem/process/memory_map"
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procVirtualAllocEx     = modkernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = modkernel32.NewProc("VirtualFreeEx")
	procCreateRemoteThread = modkernel32.NewProc("CreateRemoteThread")
	procGetExitCodeThread  = modkernel32.NewProc("GetExitCodeThread")

	modntdll             = windows.NewLazySystemDLL("ntdll.dll")
	procNtSuspendProcess = modntdll.NewProc("NtSuspendProcess")
	procNtResumeProcess  = modntdll.NewProc("NtResumeProcess")
)

const stillActive = 259

// AllocateMemory commits size bytes in the target.
func (p *WindowsProcess) AllocateMemory(size uint64, executable bool) (process.ProcessMemoryAddress, error) {
	h, err := p.live()
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, fmt.Errorf("allocate 0 bytes: %w", process.ErrInvalidArgument)
	}

	prot := memory_map.ProtRead | memory_map.ProtWrite
	if executable {
		prot |= memory_map.ProtExec
	}

	addr, _, callErr := procVirtualAllocEx.Call(
		uintptr(h),
		0,
		uintptr(size),
		uintptr(windows.MEM_COMMIT|windows.MEM_RESERVE),
		uintptr(memory_map.Win32Protect(prot)),
	)
	if addr == 0 {
		return 0, process.NewOSError("VirtualAllocEx", 0, size, process.ErrWriteFailed, callErr)
	}

	p.log.Debugln("allocated", size, "bytes at", fmt.Sprintf("%x", addr))
	return process.ProcessMemoryAddress(addr), nil
}

// FreeMemory releases an allocation made by AllocateMemory.
func (p *WindowsProcess) FreeMemory(addr process.ProcessMemoryAddress) error {
	h, err := p.live()
	if err != nil {
		return err
	}

	ok, _, callErr := procVirtualFreeEx.Call(uintptr(h), uintptr(addr), 0, uintptr(windows.MEM_RELEASE))
	if ok == 0 {
		return process.NewOSError("VirtualFreeEx", addr, 0, process.ErrWriteFailed, callErr)
	}
	return nil
}

// CreateRemoteThread starts a thread at start with param as its argument.
func (p *WindowsProcess) CreateRemoteThread(start process.ProcessMemoryAddress, param uint64) (process.RemoteThread, error) {
	h, err := p.live()
	if err != nil {
		return nil, err
	}
	if !p.rights.Has(process.RightCreateThread) {
		return nil, fmt.Errorf("create thread: %w", process.ErrAccessDenied)
	}

	var tid uint32
	th, _, callErr := procCreateRemoteThread.Call(
		uintptr(h),
		0,
		0,
		uintptr(start),
		uintptr(param),
		0,
		uintptr(unsafe.Pointer(&tid)),
	)
	if th == 0 {
		return nil, process.NewOSError("CreateRemoteThread", start, 0, process.ErrAccessDenied, callErr)
	}

	p.log.Infoln("remote thread", tid, "started at", start)
	return &remoteThread{id: tid, handle: windows.Handle(th)}, nil
}

type remoteThread struct {
	id     uint32
	handle windows.Handle
}

func (t *remoteThread) ID() uint32 {
	return t.id
}

// Wait blocks for the thread; a negative timeout waits forever.
func (t *remoteThread) Wait(timeout time.Duration) (uint32, error) {
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout.Milliseconds())
	}

	event, err := windows.WaitForSingleObject(t.handle, ms)
	if err != nil {
		return 0, err
	}
	if event == uint32(windows.WAIT_TIMEOUT) {
		return stillActive, windows.WAIT_TIMEOUT
	}

	var code uint32
	ok, _, callErr := procGetExitCodeThread.Call(uintptr(t.handle), uintptr(unsafe.Pointer(&code)))
	if ok == 0 {
		return 0, callErr
	}
	return code, nil
}

func (t *remoteThread) Close() error {
	return windows.CloseHandle(t.handle)
}

// Suspend freezes every thread of the target.
func (p *WindowsProcess) Suspend() error {
	return p.ntProcessCall("NtSuspendProcess", procNtSuspendProcess)
}

// Resume thaws a target frozen by Suspend.
func (p *WindowsProcess) Resume() error {
	return p.ntProcessCall("NtResumeProcess", procNtResumeProcess)
}

func (p *WindowsProcess) ntProcessCall(name string, proc *windows.LazyProc) error {
	h, err := p.live()
	if err != nil {
		return err
	}
	if !p.rights.Has(process.RightSuspendResume) {
		return fmt.Errorf("%s: %w", name, process.ErrAccessDenied)
	}

	status, _, _ := proc.Call(uintptr(h))
	if status != 0 {
		return fmt.Errorf("%s: %w", name, windows.NTStatus(status))
	}
	return nil
}
