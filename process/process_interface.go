package process

import (
	"time"

	"procmem/process/memory_map"
)

// Process is the interface that defines operations for interacting with an opened target.
// It is the ProcessHandle: the only owner of the OS handle for one target session.
type Process interface {
	// GetPID returns the process ID
	GetPID() ProcessID

	// Is64Bit reports the target's bitness
	Is64Bit() bool

	// PointerSize returns the target's pointer width in bytes (4 or 8)
	PointerSize() int

	// MaxAddress returns the highest usable user-mode address of the target
	MaxAddress() ProcessMemoryAddress

	// IsValid polls the termination signal without waiting; false once the target has exited
	IsValid() bool

	// Close releases the handle; calling it again is a no-op
	Close() error

	// ReadMemory performs one bulk read of size bytes
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory performs one bulk write and returns the number of bytes transferred
	WriteMemory(addr ProcessMemoryAddress, data []byte) (int, error)

	// QueryRegion queries the region containing addr
	QueryRegion(addr ProcessMemoryAddress) (memory_map.MemoryRegion, error)

	// EnumModules lists the loaded images; the main executable comes first
	EnumModules(filter ModuleFilter) ([]ModuleInfo, error)
}

// MemoryMapRefresher is implemented by backends that cache the region map between queries.
type MemoryMapRefresher interface {
	UpdateMemoryMap() error
}

// ProcessController freezes and thaws the whole target.
type ProcessController interface {
	Suspend() error
	Resume() error
}

// StateReporter reports the scheduler state of the target.
type StateReporter interface {
	State() (ProcessState, error)
}

// RemoteThread is a thread started inside the target.
type RemoteThread interface {
	ID() uint32
	// Wait blocks until the thread exits or timeout elapses; it returns the exit code.
	Wait(timeout time.Duration) (uint32, error)
	Close() error
}

// RemoteExecutor allocates memory and starts threads inside the target.
type RemoteExecutor interface {
	// AllocateMemory commits size bytes, read-write or read-write-execute.
	AllocateMemory(size uint64, executable bool) (ProcessMemoryAddress, error)
	FreeMemory(addr ProcessMemoryAddress) error
	CreateRemoteThread(start ProcessMemoryAddress, param uint64) (RemoteThread, error)
}

// ControllerPointerSize is the pointer width of the process running this code.
const ControllerPointerSize = 4 << (^uintptr(0) >> 63)
