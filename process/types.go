package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ModuleFilter selects which modules an enumeration returns. The values match
// the Win32 LIST_MODULES_* flags; backends without the distinction ignore it.
type ModuleFilter uint32

const (
	ModulesDefault ModuleFilter = 0x00
	Modules32Bit   ModuleFilter = 0x01
	Modules64Bit   ModuleFilter = 0x02
	ModulesAll     ModuleFilter = 0x03
)

// ModuleInfo is a snapshot of one loaded image inside the target.
type ModuleInfo struct {
	Name        string               // Base name, e.g. "libc.so.6" or "kernel32.dll"
	FilePath    string               // Full path of the backing file
	BaseAddress ProcessMemoryAddress // Lowest mapped address of the image
	SizeOfImage uint64               // Extent of the image in bytes
	EntryPoint  ProcessMemoryAddress // Zero when unknown
}

// End returns the first address past the image.
func (m ModuleInfo) End() ProcessMemoryAddress {
	return m.BaseAddress + ProcessMemoryAddress(m.SizeOfImage)
}

// Contains reports whether addr lies in [BaseAddress, BaseAddress+SizeOfImage).
func (m ModuleInfo) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.BaseAddress && addr < m.End()
}

func (m ModuleInfo) String() string {
	return fmt.Sprintf("%s base=%s size=0x%X entry=%s", m.Name, m.BaseAddress, m.SizeOfImage, m.EntryPoint)
}
