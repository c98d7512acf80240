package process_blob

import (
	"fmt"

	"procmem/process"
	"procmem/process/memory_map"
)

// allocationBase is where AllocateMemory starts looking for free space.
const allocationBase process.ProcessMemoryAddress = 0x10000000

// AllocateMemory maps a zeroed, page-aligned segment above every existing one.
func (p *ProcessBlob) AllocateMemory(size uint64, executable bool) (process.ProcessMemoryAddress, error) {
	if size == 0 {
		return 0, fmt.Errorf("zero sized allocation: %w", process.ErrInvalidArgument)
	}

	p.mu.RLock()
	base := allocationBase
	for _, s := range p.segments {
		base = max(base, s.end())
	}
	open := p.checkOpen()
	p.mu.RUnlock()
	if open != nil {
		return 0, open
	}

	base = process.ProcessMemoryAddress(memory_map.AlignUp(uint64(base), memory_map.PageSize))
	prot := memory_map.ProtRead | memory_map.ProtWrite
	if executable {
		prot |= memory_map.ProtExec
	}

	err := p.AddSegmentEx(&Segment{
		Base:       base,
		Data:       make([]byte, memory_map.AlignUp(size, memory_map.PageSize)),
		State:      memory_map.StateCommitted,
		Protection: prot,
		Type:       memory_map.TypePrivate,
	})
	if err != nil {
		return 0, err
	}
	return base, nil
}

// FreeMemory unmaps the segment that starts at addr.
func (p *ProcessBlob) FreeMemory(addr process.ProcessMemoryAddress) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}
	for i, s := range p.segments {
		if s.Base == addr {
			p.segments = append(p.segments[:i], p.segments[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no allocation at %s: %w", addr, process.ErrNotFound)
}

// CreateRemoteThread is not available on a synthetic target.
func (p *ProcessBlob) CreateRemoteThread(start process.ProcessMemoryAddress, param uint64) (process.RemoteThread, error) {
	return nil, fmt.Errorf("remote thread at %s: %w", start, process.ErrNotSupported)
}
