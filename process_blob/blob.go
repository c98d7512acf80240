// Package process_blob provides an in-memory target that implements process.Process.
// It backs tests and lets captured buffers go through the same scan and access paths
// as a live process.
package process_blob

import (
	"fmt"
	"sort"
	"sync"

	"procmem/process"
	"procmem/process/memory_map"
)

// Segment is one mapped range of the synthetic address space.
type Segment struct {
	Base       process.ProcessMemoryAddress
	Data       []byte
	State      memory_map.RegionState
	Protection memory_map.Protection
	Type       memory_map.RegionType
	Path       string
}

func (s *Segment) end() process.ProcessMemoryAddress {
	return s.Base + process.ProcessMemoryAddress(len(s.Data))
}

func (s *Segment) region() memory_map.MemoryRegion {
	return memory_map.MemoryRegion{
		BaseAddress:    uint64(s.Base),
		AllocationBase: uint64(s.Base),
		Size:           uint64(len(s.Data)),
		State:          s.State,
		Protection:     s.Protection,
		Type:           s.Type,
		Path:           s.Path,
	}
}

func (s *Segment) readable() bool {
	return s.region().IsReadable()
}

func (s *Segment) writable() bool {
	return s.readable() && s.Protection&memory_map.ProtWrite != 0
}

// ProcessBlob is a synthetic target made of segments.
type ProcessBlob struct {
	mu          sync.RWMutex
	pid         process.ProcessID
	pointerSize int
	segments    []*Segment // sorted by Base, non-overlapping
	modules     []process.ModuleInfo
	alive       bool
	closed      bool
	suspended   bool
	maxBulkRead process.ProcessMemorySize // 0 means unlimited
	readCalls   int
}

var (
	_ process.Process           = (*ProcessBlob)(nil)
	_ process.ProcessController = (*ProcessBlob)(nil)
	_ process.RemoteExecutor    = (*ProcessBlob)(nil)
	_ process.StateReporter     = (*ProcessBlob)(nil)
)

// New returns an empty 64-bit target.
func New(pid process.ProcessID) *ProcessBlob {
	return &ProcessBlob{pid: pid, pointerSize: 8, alive: true}
}

// NewProcessBlob returns a target with a single read-write segment holding data.
func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	p := New(0)
	if err := p.AddSegment(baseAddress, data, memory_map.ProtRead|memory_map.ProtWrite); err != nil {
		panic(err)
	}
	return p
}

// SetPointerSize switches the target between 32 and 64 bit.
func (p *ProcessBlob) SetPointerSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pointerSize = size
}

// AddSegment maps a committed private segment. data is used in place.
func (p *ProcessBlob) AddSegment(base process.ProcessMemoryAddress, data []byte, prot memory_map.Protection) error {
	return p.AddSegmentEx(&Segment{
		Base:       base,
		Data:       data,
		State:      memory_map.StateCommitted,
		Protection: prot,
		Type:       memory_map.TypePrivate,
	})
}

// AddSegmentEx maps seg as given.
func (p *ProcessBlob) AddSegmentEx(seg *Segment) error {
	if len(seg.Data) == 0 {
		return fmt.Errorf("empty segment at %s: %w", seg.Base, process.ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.segments {
		if seg.Base < s.end() && s.Base < seg.end() {
			return fmt.Errorf("segment at %s overlaps %s: %w", seg.Base, s.Base, process.ErrInvalidArgument)
		}
	}
	p.segments = append(p.segments, seg)
	sort.Slice(p.segments, func(i, j int) bool {
		return p.segments[i].Base < p.segments[j].Base
	})
	return nil
}

// AddModule registers an image. The first module added is the main executable.
func (p *ProcessBlob) AddModule(m process.ModuleInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules = append(p.modules, m)
}

// FailReadsLargerThan makes any single read above n bytes fail, simulating a
// rejected bulk read. Zero removes the limit.
func (p *ProcessBlob) FailReadsLargerThan(n process.ProcessMemorySize) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxBulkRead = n
}

// Kill marks the target as exited.
func (p *ProcessBlob) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

// ReadCalls returns the number of ReadMemory calls served so far.
func (p *ProcessBlob) ReadCalls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readCalls
}

// Data returns the bytes of the segment starting at base.
func (p *ProcessBlob) Data(base process.ProcessMemoryAddress) []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.segments {
		if s.Base == base {
			return s.Data
		}
	}
	return nil
}

func (p *ProcessBlob) GetPID() process.ProcessID {
	return p.pid
}

func (p *ProcessBlob) Is64Bit() bool {
	return p.PointerSize() == 8
}

func (p *ProcessBlob) PointerSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pointerSize
}

func (p *ProcessBlob) MaxAddress() process.ProcessMemoryAddress {
	return process.DefaultMaxAddress(p.Is64Bit())
}

func (p *ProcessBlob) IsValid() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alive && !p.closed
}

func (p *ProcessBlob) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *ProcessBlob) checkOpen() error {
	if p.closed {
		return process.ErrProcessNotOpen
	}
	if !p.alive {
		return process.ErrInvalidHandle
	}
	return nil
}

// span returns the segments covering [addr, addr+size) when they are contiguous.
func (p *ProcessBlob) span(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) []*Segment {
	end := addr + process.ProcessMemoryAddress(size)
	if end < addr {
		return nil
	}

	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].end() > addr
	})

	var covered []*Segment
	cur := addr
	for ; i < len(p.segments) && cur < end; i++ {
		s := p.segments[i]
		if s.Base > cur {
			return nil
		}
		covered = append(covered, s)
		cur = s.end()
	}
	if cur < end {
		return nil
	}
	return covered
}

func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	p.readCalls++
	p.mu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	if size == 0 {
		return []byte{}, nil
	}
	if p.maxBulkRead > 0 && size > p.maxBulkRead {
		return nil, process.NewOSError("read", addr, uint64(size), process.ErrReadFailed, fmt.Errorf("simulated bulk read rejection"))
	}

	segs := p.span(addr, size)
	if segs == nil {
		return nil, process.NewOSError("read", addr, uint64(size), process.ErrReadFailed, process.ErrAddressNotMapped)
	}

	out := make([]byte, 0, size)
	end := addr + process.ProcessMemoryAddress(size)
	for _, s := range segs {
		if !s.readable() {
			return nil, process.NewOSError("read", addr, uint64(size), process.ErrReadFailed, process.ErrAccessDenied)
		}
		from := max(addr, s.Base) - s.Base
		to := min(end, s.end()) - s.Base
		out = append(out, s.Data[from:to]...)
	}
	return out, nil
}

func (p *ProcessBlob) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	segs := p.span(addr, process.ProcessMemorySize(len(data)))
	if segs == nil {
		return 0, process.NewOSError("write", addr, uint64(len(data)), process.ErrWriteFailed, process.ErrAddressNotMapped)
	}
	for _, s := range segs {
		if !s.writable() {
			return 0, process.NewOSError("write", addr, uint64(len(data)), process.ErrWriteFailed, process.ErrAccessDenied)
		}
	}

	end := addr + process.ProcessMemoryAddress(len(data))
	for _, s := range segs {
		from := max(addr, s.Base)
		to := min(end, s.end())
		copy(s.Data[from-s.Base:to-s.Base], data[from-addr:to-addr])
	}
	return len(data), nil
}

// QueryRegion returns the segment containing addr, or the free gap around it.
func (p *ProcessBlob) QueryRegion(addr process.ProcessMemoryAddress) (memory_map.MemoryRegion, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return memory_map.MemoryRegion{}, err
	}

	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].end() > addr
	})
	if i < len(p.segments) && p.segments[i].Base <= addr {
		return p.segments[i].region(), nil
	}

	maxAddr := process.DefaultMaxAddress(p.pointerSize == 8)
	var low, high process.ProcessMemoryAddress
	if i > 0 {
		low = p.segments[i-1].end()
	}
	switch {
	case i < len(p.segments):
		high = p.segments[i].Base
	case addr <= maxAddr:
		high = maxAddr + 1
	default:
		return memory_map.MemoryRegion{}, process.NewOSError("query", addr, 0, process.ErrQueryFailed, process.ErrOutOfRange)
	}

	return memory_map.MemoryRegion{
		BaseAddress:    uint64(low),
		AllocationBase: uint64(low),
		Size:           uint64(high - low),
		State:          memory_map.StateFree,
		Protection:     memory_map.ProtNoAccess,
	}, nil
}

func (p *ProcessBlob) EnumModules(filter process.ModuleFilter) ([]process.ModuleInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	modules := make([]process.ModuleInfo, len(p.modules))
	copy(modules, p.modules)
	return modules, nil
}

func (p *ProcessBlob) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.suspended = true
	return nil
}

func (p *ProcessBlob) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.suspended = false
	return nil
}

// State is ProcessDead after Kill, ProcessStopped while suspended and ProcessRunning otherwise.
func (p *ProcessBlob) State() (process.ProcessState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return process.ProcessUnknown, process.ErrProcessNotOpen
	}
	switch {
	case !p.alive:
		return process.ProcessDead, nil
	case p.suspended:
		return process.ProcessStopped, nil
	}
	return process.ProcessRunning, nil
}

// Suspended reports whether Suspend was called without a matching Resume.
func (p *ProcessBlob) Suspended() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.suspended
}
