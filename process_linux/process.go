//go:build linux

// Package process_linux implements process.Process on top of pidfd, procfs and
// process_vm_readv/process_vm_writev.
package process_linux

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"

	"procmem/process"
	"procmem/process/memory_map"
)

// LinuxProcess implements the process.Process interface for Linux systems
type LinuxProcess struct {
	pid    process.ProcessID
	rights process.AccessRights
	pidfd  int
	is64   bool
	log    *logger.Logger

	mu     sync.Mutex
	closed bool
	mm     []memory_map.MemoryMapItem
	images map[string]bool
}

var (
	_ process.Process            = (*LinuxProcess)(nil)
	_ process.MemoryMapRefresher = (*LinuxProcess)(nil)
	_ process.ProcessController  = (*LinuxProcess)(nil)
	_ process.StateReporter      = (*LinuxProcess)(nil)
)

// Open attaches to pid. The rights are recorded and checked before reads,
// writes and signals; the kernel still applies its own ptrace access checks.
func Open(pid process.ProcessID, rights process.AccessRights) (*LinuxProcess, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d: %w", pid, process.ErrInvalidArgument)
	}

	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("process %d: %w", pid, process.ErrNotFound)
	}

	fd, err := unix.PidfdOpen(int(pid), 0)
	if err != nil {
		return nil, openError(pid, err)
	}

	p := &LinuxProcess{
		pid:    pid,
		rights: rights.ForOpen(),
		pidfd:  fd,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	if err := p.UpdateMemoryMap(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	p.is64 = p.detectBitness()

	p.log.Infoln("Process opened", "rights=", p.rights, "64bit=", p.is64)
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
	case errors.Is(err, unix.ESRCH), errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("process %d: %w: %w", pid, process.ErrNotFound, err)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("process %d: %w: %w", pid, process.ErrAccessDenied, err)
	default:
		return fmt.Errorf("open process %d: %w", pid, err)
	}
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.mm = nil

	if err := unix.Close(p.pidfd); err != nil {
		p.log.Warn("closing pidfd: ", err)
	}

	p.log.Infoln("Process closed")
	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	return p.pid
}

func (p *LinuxProcess) Is64Bit() bool {
	return p.is64
}

func (p *LinuxProcess) PointerSize() int {
	if p.is64 {
		return 8
	}
	return 4
}

func (p *LinuxProcess) MaxAddress() process.ProcessMemoryAddress {
	return process.DefaultMaxAddress(p.is64)
}

// IsValid polls the pidfd without waiting. The descriptor becomes readable
// once the target has exited.
func (p *LinuxProcess) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	return !p.exited()
}

// exited polls the pidfd; callers hold p.mu.
func (p *LinuxProcess) exited() bool {
	fds := []unix.PollFd{{Fd: int32(p.pidfd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			p.log.Debugln("poll pidfd:", err)
			return true
		}
		return n != 0
	}
}

func (p *LinuxProcess) checkOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return process.ErrProcessNotOpen
	}
	return nil
}

// checkLive is checkOpen plus a pidfd poll. process_vm_readv/writev address the
// target by pid, so a transfer after exit could reach a recycled pid; the
// window between this poll and the syscall remains.
func (p *LinuxProcess) checkLive(op string, addr process.ProcessMemoryAddress, size int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return process.ErrProcessNotOpen
	}
	if p.exited() {
		return process.NewOSError(op, addr, uint64(size), process.ErrInvalidHandle, unix.ESRCH)
	}
	return nil
}

// State returns the scheduler state from /proc/<pid>/stat.
func (p *LinuxProcess) State() (process.ProcessState, error) {
	p.mu.Lock()
	closed, exited := p.closed, p.closed || p.exited()
	p.mu.Unlock()
	if closed {
		return process.ProcessUnknown, process.ErrProcessNotOpen
	}
	if exited {
		return process.ProcessDead, nil
	}

	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", p.pid))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return process.ProcessDead, nil
		}
		return process.ProcessUnknown, err
	}

	// comm may contain spaces and parentheses; the state follows the last ')'
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 || i+2 >= len(s) {
		return process.ProcessUnknown, fmt.Errorf("malformed stat for %d", p.pid)
	}
	return process.ProcessState(s[i+2 : i+3]), nil
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(p.pid))
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return process.NewOSError("read maps", 0, 0, process.ErrInvalidHandle, err)
		case errors.Is(err, os.ErrPermission):
			// pidfd_open succeeds for any pid; procfs applies the ptrace check
			return process.NewOSError("read maps", 0, 0, process.ErrAccessDenied, err)
		}
		return process.NewOSError("read maps", 0, 0, process.ErrQueryFailed, err)
	}

	// RegionAt requires the memory map to be sorted by address
	sort.Slice(mm, func(i, j int) bool {
		return mm[i].Address < mm[j].Address
	})

	images := make(map[string]bool)
	for _, span := range memory_map.ImageSpans(mm) {
		images[span.Path] = true
	}

	p.mu.Lock()
	p.mm = mm
	p.images = images
	p.mu.Unlock()
	return nil
}

// GetMemoryMap returns a copy of the cached maps entries.
func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, process.ErrProcessNotOpen
	}

	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

// QueryRegion answers from the cached memory map; gaps come back as free regions.
func (p *LinuxProcess) QueryRegion(addr process.ProcessMemoryAddress) (memory_map.MemoryRegion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return memory_map.MemoryRegion{}, process.ErrProcessNotOpen
	}

	r, ok := memory_map.RegionAt(uint64(addr), p.mm, uint64(process.DefaultMaxAddress(p.is64)))
	if !ok {
		return memory_map.MemoryRegion{}, process.NewOSError("query", addr, 0, process.ErrQueryFailed, process.ErrOutOfRange)
	}
	if r.Type == memory_map.TypeMapped && p.images[r.Path] {
		r.Type = memory_map.TypeImage
	}
	return r, nil
}

// detectBitness reads the ELF class of the main executable and falls back to
// the address layout when /proc/<pid>/exe cannot be opened.
func (p *LinuxProcess) detectBitness() bool {
	f, err := elf.Open(fmt.Sprintf("/proc/%d/exe", p.pid))
	if err == nil {
		defer f.Close()
		return f.Class == elf.ELFCLASS64
	}

	p.log.Debugln("reading exe header:", err, "- guessing bitness from the address layout")
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range p.mm {
		if item.End() > uint64(process.MaxAddress32)+1 {
			return true
		}
	}
	return false
}
