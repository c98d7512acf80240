// Package scan locates byte patterns in a buffer, an address range, a module or
// the whole address space of a target.
//
// Not finding a pattern is not an error: every search returns found == false
// with a nil error. Errors are reserved for reads and region queries the OS
// rejected, bad patterns, and cancellation.
package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/memory_access"
	"procmem/modules"
	"procmem/pattern"
	"procmem/process"
)

// DefaultChunkSize is the largest single read issued while walking regions.
const DefaultChunkSize = 4 << 20

// Scanner is the PatternScanner of one target session.
type Scanner struct {
	proc      process.Process
	acc       *memory_access.Accessor
	catalog   *modules.Catalog
	chunkSize int
	log       *logger.Logger
}

// Option is a function that configures a Scanner
type Option func(*Scanner)

func WithChunkSize(size int) Option {
	return func(s *Scanner) {
		s.chunkSize = size
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Scanner) {
		s.log = log
	}
}

// New builds a Scanner over the target behind acc.
func New(acc *memory_access.Accessor, catalog *modules.Catalog, options ...Option) *Scanner {
	s := &Scanner{
		proc:      acc.Process(),
		acc:       acc,
		catalog:   catalog,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.log == nil {
		s.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("scanner-%d", s.proc.GetPID())))
	}
	return s
}

// Buffer searches buf from start.
func Buffer(buf []byte, p pattern.BytePattern, start int) (int, bool, error) {
	i, err := pattern.MatchAt(buf, p, start)
	if err != nil {
		return 0, false, err
	}
	return i, i >= 0, nil
}

// Range reads [start, start+size) in one call and searches it. It fails with
// ErrReadFailed if any part of the range is inaccessible.
func (s *Scanner) Range(start process.ProcessMemoryAddress, size uint64, p pattern.BytePattern) (process.ProcessMemoryAddress, bool, error) {
	if err := p.Validate(); err != nil {
		return 0, false, err
	}
	if size < uint64(p.Len()) {
		return 0, false, pattern.ErrInvalidRange
	}

	buf, err := s.acc.ReadRaw(start, int(size), nil)
	if err != nil {
		return 0, false, fmt.Errorf("range scan at %s: %w", start, err)
	}
	i, found, err := Buffer(buf, p, 0)
	if err != nil || !found {
		return 0, false, err
	}
	return start + process.ProcessMemoryAddress(i), true, nil
}

// Module searches the named module, or the main executable for "". The image
// is read in one call; if that is refused the image is walked region by region,
// skipping pages that are uncommitted, guarded or inaccessible.
func (s *Scanner) Module(ctx context.Context, name string, p pattern.BytePattern) (process.ProcessMemoryAddress, bool, error) {
	if err := p.Validate(); err != nil {
		return 0, false, err
	}

	base, info, err := s.catalog.ResolveBase(name)
	if err != nil {
		return 0, false, err
	}
	if info.SizeOfImage < uint64(p.Len()) {
		return 0, false, nil
	}

	buf, err := s.acc.ReadRaw(base, int(info.SizeOfImage), nil)
	if err == nil {
		i, found, err := Buffer(buf, p, 0)
		if err != nil || !found {
			return 0, false, err
		}
		return base + process.ProcessMemoryAddress(i), true, nil
	}
	if !errors.Is(err, process.ErrReadFailed) {
		return 0, false, err
	}

	s.log.Warn("bulk read of ", info.Name, " failed, walking regions: ", err)
	if err := s.refresh(); err != nil {
		return 0, false, err
	}
	return s.first(ctx, uint64(base), uint64(info.End())-1, p)
}

// Process searches [start, end]; the whole pattern must lie inside the bound.
// Resume after a hit with start = hit + 1.
func (s *Scanner) Process(ctx context.Context, start, end process.ProcessMemoryAddress, p pattern.BytePattern) (process.ProcessMemoryAddress, bool, error) {
	if err := p.Validate(); err != nil {
		return 0, false, err
	}
	if err := s.refresh(); err != nil {
		return 0, false, err
	}
	return s.first(ctx, uint64(start), uint64(end), p)
}

// ProcessDefault searches the whole user address space of the target.
func (s *Scanner) ProcessDefault(ctx context.Context, p pattern.BytePattern) (process.ProcessMemoryAddress, bool, error) {
	return s.Process(ctx, 0, s.proc.MaxAddress(), p)
}

// ProcessAll returns every hit in [start, end] in address order.
func (s *Scanner) ProcessAll(ctx context.Context, start, end process.ProcessMemoryAddress, p pattern.BytePattern) ([]process.ProcessMemoryAddress, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}

	var hits []process.ProcessMemoryAddress
	err := s.walk(ctx, uint64(start), uint64(end), p, func(addr process.ProcessMemoryAddress) bool {
		hits = append(hits, addr)
		return true
	})
	if err != nil {
		return nil, err
	}

	s.log.Infoln("Scan complete, found", len(hits), "matches")
	return hits, nil
}

func (s *Scanner) first(ctx context.Context, start, end uint64, p pattern.BytePattern) (process.ProcessMemoryAddress, bool, error) {
	var hit process.ProcessMemoryAddress
	found := false
	err := s.walk(ctx, start, end, p, func(addr process.ProcessMemoryAddress) bool {
		hit, found = addr, true
		return false
	})
	if err != nil {
		return 0, false, err
	}
	return hit, found, nil
}

func (s *Scanner) refresh() error {
	r, ok := s.proc.(process.MemoryMapRefresher)
	if !ok {
		return nil
	}
	if err := r.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("refresh memory map: %w: %w", process.ErrQueryFailed, err)
	}
	return nil
}
