package scan

import (
	"context"
	"errors"
	"fmt"

	"procmem/pattern"
	"procmem/process"
	"procmem/process/memory_map"
)

func (s *Scanner) query(addr uint64) (memory_map.MemoryRegion, error) {
	r, err := s.proc.QueryRegion(process.ProcessMemoryAddress(addr))
	if err != nil && !errors.Is(err, process.ErrQueryFailed) {
		err = process.NewOSError("query", process.ProcessMemoryAddress(addr), 0, process.ErrQueryFailed, err)
	}
	return r, err
}

// span is an inclusive address range inside one scannable region.
type span struct {
	from, to uint64
}

// clamp intersects a region with [start, end].
func clamp(r memory_map.MemoryRegion, start, end uint64) (span, bool) {
	sp := span{from: max(r.BaseAddress, start), to: min(r.End()-1, end)}
	return sp, sp.from <= sp.to
}

// chunker reads spans in chunks and runs the matcher over them. The last
// len(p)-1 bytes of each chunk are carried into the next chunk when it starts
// at the adjacent address, so matches crossing chunk and region boundaries
// are found.
type chunker struct {
	s        *Scanner
	p        pattern.BytePattern
	onHit    func(process.ProcessMemoryAddress) bool
	carry    []byte
	carryEnd uint64
}

func (c *chunker) reset() {
	c.carry = nil
}

// scan returns false once onHit asks to stop. A failed read is logged and
// ends the span without an error.
func (c *chunker) scan(ctx context.Context, sp span) (bool, error) {
	n := c.p.Len()
	for off := sp.from; off <= sp.to; {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		size := min(uint64(c.s.chunkSize), sp.to-off+1)
		data, err := c.s.acc.ReadRaw(process.ProcessMemoryAddress(off), int(size), nil)
		if err != nil {
			c.s.log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", off), err)
			c.reset()
			return true, nil
		}

		buf, bufBase := data, off
		if len(c.carry) > 0 && c.carryEnd == off {
			buf = append(c.carry, data...)
			bufBase = off - uint64(len(c.carry))
		}

		if !emit(buf, bufBase, c.p, c.onHit) {
			return false, nil
		}

		keep := min(n-1, len(buf))
		c.carry = append([]byte(nil), buf[len(buf)-keep:]...)
		c.carryEnd = off + size

		if off+size <= off {
			break
		}
		off += size
	}
	return true, nil
}

// emit reports the matches in buf; it returns false once onHit asks to stop.
func emit(buf []byte, base uint64, p pattern.BytePattern, onHit func(process.ProcessMemoryAddress) bool) bool {
	for start := 0; start+p.Len() <= len(buf); {
		i, err := pattern.MatchAt(buf, p, start)
		if err != nil || i < 0 {
			return true
		}
		if !onHit(process.ProcessMemoryAddress(base + uint64(i))) {
			return false
		}
		start = i + 1
	}
	return true
}

// spans walks the regions of [start, end] and calls fn for each scannable part.
// Regions that are uncommitted, guarded, inaccessible or smaller than minSize
// are passed to skip. The region type is not considered.
func (s *Scanner) spans(ctx context.Context, start, end uint64, minSize int, fn func(span) (bool, error), skip func()) error {
	for region, err := range memory_map.Regions(s.query, start, end) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if !region.IsScannable(uint64(minSize)) {
			if region.IsCommitted() {
				s.log.Debugln("skipping region", region.String())
			}
			skip()
			continue
		}

		sp, ok := clamp(region, start, end)
		if !ok {
			continue
		}
		more, err := fn(sp)
		if err != nil || !more {
			return err
		}
	}
	return nil
}

// walk feeds every scannable region in [start, end] through the matcher.
// onHit returns false to stop the walk.
func (s *Scanner) walk(ctx context.Context, start, end uint64, p pattern.BytePattern, onHit func(process.ProcessMemoryAddress) bool) error {
	c := &chunker{s: s, p: p, onHit: onHit}
	return s.spans(ctx, start, end, p.Len(), func(sp span) (bool, error) {
		return c.scan(ctx, sp)
	}, c.reset)
}
