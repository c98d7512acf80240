// Package search discovers pointer paths: offset chains that lead from a base
// address through nested structures to a wanted value. The paths it returns
// resolve with memory_access.Accessor.ResolvePointerChain.
package search

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"procmem/memory_access"
	"procmem/pattern"
	"procmem/process"
	"procmem/textcodec"
)

// Searcher holds configuration for the search
type Searcher struct {
	MaxStructSize uint
	MaxDepth      int
	MinAlignment  uint
	MaxResults    int
	SearchFor     func([]byte) bool

	err error
}

// Option is a function that configures a Searcher
type Option func(*Searcher)

func WithMaxStructSize(size uint) Option {
	return func(s *Searcher) {
		s.MaxStructSize = size
	}
}

func WithMaxDepth(depth int) Option {
	return func(s *Searcher) {
		s.MaxDepth = depth
	}
}

func WithMinAlignment(align uint) Option {
	return func(s *Searcher) {
		s.MinAlignment = align
	}
}

// WithMaxResults stops the search after n paths; zero means no limit.
func WithMaxResults(n int) Option {
	return func(s *Searcher) {
		s.MaxResults = n
	}
}

// WithSearchForValue looks for the little-endian encoding of v.
func WithSearchForValue(v memory_access.Value) Option {
	want := v.Bytes()
	return func(s *Searcher) {
		s.SearchFor = func(data []byte) bool {
			return bytes.HasPrefix(data, want)
		}
	}
}

// WithSearchForType looks for val encoded as its scalar kind.
func WithSearchForType[T memory_access.Scalar](val T) Option {
	return WithSearchForValue(memory_access.ValueOf(val))
}

// WithSearchForText looks for text in the given encoding, without a terminator.
func WithSearchForText(text string, codec textcodec.Codec) Option {
	want, err := codec.Encode(text)
	return func(s *Searcher) {
		if err != nil {
			s.err = fmt.Errorf("encode search text: %w", err)
			return
		}
		s.SearchFor = func(data []byte) bool {
			return len(want) > 0 && bytes.HasPrefix(data, want)
		}
	}
}

// WithSearchForPattern looks for a masked byte pattern.
func WithSearchForPattern(p pattern.BytePattern) Option {
	return func(s *Searcher) {
		s.SearchFor = func(data []byte) bool {
			if len(data) < p.Len() {
				return false
			}
			i, err := pattern.MatchAt(data[:p.Len()], p, 0)
			return err == nil && i == 0
		}
	}
}

// SearchResult represents a found path to the target
type SearchResult struct {
	Path    []int64                      // Offsets from base; all but the last are dereferenced
	Address process.ProcessMemoryAddress // Where the value was found
}

func (r SearchResult) String() string {
	return fmt.Sprintf("%s %v", r.Address, r.Path)
}

// Search walks the structures reachable from base, following every aligned
// value that points into readable memory, and reports the paths to matches.
func Search(ctx context.Context, acc *memory_access.Accessor, base process.ProcessMemoryAddress, options ...Option) ([]SearchResult, error) {
	s := &Searcher{
		MaxStructSize: 256, // Default
		MaxDepth:      3,   // Default
		MinAlignment:  4,   // Default
	}

	for _, opt := range options {
		opt(s)
	}

	if s.err != nil {
		return nil, s.err
	}
	if s.SearchFor == nil {
		return nil, fmt.Errorf("no search target specified: %w", process.ErrInvalidArgument)
	}
	if s.MinAlignment == 0 || s.MaxStructSize == 0 {
		return nil, fmt.Errorf("alignment and struct size must be positive: %w", process.ErrInvalidArgument)
	}

	proc := acc.Process()
	ptrSize := uint(proc.PointerSize())

	var results []SearchResult
	visited := make(map[process.ProcessMemoryAddress]bool)

	var searchRecursive func(addr process.ProcessMemoryAddress, depth int, path []int64) error
	searchRecursive = func(addr process.ProcessMemoryAddress, depth int, path []int64) error {
		if depth > s.MaxDepth || visited[addr] {
			return nil
		}
		visited[addr] = true

		if err := ctx.Err(); err != nil {
			return err
		}

		data := readStruct(acc, addr, s.MaxStructSize)
		if data == nil {
			return nil
		}

		for offset := uint(0); offset+s.MinAlignment <= uint(len(data)); offset += s.MinAlignment {
			if s.SearchFor(data[offset:]) {
				results = append(results, SearchResult{
					Path:    append(append([]int64(nil), path...), int64(offset)),
					Address: addr + process.ProcessMemoryAddress(offset),
				})
				if s.MaxResults > 0 && len(results) >= s.MaxResults {
					return errStop
				}
			}

			if offset%ptrSize != 0 || depth >= s.MaxDepth || offset+ptrSize > uint(len(data)) {
				continue
			}

			var ptr process.ProcessMemoryAddress
			if ptrSize == 4 {
				ptr = process.ProcessMemoryAddress(binary.LittleEndian.Uint32(data[offset:]))
			} else {
				ptr = process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[offset:]))
			}
			if !readable(proc, ptr) {
				continue
			}

			next := append(append([]int64(nil), path...), int64(offset))
			if err := searchRecursive(ptr, depth+1, next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := searchRecursive(base, 0, nil); err != nil && err != errStop {
		return results, err
	}
	return results, nil
}

var errStop = fmt.Errorf("result limit reached")

// readable reports whether ptr lies in committed readable memory.
func readable(proc process.Process, ptr process.ProcessMemoryAddress) bool {
	if ptr == 0 || ptr > proc.MaxAddress() {
		return false
	}
	r, err := proc.QueryRegion(ptr)
	return err == nil && r.IsReadable()
}

// readStruct reads up to size bytes at addr, clamped to the end of its region.
func readStruct(acc *memory_access.Accessor, addr process.ProcessMemoryAddress, size uint) []byte {
	data, err := acc.ReadRaw(addr, int(size), nil)
	if err == nil {
		return data
	}

	r, qerr := acc.Process().QueryRegion(addr)
	if qerr != nil || !r.IsReadable() {
		return nil
	}
	n := min(uint64(size), r.End()-uint64(addr))
	data, err = acc.ReadRaw(addr, int(n), nil)
	if err != nil {
		return nil
	}
	return data
}
