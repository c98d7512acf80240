package memory_map

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/exp/constraints"
)

// PageSize is the granularity used when clamping reads to page boundaries.
const PageSize = 0x1000

// RegionState is the allocation state of a region.
type RegionState uint8

const (
	StateFree RegionState = iota
	StateReserved
	StateCommitted
)

func (s RegionState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateReserved:
		return "reserved"
	case StateCommitted:
		return "committed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Protection is the access bit set of a region.
type Protection uint16

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExec
	ProtCopyOnWrite
	ProtGuard
	ProtNoAccess
)

func (p Protection) String() string {
	if p&ProtNoAccess != 0 {
		return "---"
	}
	b := []byte("---")
	if p&ProtRead != 0 {
		b[0] = 'r'
	}
	if p&ProtWrite != 0 {
		b[1] = 'w'
	}
	if p&ProtCopyOnWrite != 0 {
		b[1] = 'c'
	}
	if p&ProtExec != 0 {
		b[2] = 'x'
	}
	s := string(b)
	if p&ProtGuard != 0 {
		s += "+g"
	}
	return s
}

// RegionType tells what backs a region.
type RegionType uint8

const (
	TypeUnknown RegionType = iota
	TypeImage
	TypeMapped
	TypePrivate
)

func (t RegionType) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeMapped:
		return "mapped"
	case TypePrivate:
		return "private"
	}
	return "unknown"
}

// MemoryRegion is one snapshot from a region query. Consecutive regions
// partition the address space; walk them with addr = BaseAddress + Size.
type MemoryRegion struct {
	BaseAddress    uint64
	AllocationBase uint64
	Size           uint64
	State          RegionState
	Protection     Protection
	Type           RegionType
	Path           string // Backing file, when known
}

// End returns the first address past the region.
func (r MemoryRegion) End() uint64 {
	return r.BaseAddress + r.Size
}

// Contains reports whether addr lies in the region.
func (r MemoryRegion) Contains(addr uint64) bool {
	return addr >= r.BaseAddress && addr < r.End()
}

func (r MemoryRegion) IsCommitted() bool {
	return r.State == StateCommitted
}

// IsReadable reports whether the region is committed, readable and not guarded.
func (r MemoryRegion) IsReadable() bool {
	if !r.IsCommitted() {
		return false
	}
	if r.Protection&(ProtGuard|ProtNoAccess) != 0 {
		return false
	}
	return r.Protection&ProtRead != 0
}

// IsScannable is IsReadable plus a minimum size, usually the needle length.
// The region type is not considered.
func (r MemoryRegion) IsScannable(minSize uint64) bool {
	return r.IsReadable() && r.Size >= minSize
}

// String returns a string representation of the memory region
func (r MemoryRegion) String() string {
	s := fmt.Sprintf("%012x-%012x %s %-9s %-7s", r.BaseAddress, r.End(), r.Protection, r.State, r.Type)
	if r.Path != "" {
		s += " " + r.Path
	}
	return s
}

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 // File offset of the mapping
	Inode   uint64
	Path    string // Pathname or pseudo name such as [heap]
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsWritable() bool {
	return len(mmItem.Perms) > 1 && mmItem.Perms[1] == 'w'
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return len(mmItem.Perms) > 2 && mmItem.Perms[2] == 'x'
}

// IsFileBacked reports whether the mapping comes from a file on disk.
func (mmItem MemoryMapItem) IsFileBacked() bool {
	return strings.HasPrefix(mmItem.Path, "/") && mmItem.Inode != 0
}

// Region converts the maps entry into a committed MemoryRegion.
func (mmItem MemoryMapItem) Region() MemoryRegion {
	var prot Protection
	if mmItem.IsReadable() {
		prot |= ProtRead
	}
	if mmItem.IsWritable() {
		prot |= ProtWrite
		if len(mmItem.Perms) > 3 && mmItem.Perms[3] == 'p' && mmItem.IsFileBacked() {
			prot |= ProtCopyOnWrite
		}
	}
	if mmItem.IsExecutable() {
		prot |= ProtExec
	}
	if prot == 0 {
		prot = ProtNoAccess
	}

	typ := TypePrivate
	if mmItem.IsFileBacked() {
		typ = TypeMapped
	}

	return MemoryRegion{
		BaseAddress:    mmItem.Address,
		AllocationBase: mmItem.Address,
		Size:           uint64(mmItem.Size),
		State:          StateCommitted,
		Protection:     prot,
		Type:           typ,
		Path:           mmItem.Path,
	}
}

func indexAfter(addr uint64, memoryMap []MemoryMapItem) int {
	return sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].End() > addr
	})
}

// GetMemoryRegionForAddress returns the mapping containing addr. memoryMap must be sorted by address.
func GetMemoryRegionForAddress(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := indexAfter(addr, memoryMap)
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}

// RegionAt returns the region containing addr. Gaps between mappings come back
// as free regions so that walking by Size covers [0, maxAddress] without holes.
// It returns false when addr lies past both maxAddress and the last mapping.
func RegionAt(addr uint64, memoryMap []MemoryMapItem, maxAddress uint64) (MemoryRegion, bool) {
	if item := GetMemoryRegionForAddress(addr, memoryMap); item != nil {
		return item.Region(), true
	}

	i := indexAfter(addr, memoryMap)
	var low uint64
	if i > 0 {
		low = memoryMap[i-1].End()
	}

	var high uint64
	switch {
	case i < len(memoryMap):
		high = memoryMap[i].Address
	case addr <= maxAddress:
		high = maxAddress + 1
	default:
		return MemoryRegion{}, false
	}

	return MemoryRegion{
		BaseAddress:    low,
		AllocationBase: low,
		Size:           high - low,
		State:          StateFree,
		Protection:     ProtNoAccess,
	}, true
}

// ImageSpan is the extent of one file mapped with at least one executable segment.
type ImageSpan struct {
	Path string
	Base uint64
	End  uint64
}

// ImageSpans groups file-backed mappings by path and returns those that contain
// executable code, ordered by base address.
func ImageSpans(memoryMap []MemoryMapItem) []ImageSpan {
	fileBacked := lo.Filter(memoryMap, func(item MemoryMapItem, _ int) bool {
		return item.IsFileBacked()
	})

	groups := lo.GroupBy(fileBacked, func(item MemoryMapItem) string {
		return item.Path
	})

	spans := make([]ImageSpan, 0, len(groups))
	for path, items := range groups {
		if !lo.ContainsBy(items, func(item MemoryMapItem) bool { return item.IsExecutable() }) {
			continue
		}
		span := ImageSpan{Path: path, Base: items[0].Address, End: items[0].End()}
		for _, item := range items[1:] {
			span.Base = min(span.Base, item.Address)
			span.End = max(span.End, item.End())
		}
		spans = append(spans, span)
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Base < spans[j].Base
	})
	return spans
}

// QueryFunc queries the region containing addr.
type QueryFunc func(addr uint64) (MemoryRegion, error)

// Regions lazily walks the regions intersecting [start, end]. The sequence stops
// after a zero-sized region, on address overflow, or after yielding the first
// query error. Calling it again with a new start restarts the walk.
func Regions(query QueryFunc, start, end uint64) iter.Seq2[MemoryRegion, error] {
	return func(yield func(MemoryRegion, error) bool) {
		addr := start
		for addr <= end {
			region, err := query(addr)
			if err != nil {
				yield(MemoryRegion{}, err)
				return
			}
			if region.Size == 0 {
				return
			}
			if !yield(region, nil) {
				return
			}

			next := region.End()
			if next <= addr {
				return
			}
			addr = next
		}
	}
}

// AlignDown rounds v down to a multiple of align, which must be a power of two.
func AlignDown[T constraints.Unsigned](v, align T) T {
	return v &^ (align - 1)
}

// AlignUp rounds v up to a multiple of align, which must be a power of two.
func AlignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}
