package memory_map

import (
	"errors"
	"strings"
	"testing"
)

const sampleMaps = `55d4c2a00000-55d4c2a02000 r--p 00000000 08:02 173521      /usr/bin/cat
55d4c2a02000-55d4c2a07000 r-xp 00002000 08:02 173521      /usr/bin/cat
55d4c2a07000-55d4c2a0a000 r--p 00007000 08:02 173521      /usr/bin/cat
55d4c2a0b000-55d4c2a0c000 rw-p 0000a000 08:02 173521      /usr/bin/cat
55d4c3c7e000-55d4c3c9f000 rw-p 00000000 00:00 0           [heap]
7f1a2c000000-7f1a2c021000 rw-p 00000000 00:00 0
7f1a2c021000-7f1a30000000 ---p 00000000 00:00 0
7f1a30200000-7f1a30228000 r--p 00000000 08:02 132211      /usr/lib/x86_64-linux-gnu/libc.so.6
7f1a30228000-7f1a303bd000 r-xp 00028000 08:02 132211      /usr/lib/x86_64-linux-gnu/libc.so.6
7f1a30400000-7f1a30401000 r--p 00000000 08:02 140000      /usr/share/locale/my file.mo
bogus line
7ffd8b5e0000-7ffd8b601000 rw-p 00000000 00:00 0           [stack]
`

func parseSample(t *testing.T) []MemoryMapItem {
	t.Helper()
	items, err := ParseMemoryMap(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatal(err)
	}
	return items
}

func TestParseMemoryMap(t *testing.T) {
	items := parseSample(t)
	if len(items) != 11 {
		t.Fatalf("expected 11 items - got %d", len(items))
	}

	text := items[1]
	if text.Address != 0x55d4c2a02000 || text.Size != 0x5000 || text.Perms != "r-xp" {
		t.Fatalf("unexpected text mapping %s", text)
	}
	if text.Offset != 0x2000 || text.Inode != 173521 || text.Path != "/usr/bin/cat" {
		t.Fatalf("unexpected text mapping details %+v", text)
	}
	if !text.IsExecutable() || text.IsWritable() || !text.IsFileBacked() {
		t.Fatalf("unexpected perms helpers for %s", text)
	}

	if items[9].Path != "/usr/share/locale/my file.mo" {
		t.Fatalf("expected path with space - got %q", items[9].Path)
	}
	if items[5].Path != "" || items[5].IsFileBacked() {
		t.Fatalf("expected anonymous mapping - got %+v", items[5])
	}
}

func TestMemoryMapItemRegion(t *testing.T) {
	items := parseSample(t)

	guard := items[6].Region()
	if guard.IsReadable() || guard.Protection&ProtNoAccess == 0 {
		t.Fatalf("expected no-access region - got %s", guard)
	}

	data := items[3].Region()
	if data.Protection != ProtRead|ProtWrite|ProtCopyOnWrite || data.Type != TypeMapped {
		t.Fatalf("expected copy-on-write mapped region - got %s", data)
	}

	heap := items[4].Region()
	if !heap.IsScannable(16) || heap.Type != TypePrivate {
		t.Fatalf("expected scannable private region - got %s", heap)
	}
	if heap.IsScannable(heap.Size + 1) {
		t.Fatal("expected region smaller than needle to be rejected")
	}
}

func TestRegionAtSynthesizesGaps(t *testing.T) {
	items := parseSample(t)
	const max = 0x7FFFFFFFFFFF

	r, ok := RegionAt(0x55d4c2a03000, items, max)
	if !ok || r.BaseAddress != 0x55d4c2a02000 || r.State != StateCommitted {
		t.Fatalf("expected text region - got %s", r)
	}

	if item := GetMemoryRegionForAddress(0x55d4c2a03000, items); item == nil || item.Address != 0x55d4c2a02000 {
		t.Fatalf("expected the text mapping - got %v", item)
	}
	if item := GetMemoryRegionForAddress(0x55d4c2a0a800, items); item != nil {
		t.Fatalf("expected no mapping in the gap - got %v", item)
	}

	r, ok = RegionAt(0x55d4c2a0a800, items, max)
	if !ok || r.State != StateFree || r.BaseAddress != 0x55d4c2a0a000 || r.Size != 0x1000 {
		t.Fatalf("expected one page gap - got %s", r)
	}

	r, ok = RegionAt(0, items, max)
	if !ok || r.BaseAddress != 0 || r.End() != 0x55d4c2a00000 {
		t.Fatalf("expected leading gap - got %s", r)
	}

	r, ok = RegionAt(0x7ffd8b601000, items, max)
	if !ok || r.End() != max+1 {
		t.Fatalf("expected trailing gap up to max - got %s", r)
	}

	if _, ok = RegionAt(max+1, items, max); ok {
		t.Fatal("expected no region past the max address")
	}
}

func TestRegionsPartitionTheRange(t *testing.T) {
	items := parseSample(t)
	const max = 0x7FFFFFFFFFFF
	query := func(addr uint64) (MemoryRegion, error) {
		r, ok := RegionAt(addr, items, max)
		if !ok {
			return MemoryRegion{}, errors.New("past end")
		}
		return r, nil
	}

	var prevEnd uint64
	count := 0
	for r, err := range Regions(query, 0, max) {
		if err != nil {
			t.Fatal(err)
		}
		if r.BaseAddress != prevEnd {
			t.Fatalf("expected region at 0x%x - got %s", prevEnd, r)
		}
		prevEnd = r.End()
		count++
	}
	if prevEnd != max+1 {
		t.Fatalf("expected walk to end at 0x%x - got 0x%x", uint64(max+1), prevEnd)
	}
	if count <= len(items) {
		t.Fatalf("expected gaps in addition to %d mappings - got %d regions", len(items), count)
	}
}

func TestRegionsStopsOnQueryError(t *testing.T) {
	queryErr := errors.New("query rejected")
	calls := 0
	query := func(addr uint64) (MemoryRegion, error) {
		calls++
		if addr >= 0x2000 {
			return MemoryRegion{}, queryErr
		}
		return MemoryRegion{BaseAddress: addr, Size: 0x1000, State: StateCommitted}, nil
	}

	var got []error
	regions := 0
	for _, err := range Regions(query, 0, 0x10000) {
		if err != nil {
			got = append(got, err)
			continue
		}
		regions++
	}
	if regions != 2 || len(got) != 1 || !errors.Is(got[0], queryErr) {
		t.Fatalf("expected 2 regions and one error - got %d and %v", regions, got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 queries - got %d", calls)
	}
}

func TestImageSpans(t *testing.T) {
	spans := ImageSpans(parseSample(t))
	if len(spans) != 2 {
		t.Fatalf("expected 2 images - got %d", len(spans))
	}
	if spans[0].Path != "/usr/bin/cat" || spans[0].Base != 0x55d4c2a00000 || spans[0].End != 0x55d4c2a0c000 {
		t.Fatalf("unexpected main image span %+v", spans[0])
	}
	if spans[1].Path != "/usr/lib/x86_64-linux-gnu/libc.so.6" {
		t.Fatalf("unexpected second image span %+v", spans[1])
	}
}

func TestFromWin32(t *testing.T) {
	r := FromWin32(0x10000, 0x10000, 0x1000, win32MemCommit, win32PageReadWrite|win32PageGuard, win32MemPrivate)
	if r.IsReadable() {
		t.Fatalf("expected guard page to be unreadable - got %s", r)
	}
	if r.Type != TypePrivate || r.State != StateCommitted {
		t.Fatalf("unexpected conversion %s", r)
	}

	r = FromWin32(0x400000, 0x400000, 0x2000, win32MemCommit, win32PageExecuteRead, win32MemImage)
	if !r.IsReadable() || r.Protection&ProtExec == 0 || r.Type != TypeImage {
		t.Fatalf("unexpected image conversion %s", r)
	}

	r = FromWin32(0, 0, 0x10000, win32MemFree, win32PageNoAccess, 0)
	if r.State != StateFree || r.IsCommitted() {
		t.Fatalf("expected free region - got %s", r)
	}

	if Win32Protect(ProtRead|ProtExec) != win32PageExecuteRead {
		t.Fatalf("expected PAGE_EXECUTE_READ - got 0x%x", Win32Protect(ProtRead|ProtExec))
	}
}

func TestAlign(t *testing.T) {
	if AlignDown[uint64](0x1234, PageSize) != 0x1000 {
		t.Fatal("expected 0x1000")
	}
	if AlignUp[uint64](0x1234, PageSize) != 0x2000 {
		t.Fatal("expected 0x2000")
	}
	if AlignUp[uint64](0x2000, PageSize) != 0x2000 {
		t.Fatal("expected aligned value to be unchanged")
	}
}
