package main

import (
	"fmt"
	"os"
	"unsafe"

	"procmem/hexdump"
	"procmem/memory_access"
	"procmem/pattern"
	"procmem/process"
	"procmem/session"
)

// Record mimics a game structure: a marker followed by a health field.
type Record struct {
	Magic  [8]byte
	Health int32
	Armor  float32
}

func main() {
	rec := &Record{Magic: [8]byte{'P', 'L', 'A', 'Y', 'E', 'R', 0x13, 0x37}, Health: 100, Armor: 2.5}
	base := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(rec)))

	// Attach to ourselves; the same calls work against any pid.
	s, err := session.Open(process.ProcessID(os.Getpid()), session.DefaultOptions())
	if err != nil {
		fmt.Printf("Failed to open self: %v\n", err)
		return
	}
	defer s.Close()

	// Wildcards skip the two trailing marker bytes.
	p := pattern.MustFromHexString("50 4C 41 59 45 52 ?? ??")
	hit, found, err := s.Scanner.Range(base, uint64(unsafe.Sizeof(*rec)), p)
	if err != nil || !found {
		fmt.Printf("Marker not found: found=%v err=%v\n", found, err)
		return
	}
	fmt.Printf("Marker at %s (%s)\n", hit, s.Modules.Symbolize(hit))

	health, err := memory_access.ReadT[int32](s.Memory, hit, []int64{8})
	if err != nil {
		fmt.Printf("Failed to read health: %v\n", err)
		return
	}
	fmt.Printf("Health: %d\n", health)

	if _, err := memory_access.WriteT[int32](s.Memory, hit, 250, []int64{8}); err != nil {
		fmt.Printf("Failed to write health: %v\n", err)
		return
	}
	fmt.Printf("Health after write: %d\n", rec.Health)

	data, err := s.Memory.ReadRaw(hit, int(unsafe.Sizeof(*rec)), nil)
	if err != nil {
		fmt.Printf("Failed to read record: %v\n", err)
		return
	}
	options := hexdump.DefaultOptions()
	options.StartAddress = uint64(hit)
	options.Highlights = []hexdump.Highlight{{Offset: 8, Length: 4}}
	fmt.Print(hexdump.Dump(data, options))
}
