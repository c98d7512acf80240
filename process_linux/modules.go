//go:build linux

package process_linux

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"

	"procmem/process"
	"procmem/process/memory_map"
)

// EnumModules lists file-backed images with executable code. The main
// executable comes first; the rest follow in address order.
func (p *LinuxProcess) EnumModules(filter process.ModuleFilter) ([]process.ModuleInfo, error) {
	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	switch filter {
	case process.Modules32Bit:
		if p.is64 {
			return nil, nil
		}
	case process.Modules64Bit:
		if !p.is64 {
			return nil, nil
		}
	}

	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", p.pid))
	if err != nil {
		p.log.Debugln("readlink exe:", err)
	}

	var main []process.ModuleInfo
	var rest []process.ModuleInfo
	for _, span := range memory_map.ImageSpans(mm) {
		m := process.ModuleInfo{
			Name:        filepath.Base(span.Path),
			FilePath:    span.Path,
			BaseAddress: process.ProcessMemoryAddress(span.Base),
			SizeOfImage: span.End - span.Base,
			EntryPoint:  p.entryPoint(span),
		}
		if exe != "" && span.Path == exe && len(main) == 0 {
			main = append(main, m)
			continue
		}
		rest = append(rest, m)
	}
	return append(main, rest...), nil
}

// entryPoint reads the ELF header of the image through the target's view of
// the file, so images replaced on disk still resolve. Zero when unknown.
func (p *LinuxProcess) entryPoint(span memory_map.ImageSpan) process.ProcessMemoryAddress {
	f, err := elf.Open(fmt.Sprintf("/proc/%d/root%s", p.pid, span.Path))
	if err != nil {
		f, err = elf.Open(span.Path)
		if err != nil {
			return 0
		}
	}
	defer f.Close()

	if f.Entry == 0 {
		return 0
	}
	if f.Type != elf.ET_DYN {
		return process.ProcessMemoryAddress(f.Entry)
	}

	// position independent: entry is relative to the first loadable segment
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD {
			bias := span.Base - memory_map.AlignDown(prog.Vaddr, memory_map.PageSize)
			return process.ProcessMemoryAddress(bias + f.Entry)
		}
	}
	return 0
}
