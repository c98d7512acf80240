//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"procmem/process"
)

// EnumModules lists the loaded images with EnumProcessModulesEx. The first
// entry is the main executable.
func (p *WindowsProcess) EnumModules(filter process.ModuleFilter) ([]process.ModuleInfo, error) {
	h, err := p.live()
	if err != nil {
		return nil, err
	}

	handles := make([]windows.Handle, 256)
	for {
		var needed uint32
		size := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
		if err := windows.EnumProcessModulesEx(h, &handles[0], size, &needed, uint32(filter)); err != nil {
			if errors.Is(err, windows.ERROR_PARTIAL_COPY) {
				return nil, fmt.Errorf("%w: module list not readable yet or bitness differs: %w", process.ErrEnumerationFailed, err)
			}
			return nil, fmt.Errorf("EnumProcessModulesEx: %w", err)
		}
		if needed <= size {
			handles = handles[:needed/uint32(unsafe.Sizeof(handles[0]))]
			break
		}
		handles = make([]windows.Handle, needed/uint32(unsafe.Sizeof(handles[0]))+16)
	}

	modules := make([]process.ModuleInfo, 0, len(handles))
	for _, mod := range handles {
		m, err := p.moduleInfo(h, mod)
		if err != nil {
			// modules can unload between the list and the lookup
			p.log.Debugln("module", mod, err)
			continue
		}
		modules = append(modules, m)
	}

	// EnumProcessModulesEx lists the executable first in practice; make it explicit.
	if path, err := p.ImagePath(); err == nil {
		if i := slices.IndexFunc(modules, func(m process.ModuleInfo) bool {
			return strings.EqualFold(m.FilePath, path)
		}); i > 0 {
			exe := modules[i]
			copy(modules[1:i+1], modules[:i])
			modules[0] = exe
		}
	} else {
		p.log.Debugln("image path:", err)
	}
	return modules, nil
}

func (p *WindowsProcess) moduleInfo(h, mod windows.Handle) (process.ModuleInfo, error) {
	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(h, mod, &info, uint32(unsafe.Sizeof(info))); err != nil {
		return process.ModuleInfo{}, err
	}

	name := make([]uint16, windows.MAX_PATH)
	if err := windows.GetModuleBaseName(h, mod, &name[0], uint32(len(name))); err != nil {
		return process.ModuleInfo{}, err
	}

	path := make([]uint16, windows.MAX_LONG_PATH)
	if err := windows.GetModuleFileNameEx(h, mod, &path[0], uint32(len(path))); err != nil {
		return process.ModuleInfo{}, err
	}

	return process.ModuleInfo{
		Name:        windows.UTF16ToString(name),
		FilePath:    windows.UTF16ToString(path),
		BaseAddress: process.ProcessMemoryAddress(info.BaseOfDll),
		SizeOfImage: uint64(info.SizeOfImage),
		EntryPoint:  process.ProcessMemoryAddress(info.EntryPoint),
	}, nil
}
