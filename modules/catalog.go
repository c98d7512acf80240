// Package modules enumerates the images loaded in a target and maps addresses back to them.
package modules

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/samber/lo"

	"procmem/process"
)

// ControllerPointerSize is the pointer width of this process. Tests override it
// to exercise the narrow-controller path.
var ControllerPointerSize = process.ControllerPointerSize

// Catalog is the ModuleCatalog of one target session. It keeps no state
// between calls; every method enumerates afresh.
type Catalog struct {
	proc process.Process
	log  *logger.Logger
}

func New(proc process.Process) *Catalog {
	return &Catalog{
		proc: proc,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("catalog-%d", proc.GetPID()))),
	}
}

// List enumerates the loaded modules; the main executable is first.
func (c *Catalog) List(filter process.ModuleFilter) ([]process.ModuleInfo, error) {
	if ControllerPointerSize < c.proc.PointerSize() {
		return nil, fmt.Errorf("%d-bit controller, %d-bit target: %w", ControllerPointerSize*8, c.proc.PointerSize()*8, process.ErrBitnessMismatch)
	}

	modules, err := c.proc.EnumModules(filter)
	if err != nil {
		if errors.Is(err, process.ErrEnumerationFailed) || errors.Is(err, process.ErrBitnessMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", process.ErrEnumerationFailed, err)
	}
	return modules, nil
}

// MatchesName reports whether m is called name, comparing case-insensitively
// against the module name and the base of its file path.
func MatchesName(m process.ModuleInfo, name string) bool {
	return strings.EqualFold(m.Name, name) || strings.EqualFold(filepath.Base(m.FilePath), name)
}

// ResolveBase returns the base address and info of the named module. An empty
// name selects the main executable.
func (c *Catalog) ResolveBase(name string) (process.ProcessMemoryAddress, process.ModuleInfo, error) {
	modules, err := c.List(process.ModulesAll)
	if err != nil {
		return 0, process.ModuleInfo{}, err
	}

	if name == "" {
		if len(modules) == 0 {
			return 0, process.ModuleInfo{}, fmt.Errorf("main module: %w", process.ErrNotFound)
		}
		return modules[0].BaseAddress, modules[0], nil
	}

	m, ok := lo.Find(modules, func(m process.ModuleInfo) bool {
		return MatchesName(m, name)
	})
	if !ok {
		return 0, process.ModuleInfo{}, fmt.Errorf("module %q: %w", name, process.ErrNotFound)
	}
	return m.BaseAddress, m, nil
}

// Containing returns the first module whose image contains addr and the offset of addr from its base.
func (c *Catalog) Containing(addr process.ProcessMemoryAddress) (process.ModuleInfo, uint64, error) {
	modules, err := c.List(process.ModulesAll)
	if err != nil {
		return process.ModuleInfo{}, 0, err
	}

	m, ok := lo.Find(modules, func(m process.ModuleInfo) bool {
		return m.Contains(addr)
	})
	if !ok {
		return process.ModuleInfo{}, 0, fmt.Errorf("%s: %w", addr, process.ErrOutOfRange)
	}
	return m, uint64(addr - m.BaseAddress), nil
}

// Symbolize renders addr as "module+0xoffset", or as a bare address outside every module.
func (c *Catalog) Symbolize(addr process.ProcessMemoryAddress) string {
	m, off, err := c.Containing(addr)
	if err != nil {
		if !errors.Is(err, process.ErrOutOfRange) {
			c.log.Debugln("symbolize", addr, err)
		}
		return addr.String()
	}
	return fmt.Sprintf("%s+0x%X", m.Name, off)
}
