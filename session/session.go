// Package session ties one opened target to the components that operate on
// it: the memory accessor, the module catalog and the pattern scanner.
package session

import (
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/memory_access"
	"procmem/modules"
	"procmem/process"
	"procmem/scan"
	"procmem/target"
)

// Options configures how a session opens its target.
type Options struct {
	Rights   process.AccessRights
	Elevate  func() error // called at most once when the open is refused
	Accessor []memory_access.Option
	Scanner  []scan.Option
}

// DefaultOptions uses the default rights and the platform elevator, if any.
func DefaultOptions() Options {
	return Options{
		Rights:  process.DefaultAccessRights,
		Elevate: platformElevator,
	}
}

// Session owns one ProcessHandle. Once the target exits the session stays
// invalid; open a new one against the re-resolved target.
type Session struct {
	Process process.Process
	Memory  *memory_access.Accessor
	Modules *modules.Catalog
	Scanner *scan.Scanner

	log *logger.Logger
}

// New wraps an already opened target.
func New(proc process.Process, opts Options) *Session {
	acc := memory_access.New(proc, opts.Accessor...)
	catalog := modules.New(proc)
	return &Session{
		Process: proc,
		Memory:  acc,
		Modules: catalog,
		Scanner: scan.New(acc, catalog, opts.Scanner...),
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("session-%d", proc.GetPID()))),
	}
}

// Open opens pid on this platform, retrying once after opts.Elevate when the
// first attempt is refused.
func Open(pid process.ProcessID, opts Options) (*Session, error) {
	proc, err := process.OpenWithElevation(platformOpener, opts.Elevate, pid, opts.Rights)
	if err != nil {
		return nil, err
	}
	s := New(proc, opts)
	s.log.Infoln("Session opened", "bitness=", proc.PointerSize()*8)
	return s, nil
}

// OpenTarget resolves identifier (pid or process name) and opens it.
func OpenTarget(identifier string, opts Options) (*Session, error) {
	pid, err := target.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	return Open(pid, opts)
}

// Valid reports whether the target is still running.
func (s *Session) Valid() bool {
	return s.Process.IsValid()
}

// Close releases the target handle. Calling it again is a no-op.
func (s *Session) Close() error {
	return s.Process.Close()
}
