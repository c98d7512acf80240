//go:build !linux && !windows

package session

import (
	"fmt"
	"runtime"

	"procmem/process"
)

var platformOpener process.Opener = func(pid process.ProcessID, rights process.AccessRights) (process.Process, error) {
	return nil, fmt.Errorf("%s: %w", runtime.GOOS, process.ErrNotSupported)
}

var platformElevator func() error
