package process

import (
	"errors"
	"fmt"
)

// Opener opens a target with the requested rights.
type Opener func(pid ProcessID, rights AccessRights) (Process, error)

// OpenWithElevation opens pid and, if the first attempt is refused with
// ErrAccessDenied and elevate is non-nil, calls elevate once and retries once.
func OpenWithElevation(open Opener, elevate func() error, pid ProcessID, rights AccessRights) (Process, error) {
	if open == nil {
		return nil, fmt.Errorf("nil opener: %w", ErrInvalidArgument)
	}
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d: %w", pid, ErrInvalidArgument)
	}

	proc, err := open(pid, rights)
	if err == nil {
		return proc, nil
	}
	if !errors.Is(err, ErrAccessDenied) || elevate == nil {
		return nil, err
	}

	if elevErr := elevate(); elevErr != nil {
		return nil, fmt.Errorf("elevation failed (%v): %w", elevErr, err)
	}

	proc, err = open(pid, rights)
	if err != nil {
		return nil, fmt.Errorf("open after elevation: %w", err)
	}
	return proc, nil
}
