// Package process provides interfaces and types for process manipulation
package process

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrNotFound is returned when a target, module or symbol is absent. It is an expected outcome.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the controller lacks the rights for an operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidHandle is returned once the target has exited or the handle was closed.
	// It is never recovered automatically; the caller must resolve and open the target again.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidType       = errors.New("invalid scalar type")
	ErrBitnessMismatch   = errors.New("controller is narrower than the target")
	ErrReadFailed        = errors.New("read failed")
	ErrWriteFailed       = errors.New("write failed")
	ErrQueryFailed       = errors.New("region query failed")
	ErrEnumerationFailed = errors.New("module enumeration failed")
	ErrOutOfRange        = errors.New("address out of range")
	ErrNotSupported      = errors.New("not supported on this target")

	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")
)

// OSError records a rejected OS call together with the taxonomy error it maps to.
// errors.Is matches both Kind (e.g. ErrReadFailed) and the underlying OS error.
type OSError struct {
	Op      string
	Address ProcessMemoryAddress
	Size    uint64
	Kind    error
	Err     error
}

func (e *OSError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("%s at %s (size=%#x): %v: %v", e.Op, e.Address, e.Size, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v: %v", e.Op, e.Address, e.Kind, e.Err)
}

func (e *OSError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Code returns the numeric OS error code, or 0 when the cause was not an errno.
func (e *OSError) Code() uintptr {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return uintptr(errno)
	}
	return 0
}

// NewOSError builds an *OSError; a nil err is reported as kind alone.
func NewOSError(op string, addr ProcessMemoryAddress, size uint64, kind, err error) *OSError {
	if err == nil {
		err = kind
	}
	return &OSError{Op: op, Address: addr, Size: size, Kind: kind, Err: err}
}
