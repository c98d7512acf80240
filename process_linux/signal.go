//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"

	"procmem/process"
)

// Suspend stops every thread of the target with SIGSTOP.
func (p *LinuxProcess) Suspend() error {
	return p.signal(unix.SIGSTOP)
}

// Resume continues a stopped target with SIGCONT.
func (p *LinuxProcess) Resume() error {
	return p.signal(unix.SIGCONT)
}

// signal delivers sig through the pidfd so it can never reach a recycled pid.
func (p *LinuxProcess) signal(sig syscall.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return process.ErrProcessNotOpen
	}
	if !p.rights.Has(process.RightSuspendResume) {
		return fmt.Errorf("signal %v: %w", sig, process.ErrAccessDenied)
	}

	err := unix.PidfdSendSignal(p.pidfd, sig, nil, 0)
	switch {
	case err == nil:
		p.log.Debugln("sent", sig)
		return nil
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("signal %v: %w: %w", sig, process.ErrInvalidHandle, err)
	case errors.Is(err, unix.EPERM):
		return fmt.Errorf("signal %v: %w: %w", sig, process.ErrAccessDenied, err)
	default:
		return fmt.Errorf("signal %v: %w", sig, err)
	}
}
