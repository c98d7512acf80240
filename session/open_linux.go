//go:build linux

package session

import (
	"procmem/process"
	"procmem/process_linux"
)

var platformOpener process.Opener = process_linux.Opener

// Linux has no privilege to enable; access denials are surfaced directly.
var platformElevator func() error
