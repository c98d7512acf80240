//go:build windows

package session

import (
	"procmem/process"
	"procmem/process_windows"
)

var platformOpener process.Opener = process_windows.Opener

var platformElevator = process_windows.EnableDebugPrivilege
