//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procAdjustTokenPrivileges = windows.NewLazySystemDLL("advapi32.dll").NewProc("AdjustTokenPrivileges")

// EnableDebugPrivilege turns on SeDebugPrivilege in the current process token
// so that protected targets can be opened. It fails when the account does not
// hold the privilege at all.
func EnableDebugPrivilege() error {
	self, err := windows.GetCurrentProcess()
	if err != nil {
		return err
	}

	var token windows.Token
	if err := windows.OpenProcessToken(self, windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token); err != nil {
		return fmt.Errorf("OpenProcessToken: %w", err)
	}
	defer token.Close()

	name, err := windows.UTF16PtrFromString("SeDebugPrivilege")
	if err != nil {
		return err
	}

	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, name, &luid); err != nil {
		return fmt.Errorf("LookupPrivilegeValue: %w", err)
	}

	privileges := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{{
			Luid:       luid,
			Attributes: windows.SE_PRIVILEGE_ENABLED,
		}},
	}
	// called directly: success with ERROR_NOT_ALL_ASSIGNED means the account lacks the privilege
	ok, _, callErr := procAdjustTokenPrivileges.Call(
		uintptr(token),
		0,
		uintptr(unsafe.Pointer(&privileges)),
		uintptr(unsafe.Sizeof(privileges)),
		0,
		0,
	)
	if ok == 0 {
		return fmt.Errorf("AdjustTokenPrivileges: %w", callErr)
	}
	if errors.Is(callErr, windows.ERROR_NOT_ALL_ASSIGNED) {
		return fmt.Errorf("SeDebugPrivilege: %w", callErr)
	}
	return nil
}
