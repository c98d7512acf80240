package process

import (
	"fmt"
	"sort"
	"strings"
)

// AccessRights is the bit mask requested when opening a target. The values are
// the Win32 process access rights; the Linux backend only checks them for intent.
type AccessRights uint32

const (
	RightTerminate               AccessRights = 0x0001
	RightCreateThread            AccessRights = 0x0002
	RightVMOperation             AccessRights = 0x0008
	RightVMRead                  AccessRights = 0x0010
	RightVMWrite                 AccessRights = 0x0020
	RightDupHandle               AccessRights = 0x0040
	RightCreateProcess           AccessRights = 0x0080
	RightSetQuota                AccessRights = 0x0100
	RightSetInformation          AccessRights = 0x0200
	RightQueryInformation        AccessRights = 0x0400
	RightSuspendResume           AccessRights = 0x0800
	RightQueryLimitedInformation AccessRights = 0x1000
	RightDelete                  AccessRights = 0x00010000
	RightReadControl             AccessRights = 0x00020000
	RightWriteDAC                AccessRights = 0x00040000
	RightWriteOwner              AccessRights = 0x00080000
	RightSynchronize             AccessRights = 0x00100000
	RightAllAccess               AccessRights = 0x001FFFFF
)

// DefaultAccessRights is used when the caller does not ask for anything specific.
const DefaultAccessRights = RightQueryInformation | RightVMOperation | RightVMRead | RightVMWrite

var accessRightNames = map[string]AccessRights{
	"terminate":                 RightTerminate,
	"create-thread":             RightCreateThread,
	"vm-operation":              RightVMOperation,
	"vm-read":                   RightVMRead,
	"vm-write":                  RightVMWrite,
	"dup-handle":                RightDupHandle,
	"create-process":            RightCreateProcess,
	"set-quota":                 RightSetQuota,
	"set-information":           RightSetInformation,
	"query-information":         RightQueryInformation,
	"suspend-resume":            RightSuspendResume,
	"query-limited-information": RightQueryLimitedInformation,
	"delete":                    RightDelete,
	"read-control":              RightReadControl,
	"write-dac":                 RightWriteDAC,
	"write-owner":               RightWriteOwner,
	"synchronize":               RightSynchronize,
	"all-access":                RightAllAccess,
}

// ParseAccessRights unions the named rights. Names are case-insensitive and
// accept '_' in place of '-'. An empty list yields DefaultAccessRights.
func ParseAccessRights(names ...string) (AccessRights, error) {
	if len(names) == 0 {
		return DefaultAccessRights, nil
	}

	var rights AccessRights
	for _, name := range names {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
		r, ok := accessRightNames[key]
		if !ok {
			return 0, fmt.Errorf("unknown access right %q: %w", name, ErrInvalidArgument)
		}
		rights |= r
	}
	return rights, nil
}

// Has reports whether every bit of want is present.
func (r AccessRights) Has(want AccessRights) bool {
	return r&want == want
}

// ForOpen adds the right needed by the liveness check.
func (r AccessRights) ForOpen() AccessRights {
	if r == 0 {
		r = DefaultAccessRights
	}
	return r | RightSynchronize
}

func (r AccessRights) String() string {
	if r.Has(RightAllAccess) {
		return "all-access"
	}
	var names []string
	for _, name := range sortedRightNames() {
		bit := accessRightNames[name]
		if bit != RightAllAccess && r.Has(bit) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("0x%X", uint32(r))
	}
	return strings.Join(names, "|")
}

func sortedRightNames() []string {
	names := make([]string, 0, len(accessRightNames))
	for name := range accessRightNames {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return accessRightNames[names[i]] < accessRightNames[names[j]]
	})
	return names
}
