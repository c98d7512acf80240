package process

import (
	"errors"
	"syscall"
	"testing"
)

type stubProcess struct {
	Process
	pid ProcessID
}

func TestOpenWithElevationRetriesOnce(t *testing.T) {
	calls := 0
	elevations := 0
	open := func(pid ProcessID, rights AccessRights) (Process, error) {
		calls++
		if elevations == 0 {
			return nil, ErrAccessDenied
		}
		return &stubProcess{pid: pid}, nil
	}
	elevate := func() error {
		elevations++
		return nil
	}

	proc, err := OpenWithElevation(open, elevate, 42, DefaultAccessRights)
	if err != nil {
		t.Fatal(err)
	}
	if proc.(*stubProcess).pid != 42 {
		t.Fatalf("expected pid 42 - got %d", proc.(*stubProcess).pid)
	}
	if calls != 2 || elevations != 1 {
		t.Fatalf("expected 2 opens and 1 elevation - got %d and %d", calls, elevations)
	}
}

func TestOpenWithElevationGivesUpAfterOneRetry(t *testing.T) {
	calls := 0
	elevations := 0
	open := func(pid ProcessID, rights AccessRights) (Process, error) {
		calls++
		return nil, ErrAccessDenied
	}

	_, err := OpenWithElevation(open, func() error { elevations++; return nil }, 7, DefaultAccessRights)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied - got %v", err)
	}
	if calls != 2 || elevations != 1 {
		t.Fatalf("expected 2 opens and 1 elevation - got %d and %d", calls, elevations)
	}
}

func TestOpenWithElevationDoesNotElevateOnNotFound(t *testing.T) {
	elevations := 0
	open := func(pid ProcessID, rights AccessRights) (Process, error) {
		return nil, ErrNotFound
	}

	_, err := OpenWithElevation(open, func() error { elevations++; return nil }, 7, DefaultAccessRights)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound - got %v", err)
	}
	if elevations != 0 {
		t.Fatalf("expected no elevation - got %d", elevations)
	}
}

func TestOpenWithElevationRejectsBadPID(t *testing.T) {
	open := func(pid ProcessID, rights AccessRights) (Process, error) {
		t.Fatal("opener must not be called")
		return nil, nil
	}

	_, err := OpenWithElevation(open, nil, 0, DefaultAccessRights)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument - got %v", err)
	}
}

func TestParseAccessRights(t *testing.T) {
	tests := []struct {
		names []string
		want  AccessRights
	}{
		{nil, DefaultAccessRights},
		{[]string{"vm-read"}, RightVMRead},
		{[]string{"VM_READ", "vm-write"}, RightVMRead | RightVMWrite},
		{[]string{"query-limited-information", "synchronize"}, RightQueryLimitedInformation | RightSynchronize},
		{[]string{"all-access"}, RightAllAccess},
	}

	for _, tt := range tests {
		got, err := ParseAccessRights(tt.names...)
		if err != nil {
			t.Fatalf("%v: %v", tt.names, err)
		}
		if got != tt.want {
			t.Fatalf("%v: expected 0x%X - got 0x%X", tt.names, uint32(tt.want), uint32(got))
		}
	}

	_, err := ParseAccessRights("vm-exec")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument - got %v", err)
	}
}

func TestAccessRightsForOpenAddsSynchronize(t *testing.T) {
	if !DefaultAccessRights.ForOpen().Has(RightSynchronize) {
		t.Fatal("expected synchronize in open rights")
	}
	if AccessRights(0).ForOpen() != DefaultAccessRights|RightSynchronize {
		t.Fatalf("expected default rights - got %s", AccessRights(0).ForOpen())
	}
	if got := (RightVMRead | RightVMWrite).String(); got != "vm-read|vm-write" {
		t.Fatalf("expected vm-read|vm-write - got %s", got)
	}
}

func TestOSErrorMatchesKindAndErrno(t *testing.T) {
	err := error(NewOSError("read", 0x1000, 4, ErrReadFailed, syscall.EFAULT))

	if !errors.Is(err, ErrReadFailed) {
		t.Fatal("expected ErrReadFailed")
	}
	if !errors.Is(err, syscall.EFAULT) {
		t.Fatal("expected EFAULT")
	}

	var osErr *OSError
	if !errors.As(err, &osErr) {
		t.Fatal("expected *OSError")
	}
	if osErr.Code() != uintptr(syscall.EFAULT) {
		t.Fatalf("expected code %d - got %d", syscall.EFAULT, osErr.Code())
	}
}

func TestModuleInfoContains(t *testing.T) {
	m := ModuleInfo{Name: "a.so", BaseAddress: 0x1000, SizeOfImage: 0x100}
	if !m.Contains(0x1000) || !m.Contains(0x10FF) {
		t.Fatal("expected bounds to be contained")
	}
	if m.Contains(0x1100) || m.Contains(0xFFF) {
		t.Fatal("expected addresses outside the image to be rejected")
	}
}
