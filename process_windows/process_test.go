//go:build windows

package process_windows

import (
	"bytes"
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"procmem/process"
)

func openSelf(t *testing.T, rights process.AccessRights) *WindowsProcess {
	t.Helper()
	p, err := Open(process.ProcessID(os.Getpid()), rights)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestReadWriteSelf(t *testing.T) {
	p := openSelf(t, process.DefaultAccessRights)

	buf := []byte("procmem self test buffer")
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&buf[0])))

	data, err := p.ReadMemory(addr, process.ProcessMemorySize(len(buf)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, buf) {
		t.Fatalf("expected %q - got %q", buf, data)
	}

	if _, err := p.WriteMemory(addr, []byte("PROCMEM")); err != nil {
		t.Fatal(err)
	}
	if string(buf[:7]) != "PROCMEM" {
		t.Fatalf("expected PROCMEM - got %q", buf[:7])
	}
	runtime.KeepAlive(buf)

	if _, err := p.ReadMemory(0x10, 8); !errors.Is(err, process.ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed - got %v", err)
	}
}

func TestQueryRegionAndModules(t *testing.T) {
	p := openSelf(t, process.DefaultAccessRights)

	buf := make([]byte, 64)
	addr := process.ProcessMemoryAddress(uintptr(unsafe.Pointer(&buf[0])))
	r, err := p.QueryRegion(addr)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(uint64(addr)) || !r.IsReadable() {
		t.Fatalf("expected a readable region around %s - got %s", addr, r)
	}
	runtime.KeepAlive(buf)

	r, err = p.QueryRegion(p.MaxAddress())
	if err != nil {
		t.Fatal(err)
	}
	if r.End()-1 != uint64(p.MaxAddress()) {
		t.Fatalf("expected the last region to end at %s - got %s", p.MaxAddress(), r)
	}

	modules, err := p.EnumModules(process.ModulesAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) == 0 || !strings.HasSuffix(strings.ToLower(modules[0].Name), ".exe") {
		t.Fatalf("expected the executable first - got %v", modules)
	}

	exe, err := p.ImagePath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.EqualFold(modules[0].FilePath, exe) {
		t.Fatalf("expected main module %s - got %s", exe, modules[0].FilePath)
	}

	state, err := p.State()
	if err != nil || state != process.ProcessRunning {
		t.Fatalf("expected a running target - got %q (%v)", state, err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := openSelf(t, process.DefaultAccessRights)

	if !p.IsValid() {
		t.Fatalf("expected self to be valid")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op - got %v", err)
	}
	if p.IsValid() {
		t.Fatalf("expected closed handle to be invalid")
	}
}

func TestAllocateAndFree(t *testing.T) {
	p := openSelf(t, process.DefaultAccessRights)

	addr, err := p.AllocateMemory(0x1000, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.WriteMemory(addr, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := p.FreeMemory(addr); err != nil {
		t.Fatal(err)
	}
}
