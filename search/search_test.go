package search

import (
	"context"
	"errors"
	"slices"
	"testing"

	"procmem/memory_access"
	"procmem/pattern"
	"procmem/process"
	"procmem/process_blob"
	"procmem/textcodec"
)

const base = process.ProcessMemoryAddress(0x10000)

func TestSearchFindsPointerPath(t *testing.T) {
	for _, ptrSize := range []int{8, 4} {
		blob := process_blob.NewProcessBlob(base, make([]byte, 0x1000))
		blob.SetPointerSize(ptrSize)

		// base+0x10 -> base+0x200, +0x28 -> base+0x400, value at +0x14
		offsets := []int64{0x10, 0x28, 0x14}
		hops := []process.ProcessMemoryAddress{base + 0x200, base + 0x400}
		if err := blob.PointerChain(base, offsets, hops); err != nil {
			t.Fatal(err)
		}

		acc := memory_access.New(blob)
		if _, err := acc.WriteScalar(base+0x414, memory_access.IntValue(memory_access.Int32, 0x5EED), nil); err != nil {
			t.Fatal(err)
		}

		results, err := Search(context.Background(), acc, base, WithSearchForType(int32(0x5EED)), WithMaxStructSize(0x40))
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Fatalf("ptr%d: expected one path - got %v", ptrSize, results)
		}
		if !slices.Equal(results[0].Path, offsets) || results[0].Address != base+0x414 {
			t.Fatalf("ptr%d: expected %v at %s - got %s", ptrSize, offsets, base+0x414, results[0])
		}

		addr, err := acc.ResolvePointerChain(base, results[0].Path)
		if err != nil {
			t.Fatal(err)
		}
		if addr != results[0].Address {
			t.Fatalf("ptr%d: expected path to resolve to %s - got %s", ptrSize, results[0].Address, addr)
		}
	}
}

func TestSearchRespectsDepth(t *testing.T) {
	blob := process_blob.NewProcessBlob(base, make([]byte, 0x1000))
	if err := blob.PointerChain(base, []int64{0x8, 0x8, 0x0}, []process.ProcessMemoryAddress{base + 0x100, base + 0x200}); err != nil {
		t.Fatal(err)
	}
	acc := memory_access.New(blob)
	if _, err := acc.WriteRaw(base+0x200, []byte("needle"), nil); err != nil {
		t.Fatal(err)
	}

	results, err := Search(context.Background(), acc, base, WithSearchForText("needle", textcodec.UTF8), WithMaxDepth(1), WithMaxStructSize(0x40))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected nothing within depth 1 - got %v", results)
	}

	results, err = Search(context.Background(), acc, base, WithSearchForText("needle", textcodec.UTF8), WithMaxDepth(2), WithMaxStructSize(0x40))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !slices.Equal(results[0].Path, []int64{0x8, 0x8, 0x0}) {
		t.Fatalf("expected [8 8 0] - got %v", results)
	}
}

func TestSearchClampsToRegionEnd(t *testing.T) {
	blob := process_blob.NewProcessBlob(base, make([]byte, 0x20))
	acc := memory_access.New(blob)
	if _, err := acc.WriteRaw(base+0x18, []byte{0xAA, 0xBB, 0xCC, 0xDD}, nil); err != nil {
		t.Fatal(err)
	}

	results, err := Search(context.Background(), acc, base, WithSearchForPattern(pattern.MustFromHexString("AA ?? CC DD")))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Address != base+0x18 {
		t.Fatalf("expected a hit at %s - got %v", base+0x18, results)
	}
}

func TestSearchOptions(t *testing.T) {
	blob := process_blob.NewProcessBlob(base, make([]byte, 0x100))
	acc := memory_access.New(blob)

	if _, err := Search(context.Background(), acc, base); !errors.Is(err, process.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without a target - got %v", err)
	}

	results, err := Search(context.Background(), acc, base, WithSearchForType(uint8(0)), WithMaxResults(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results - got %d", len(results))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Search(ctx, acc, base, WithSearchForType(uint8(0))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled - got %v", err)
	}
}
