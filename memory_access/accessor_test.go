package memory_access

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"procmem/pattern"
	"procmem/process"
	"procmem/process/memory_map"
	"procmem/process_blob"
	"procmem/textcodec"
)

const testBase process.ProcessMemoryAddress = 0x10000

func newTarget(t *testing.T, size int) (*process_blob.ProcessBlob, *Accessor) {
	t.Helper()
	blob := process_blob.NewProcessBlob(testBase, make([]byte, size))
	return blob, New(blob)
}

func TestScalarRoundTripBoundaries(t *testing.T) {
	_, acc := newTarget(t, 0x100)

	values := []Value{
		IntValue(Int8, 0), IntValue(Int8, math.MaxInt8), IntValue(Int8, math.MinInt8), IntValue(Int8, -1),
		UintValue(Uint8, 0), UintValue(Uint8, math.MaxUint8),
		IntValue(Int16, 0), IntValue(Int16, math.MaxInt16), IntValue(Int16, math.MinInt16), IntValue(Int16, -1),
		UintValue(Uint16, 0), UintValue(Uint16, math.MaxUint16),
		IntValue(Int32, 0), IntValue(Int32, math.MaxInt32), IntValue(Int32, math.MinInt32), IntValue(Int32, -1),
		UintValue(Uint32, 0), UintValue(Uint32, math.MaxUint32),
		IntValue(Int64, 0), IntValue(Int64, math.MaxInt64), IntValue(Int64, math.MinInt64), IntValue(Int64, -1),
		UintValue(Uint64, 0), UintValue(Uint64, math.MaxUint64),
		FloatValue(Float32, 0), FloatValue(Float32, math.MaxFloat32), FloatValue(Float32, -math.MaxFloat32), FloatValue(Float32, -1),
		FloatValue(Float64, 0), FloatValue(Float64, math.MaxFloat64), FloatValue(Float64, -math.MaxFloat64), FloatValue(Float64, -1),
	}

	for _, v := range values {
		addr := testBase + 0x20
		next, err := acc.WriteScalar(addr, v, nil)
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if next != addr+process.ProcessMemoryAddress(v.Kind.Size()) {
			t.Fatalf("%s: expected next %s - got %s", v, addr+process.ProcessMemoryAddress(v.Kind.Size()), next)
		}
		if acc.LastTransferred() != v.Kind.Size() {
			t.Fatalf("%s: expected %d bytes transferred - got %d", v, v.Kind.Size(), acc.LastTransferred())
		}

		got, err := acc.ReadScalar(addr, v.Kind, nil)
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if got != v {
			t.Fatalf("expected %s - got %s", v, got)
		}
	}
}

func TestInt32EndToEnd(t *testing.T) {
	blob, acc := newTarget(t, 0x100)
	addr := testBase + 0x40

	next, err := WriteT[int32](acc, addr, 1234, nil)
	if err != nil {
		t.Fatal(err)
	}
	if next != addr+4 {
		t.Fatalf("expected %s - got %s", addr+4, next)
	}

	got, err := ReadT[int32](acc, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1234 {
		t.Fatalf("expected 1234 - got %d", got)
	}

	raw := blob.Data(testBase)[0x40:0x44]
	if !bytes.Equal(raw, []byte{0xD2, 0x04, 0x00, 0x00}) {
		t.Fatalf("expected little-endian 1234 - got %x", raw)
	}
}

func TestInvalidKindFailsWithoutReading(t *testing.T) {
	blob, acc := newTarget(t, 0x100)
	before := blob.ReadCalls()

	_, err := acc.ReadScalar(testBase, Kind(200), []int64{0, 0})
	if !errors.Is(err, process.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType - got %v", err)
	}
	if blob.ReadCalls() != before {
		t.Fatalf("expected no reads - got %d", blob.ReadCalls()-before)
	}
	if !errors.Is(acc.LastError(), process.ErrInvalidType) {
		t.Fatalf("expected last error to be ErrInvalidType - got %v", acc.LastError())
	}

	if _, err := acc.WriteScalar(testBase, Value{}, nil); !errors.Is(err, process.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType - got %v", err)
	}
}

func TestResolvePointerChain(t *testing.T) {
	tests := []struct {
		name        string
		pointerSize int
	}{
		{"x64", 8},
		{"x86", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, acc := newTarget(t, 0x1000)
			blob.SetPointerSize(tt.pointerSize)

			offsets := []int64{0x10, 0x28, -0x8, 0x14}
			hops := []process.ProcessMemoryAddress{testBase + 0x200, testBase + 0x400, testBase + 0x800}
			if err := blob.PointerChain(testBase, offsets, hops); err != nil {
				t.Fatal(err)
			}

			// Manual walk: n-1 dereferences then a flat add.
			cur := testBase
			for i := 0; i < len(offsets)-1; i++ {
				ptr, err := acc.ReadPointer(cur.Offset(offsets[i]))
				if err != nil {
					t.Fatal(err)
				}
				cur = ptr
			}
			expected := cur.Offset(offsets[len(offsets)-1])

			got, err := acc.ResolvePointerChain(testBase, offsets)
			if err != nil {
				t.Fatal(err)
			}
			if got != expected || got != testBase+0x814 {
				t.Fatalf("expected %s - got %s", expected, got)
			}
			if acc.LastTransferred() != tt.pointerSize {
				t.Fatalf("expected last transfer of one pointer (%d) - got %d", tt.pointerSize, acc.LastTransferred())
			}

			if _, err := WriteT[uint16](acc, testBase, 0xBEEF, offsets); err != nil {
				t.Fatal(err)
			}
			v, err := ReadT[uint16](acc, testBase+0x814, nil)
			if err != nil || v != 0xBEEF {
				t.Fatalf("expected 0xBEEF at the chain target - got 0x%x (%v)", v, err)
			}
		})
	}
}

func TestPointerChainEdgeCases(t *testing.T) {
	_, acc := newTarget(t, 0x100)

	got, err := acc.ResolvePointerChain(testBase+8, nil)
	if err != nil || got != testBase+8 {
		t.Fatalf("expected empty chain to resolve to base - got %s (%v)", got, err)
	}

	got, err = acc.ResolvePointerChain(testBase, []int64{0x20})
	if err != nil || got != testBase+0x20 {
		t.Fatalf("expected single offset to be a flat add - got %s (%v)", got, err)
	}

	_, err = acc.ResolvePointerChain(testBase, []int64{0, 4})
	if !errors.Is(err, process.ErrReadFailed) || !errors.Is(err, errNullPointer) {
		t.Fatalf("expected null pointer read failure - got %v", err)
	}

	_, err = acc.ReadRaw(0x1, 4, nil)
	if !errors.Is(err, process.ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed - got %v", err)
	}
	if acc.LastError() == nil {
		t.Fatal("expected last error to be set")
	}

	if _, err := acc.ReadRaw(testBase, 4, nil); err != nil {
		t.Fatal(err)
	}
	if acc.LastError() != nil {
		t.Fatalf("expected last error to clear - got %v", acc.LastError())
	}
}

func TestReadStringChunkedAcrossPages(t *testing.T) {
	blob := process_blob.New(1)
	if err := blob.AddSegment(testBase, make([]byte, 0x1000), memory_map.ProtRead|memory_map.ProtWrite); err != nil {
		t.Fatal(err)
	}
	if err := blob.AddSegment(testBase+0x1000, make([]byte, 0x1000), memory_map.ProtRead|memory_map.ProtWrite); err != nil {
		t.Fatal(err)
	}
	acc := New(blob, WithStringChunkSize(16))

	text := "wide " + strings.Repeat("ĀĂ", 20) + " end"
	addr := testBase + 0xFF1 // odd start, string crosses the page

	if err := acc.WriteString(addr, text, textcodec.UTF16LE, true, nil); err != nil {
		t.Fatal(err)
	}

	got, err := acc.ReadString(addr, 0, textcodec.UTF16LE, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != text {
		t.Fatalf("expected %q - got %q", text, got)
	}
	if acc.LastTransferred() > 16 {
		t.Fatalf("expected chunked reads of at most 16 bytes - got %d", acc.LastTransferred())
	}
}

func TestReadStringFixedSize(t *testing.T) {
	_, acc := newTarget(t, 0x100)
	if err := acc.WriteString(testBase, "hello", textcodec.UTF8, true, nil); err != nil {
		t.Fatal(err)
	}

	got, err := acc.ReadString(testBase, 32, textcodec.UTF8, nil)
	if err != nil || got != "hello" {
		t.Fatalf("expected hello - got %q (%v)", got, err)
	}

	got, err = acc.ReadString(testBase, 3, textcodec.UTF8, nil)
	if err != nil || got != "hel" {
		t.Fatalf("expected hel - got %q (%v)", got, err)
	}

	got, err = acc.ReadString(testBase+0x80, 0, textcodec.UTF8, nil)
	if err != nil || got != "" {
		t.Fatalf("expected empty string - got %q (%v)", got, err)
	}
	if acc.LastError() != nil {
		t.Fatalf("expected no error for an empty string - got %v", acc.LastError())
	}

	_, err = acc.ReadString(0x10, 0, textcodec.UTF8, nil)
	if !errors.Is(err, process.ErrReadFailed) || acc.LastError() == nil {
		t.Fatalf("expected a failed read to set last error - got %v", err)
	}
}

func TestReadStringNearEndOfMapping(t *testing.T) {
	blob, acc := newTarget(t, 0x100)
	copy(blob.Data(testBase)[0xF0:], "hi\x00")

	got, err := acc.ReadString(testBase+0xF0, 0, textcodec.UTF8, nil)
	if err != nil || got != "hi" {
		t.Fatalf("expected hi - got %q (%v)", got, err)
	}

	// A string that runs into an adjacent mapping is still read in full.
	if err := blob.AddSegment(testBase+0x100, []byte("llo\x00"), memory_map.ProtRead); err != nil {
		t.Fatal(err)
	}
	copy(blob.Data(testBase)[0xFE:], "he")
	got, err = acc.ReadString(testBase+0xFE, 0, textcodec.UTF8, nil)
	if err != nil || got != "hello" {
		t.Fatalf("expected hello - got %q (%v)", got, err)
	}

	// Without a terminator before the mapping ends the read fails.
	copy(blob.Data(testBase+0x100), "abcd")
	if _, err := acc.ReadString(testBase+0xFE, 0, textcodec.UTF8, nil); !errors.Is(err, process.ErrReadFailed) {
		t.Fatalf("expected ErrReadFailed - got %v", err)
	}
}

func TestReadStringMaxLength(t *testing.T) {
	blob := process_blob.NewProcessBlob(testBase, bytes.Repeat([]byte{'a'}, 0x100))
	acc := New(blob, WithMaxStringLength(40), WithStringChunkSize(16))

	got, err := acc.ReadString(testBase, 0, textcodec.UTF8, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 40 {
		t.Fatalf("expected 40 characters - got %d", len(got))
	}
}

func TestWriteTextUsesSessionConfig(t *testing.T) {
	blob := process_blob.NewProcessBlob(testBase, bytes.Repeat([]byte{0xFF}, 0x40))
	acc := New(blob, WithEncoding(textcodec.UTF16LE), WithNullTerminator(false))

	if err := acc.WriteText(testBase, "ab", nil); err != nil {
		t.Fatal(err)
	}
	exp := []byte{'a', 0, 'b', 0, 0xFF, 0xFF}
	if got := blob.Data(testBase)[:6]; !bytes.Equal(got, exp) {
		t.Fatalf("expected %x - got %x", exp, got)
	}

	acc = New(blob, WithEncoding(textcodec.UTF16LE))
	if err := acc.WriteText(testBase, "ab", nil); err != nil {
		t.Fatal(err)
	}
	got, err := acc.ReadText(testBase, nil)
	if err != nil || got != "ab" {
		t.Fatalf("expected ab - got %q (%v)", got, err)
	}
}

func TestWriteHex(t *testing.T) {
	blob, acc := newTarget(t, 0x40)

	next, err := acc.WriteHex(testBase+4, "90 90 C3", nil)
	if err != nil {
		t.Fatal(err)
	}
	if next != testBase+7 {
		t.Fatalf("expected %s - got %s", testBase+7, next)
	}
	if got := blob.Data(testBase)[4:7]; !bytes.Equal(got, []byte{0x90, 0x90, 0xC3}) {
		t.Fatalf("expected 9090c3 - got %x", got)
	}

	_, err = acc.WriteHex(testBase, "90 ?? C3", nil)
	if !errors.Is(err, pattern.ErrWildcardInWrite) {
		t.Fatalf("expected ErrWildcardInWrite - got %v", err)
	}
	var synErr *pattern.SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("expected *pattern.SyntaxError - got %T", err)
	}
}

func TestWriteByteSequence(t *testing.T) {
	blob, acc := newTarget(t, 0x40)

	next, err := acc.WriteByteSequence(testBase, []any{0xDE, 173.0, uint8(0xBE), -17}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if next != testBase+4 {
		t.Fatalf("expected %s - got %s", testBase+4, next)
	}
	if got := blob.Data(testBase)[:4]; !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("expected deadbeef - got %x", got)
	}

	if _, err := acc.WriteByteSequence(testBase, []any{1, "??"}, nil); !errors.Is(err, process.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument - got %v", err)
	}
}

func TestParseKindAndValue(t *testing.T) {
	k, err := ParseKind("Float")
	if err != nil || k != Float32 {
		t.Fatalf("expected float32 - got %s (%v)", k, err)
	}
	if _, err := ParseKind("int128"); !errors.Is(err, process.ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType - got %v", err)
	}

	v, err := ParseValue(Int16, "-0x10")
	if err != nil || v.Int() != -16 {
		t.Fatalf("expected -16 - got %s (%v)", v, err)
	}
	if _, err := ParseValue(Uint8, "256"); !errors.Is(err, process.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument - got %v", err)
	}

	offsets, err := ParseOffsets("0x10, -0x8,4")
	if err != nil {
		t.Fatal(err)
	}
	if len(offsets) != 3 || offsets[0] != 0x10 || offsets[1] != -8 || offsets[2] != 4 {
		t.Fatalf("expected [16 -8 4] - got %v", offsets)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf[int8]() != Int8 || KindOf[uint64]() != Uint64 || KindOf[float32]() != Float32 {
		t.Fatal("unexpected kind mapping")
	}
	type handle uint32
	if KindOf[handle]() != Uint32 {
		t.Fatal("expected named types to map by their underlying kind")
	}
}
