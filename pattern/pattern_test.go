package pattern

import (
	"bytes"
	"errors"
	"testing"

	"procmem/process"
	"procmem/textcodec"
)

func TestFromHexString(t *testing.T) {
	p, err := FromHexString("DE AD ?? EF")
	if err != nil {
		t.Fatal(err)
	}

	expNeedle := []byte{0xDE, 0xAD, 0x00, 0xEF}
	expMask := []bool{true, true, false, true}
	if !bytes.Equal(p.Needle, expNeedle) {
		t.Fatalf("expected 0x%x - got 0x%x", expNeedle, p.Needle)
	}
	for i := range expMask {
		if p.Mask[i] != expMask[i] {
			t.Fatalf("expected mask %v - got %v", expMask, p.Mask)
		}
	}
	if p.String() != "DE AD ?? EF" {
		t.Fatalf("expected canonical form - got %q", p.String())
	}

	p, err = FromHexString("0xDE0xAD")
	if err != nil || p.String() != "DE AD" {
		t.Fatalf("expected DE AD - got %s (%v)", p, err)
	}
}

func TestFromHexStringSeparatorsAndPrefixes(t *testing.T) {
	tests := []string{
		"0xDE,0xAD,??,0xEF",
		"dead??ef",
		"0XDE 0Xad\t??\n EF",
		"DE, AD, ??, EF",
		"0xDE0xAD??0xEF",
		"0xDEAD ?? 0xef",
	}

	for _, text := range tests {
		p, err := FromHexString(text)
		if err != nil {
			t.Fatalf("%q: %v", text, err)
		}
		if p.String() != "DE AD ?? EF" {
			t.Fatalf("%q: expected DE AD ?? EF - got %s", text, p)
		}
	}
}

func TestFromHexStringErrors(t *testing.T) {
	tests := []struct {
		text string
		err  error
		pos  int
	}{
		{"", ErrEmpty, 0},
		{" , 0x ", ErrEmpty, 0},
		{"DEA", ErrOddLength, 2},
		{"DE ?", ErrOddWildcardRun, 3},
		{"DE ?A", ErrOddWildcardRun, 3},
		{"DE A?", ErrOddWildcardRun, 4},
		{"DE AG", ErrInvalidChar, 4},
		{"D??E", ErrOddLength, 0},
		{"DEA??", ErrOddLength, 2},
		{"DE ??? EF", ErrOddWildcardRun, 5},
		{"?? G", ErrInvalidChar, 3},
		{"DE 00xAD", ErrInvalidChar, 5},
	}

	for _, tt := range tests {
		_, err := FromHexString(tt.text)
		if !errors.Is(err, tt.err) {
			t.Fatalf("%q: expected %v - got %v", tt.text, tt.err, err)
		}
		if !errors.Is(err, process.ErrInvalidArgument) {
			t.Fatalf("%q: expected ErrInvalidArgument in chain - got %v", tt.text, err)
		}

		var synErr *SyntaxError
		if !errors.As(err, &synErr) {
			t.Fatalf("%q: expected *SyntaxError - got %T", tt.text, err)
		}
		if synErr.Pos != tt.pos {
			t.Fatalf("%q: expected position %d - got %d", tt.text, tt.pos, synErr.Pos)
		}
	}
}

func TestNeedleFromHexString(t *testing.T) {
	needle, err := NeedleFromHexString("90 90 C3")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(needle, []byte{0x90, 0x90, 0xC3}) {
		t.Fatalf("expected 9090c3 - got %x", needle)
	}

	_, err = NeedleFromHexString("90 ?? C3")
	if !errors.Is(err, ErrWildcardInWrite) {
		t.Fatalf("expected ErrWildcardInWrite - got %v", err)
	}
	var synErr *SyntaxError
	if !errors.As(err, &synErr) || synErr.Pos != 3 {
		t.Fatalf("expected position 3 - got %v", err)
	}
}

func TestFromByteSequence(t *testing.T) {
	p, err := FromByteSequence([]any{0xDE, 173.4, "?", nil, -1, uint16(0x1EF), 2.5})
	if err != nil {
		t.Fatal(err)
	}

	expNeedle := []byte{0xDE, 0xAD, 0x00, 0x00, 0xFF, 0xEF, 0x03}
	expMask := []bool{true, true, false, false, true, true, true}
	if !bytes.Equal(p.Needle, expNeedle) {
		t.Fatalf("expected 0x%x - got 0x%x", expNeedle, p.Needle)
	}
	for i := range expMask {
		if p.Mask[i] != expMask[i] {
			t.Fatalf("expected mask %v - got %v", expMask, p.Mask)
		}
	}

	_, err = FromByteSequence(nil)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty - got %v", err)
	}
}

func TestFromText(t *testing.T) {
	p, err := FromText("ab", textcodec.UTF16LE, true)
	if err != nil {
		t.Fatal(err)
	}
	exp := []byte{'a', 0, 'b', 0, 0, 0}
	if !bytes.Equal(p.Needle, exp) || p.HasWildcards() {
		t.Fatalf("expected %x without wildcards - got %s", exp, p)
	}

	_, err = FromText("", textcodec.UTF8, false)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty - got %v", err)
	}
}

func TestMatchAtFindsInsertedPattern(t *testing.T) {
	p := MustFromHexString("DE AD ?? EF")
	for _, k := range []int{0, 1, 7, 60} {
		haystack := make([]byte, 64)
		copy(haystack[k:], []byte{0xDE, 0xAD, 0x42, 0xEF})

		got, err := MatchAt(haystack, p, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got != k {
			t.Fatalf("expected %d - got %d", k, got)
		}
	}
}

func TestMatchAtReturnsLowestOffset(t *testing.T) {
	haystack := []byte{0xDE, 0xDE, 0xAD, 0x00, 0xEF, 0xDE, 0xAD, 0x01, 0xEF}
	p := MustFromHexString("DE AD ?? EF")

	got, err := MatchAt(haystack, p, 0)
	if err != nil || got != 1 {
		t.Fatalf("expected 1 - got %d (%v)", got, err)
	}

	got, err = MatchAt(haystack, p, 2)
	if err != nil || got != 5 {
		t.Fatalf("expected 5 - got %d (%v)", got, err)
	}

	hits := MatchAll(haystack, p)
	if len(hits) != 2 || hits[0] != 1 || hits[1] != 5 {
		t.Fatalf("expected [1 5] - got %v", hits)
	}
}

func TestMatchAtNotFound(t *testing.T) {
	haystack := bytes.Repeat([]byte{0xDE, 0xAD}, 32)
	got, err := MatchAt(haystack, MustFromHexString("DE AD BE EF"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != -1 {
		t.Fatalf("expected -1 - got %d", got)
	}
}

func TestMatchAtInvalidRange(t *testing.T) {
	haystack := make([]byte, 8)
	p := MustFromHexString("00 00 00 00")

	if _, err := MatchAt(haystack, p, 5); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange - got %v", err)
	}
	if _, err := MatchAt(haystack, p, -1); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange - got %v", err)
	}
	if got, err := MatchAt(haystack, p, 4); err != nil || got != 4 {
		t.Fatalf("expected 4 - got %d (%v)", got, err)
	}
}

func TestMatchAtAllWildcards(t *testing.T) {
	p := MustFromHexString("?? ?? ??")
	for _, n := range []int{3, 4, 100} {
		got, err := MatchAt(make([]byte, n), p, 0)
		if err != nil || got != 0 {
			t.Fatalf("len %d: expected 0 - got %d (%v)", n, got, err)
		}
	}
}

func TestMatchAtLeadingWildcard(t *testing.T) {
	haystack := []byte{0x11, 0xAA, 0x22, 0xBB, 0x33, 0xAA, 0x44, 0xCC}
	p := MustFromHexString("?? AA ?? CC")

	got, err := MatchAt(haystack, p, 0)
	if err != nil || got != 4 {
		t.Fatalf("expected 4 - got %d (%v)", got, err)
	}
}
