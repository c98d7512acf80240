package main

import (
	"strings"
	"testing"
)

func TestDisassemble(t *testing.T) {
	code := []byte{0x55, 0x48, 0x89, 0xE5, 0xC3, 0xCC}

	lines, err := disassemble(code, 0x401000, 64, "intel", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 instructions - got %v", lines)
	}

	for i, want := range []string{"push", "mov", "ret"} {
		if !strings.Contains(strings.ToLower(lines[i]), want) {
			t.Fatalf("line %d: expected %s - got %q", i, want, lines[i])
		}
	}
	if !strings.HasPrefix(lines[1], "401001:") {
		t.Fatalf("expected second instruction at 401001 - got %q", lines[1])
	}

	if _, err := disassemble(code, 0, 64, "masm", 1); err == nil {
		t.Fatalf("expected an unsupported syntax error")
	}
}

func TestParseBounds(t *testing.T) {
	start, end, err := parseBounds("0x1000", "", 0x7FFFFFFF)
	if err != nil {
		t.Fatal(err)
	}
	if start != 0x1000 || end != 0x7FFFFFFF {
		t.Fatalf("expected 0x1000-0x7FFFFFFF - got %s-%s", start, end)
	}

	if _, _, err := parseBounds("0x2000", "0x1000", 0x7FFFFFFF); err == nil {
		t.Fatalf("expected an error for end below start")
	}
}
