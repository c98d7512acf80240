package main

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// disassemble decodes up to n instructions from code, which was read at addr.
func disassemble(code []byte, addr uint64, bits int, syntax string, n int) ([]string, error) {
	var format func(inst x86asm.Inst, pc uint64) string
	switch syntax {
	case "intel", "":
		format = func(inst x86asm.Inst, pc uint64) string {
			return x86asm.IntelSyntax(inst, pc, nil)
		}
	case "gnu", "att":
		format = func(inst x86asm.Inst, pc uint64) string {
			return x86asm.GNUSyntax(inst, pc, nil)
		}
	case "go":
		format = func(inst x86asm.Inst, pc uint64) string {
			return x86asm.GoSyntax(inst, pc, nil)
		}
	default:
		return nil, fmt.Errorf("unsupported syntax type for x86: %q", syntax)
	}

	var lines []string
	for off := 0; len(lines) < n && off < len(code); {
		inst, err := x86asm.Decode(code[off:], bits)
		if err != nil {
			return lines, fmt.Errorf("at %#x: %w", addr+uint64(off), err)
		}

		pc := addr + uint64(off)
		hex := make([]string, inst.Len)
		for i, b := range code[off : off+inst.Len] {
			hex[i] = fmt.Sprintf("%02x", b)
		}
		lines = append(lines, fmt.Sprintf("%x:  %-30s %s", pc, strings.Join(hex, " "), format(inst, pc)))
		off += inst.Len
	}
	return lines, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
}
