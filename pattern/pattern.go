// Package pattern compiles byte signatures with wildcards and matches them against buffers.
//
// The text form is a sequence of hex pairs, where "??" marks a wildcard byte:
//
//	48 8B 05 ?? ?? ?? ?? 48 85 C0
//	0x48,0x8B,0x05,??,??,??,??
package pattern

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"procmem/process"
	"procmem/textcodec"
)

var (
	ErrEmpty           = errors.New("empty pattern")
	ErrInvalidChar     = errors.New("invalid character")
	ErrOddWildcardRun  = errors.New("unmatched wildcard")
	ErrOddLength       = errors.New("odd number of hex digits")
	ErrWildcardInWrite = errors.New("wildcard not allowed in write data")
	ErrMaskMismatch    = errors.New("needle and mask lengths differ")
	ErrInvalidRange    = errors.New("pattern does not fit in the searched range")
)

// SyntaxError reports where a text pattern went wrong. Pos is the byte offset in the input.
type SyntaxError struct {
	Pos int
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pattern: %v at position %d", e.Err, e.Pos)
}

func (e *SyntaxError) Unwrap() []error {
	return []error{e.Err, process.ErrInvalidArgument}
}

// BytePattern is a needle with a mask; Mask[i] is true where the byte must match.
type BytePattern struct {
	Needle []byte
	Mask   []bool
}

// New builds a pattern from a needle and mask of equal, non-zero length.
func New(needle []byte, mask []bool) (BytePattern, error) {
	if len(needle) == 0 {
		return BytePattern{}, emptyErr()
	}
	if len(needle) != len(mask) {
		return BytePattern{}, fmt.Errorf("%w (%d != %d): %w", ErrMaskMismatch, len(needle), len(mask), process.ErrInvalidArgument)
	}
	return BytePattern{
		Needle: append([]byte(nil), needle...),
		Mask:   append([]bool(nil), mask...),
	}, nil
}

// Exact builds a pattern with no wildcards.
func Exact(needle []byte) (BytePattern, error) {
	mask := make([]bool, len(needle))
	for i := range mask {
		mask[i] = true
	}
	return New(needle, mask)
}

func emptyErr() error {
	return fmt.Errorf("%w: %w", ErrEmpty, process.ErrInvalidArgument)
}

func (p BytePattern) Len() int {
	return len(p.Needle)
}

// HasWildcards reports whether any position is a wildcard.
func (p BytePattern) HasWildcards() bool {
	for _, m := range p.Mask {
		if !m {
			return true
		}
	}
	return false
}

// Validate checks the structural invariant.
func (p BytePattern) Validate() error {
	if len(p.Needle) == 0 {
		return emptyErr()
	}
	if len(p.Needle) != len(p.Mask) {
		return fmt.Errorf("%w: %w", ErrMaskMismatch, process.ErrInvalidArgument)
	}
	return nil
}

// String renders the pattern in canonical form, e.g. "DE AD ?? EF".
func (p BytePattern) String() string {
	var sb strings.Builder
	for i, b := range p.Needle {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i < len(p.Mask) && !p.Mask[i] {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

type token struct {
	ch  byte
	pos int
}

// lex drops separators and 0x prefixes, keeping the input position of every
// remaining character. A prefix is recognized wherever a new byte can start.
func lex(text string) []token {
	tokens := make([]token, 0, len(text))
	digits := 0 // since the last wildcard
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case ' ', '\t', '\n', '\r', ',':
			continue
		case '?':
			digits = 0
		default:
			if c == '0' && digits%2 == 0 && i+1 < len(text) && (text[i+1] == 'x' || text[i+1] == 'X') {
				i++
				continue
			}
			digits++
		}
		tokens = append(tokens, token{ch: c, pos: i})
	}
	return tokens
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// runs splits tokens into maximal runs of wildcards and of hex digits.
func runs(tokens []token) [][]token {
	var out [][]token
	for i := 0; i < len(tokens); {
		j := i + 1
		for j < len(tokens) && (tokens[j].ch == '?') == (tokens[i].ch == '?') {
			j++
		}
		out = append(out, tokens[i:j])
		i = j
	}
	return out
}

// compile returns the pattern plus the input position of each byte.
// Invalid characters and odd wildcard runs are reported before odd hex runs.
func compile(text string) (BytePattern, []int, error) {
	tokens := lex(text)
	if len(tokens) == 0 {
		return BytePattern{}, nil, &SyntaxError{Pos: 0, Err: ErrEmpty}
	}

	groups := runs(tokens)
	for _, run := range groups {
		if run[0].ch == '?' {
			if len(run)%2 != 0 {
				return BytePattern{}, nil, &SyntaxError{Pos: run[len(run)-1].pos, Err: ErrOddWildcardRun}
			}
			continue
		}
		for _, t := range run {
			if _, ok := hexValue(t.ch); !ok {
				return BytePattern{}, nil, &SyntaxError{Pos: t.pos, Err: ErrInvalidChar}
			}
		}
	}

	n := len(tokens) / 2
	p := BytePattern{Needle: make([]byte, 0, n), Mask: make([]bool, 0, n)}
	positions := make([]int, 0, n)

	for _, run := range groups {
		if len(run)%2 != 0 {
			return BytePattern{}, nil, &SyntaxError{Pos: run[len(run)-1].pos, Err: ErrOddLength}
		}
		for i := 0; i < len(run); i += 2 {
			if run[i].ch == '?' {
				p.Needle = append(p.Needle, 0)
				p.Mask = append(p.Mask, false)
			} else {
				h, _ := hexValue(run[i].ch)
				l, _ := hexValue(run[i+1].ch)
				p.Needle = append(p.Needle, h<<4|l)
				p.Mask = append(p.Mask, true)
			}
			positions = append(positions, run[i].pos)
		}
	}

	return p, positions, nil
}

// FromHexString compiles the text form. Errors are *SyntaxError wrapping
// ErrEmpty, ErrInvalidChar, ErrOddWildcardRun or ErrOddLength.
func FromHexString(text string) (BytePattern, error) {
	p, _, err := compile(text)
	return p, err
}

// MustFromHexString is like FromHexString but panics on error.
func MustFromHexString(text string) BytePattern {
	p, err := FromHexString(text)
	if err != nil {
		panic(err)
	}
	return p
}

// NeedleFromHexString compiles text that is going to be written; wildcards are rejected.
func NeedleFromHexString(text string) ([]byte, error) {
	p, positions, err := compile(text)
	if err != nil {
		return nil, err
	}
	for i, m := range p.Mask {
		if !m {
			return nil, &SyntaxError{Pos: positions[i], Err: ErrWildcardInWrite}
		}
	}
	return p.Needle, nil
}

// FromByteSequence builds a pattern from mixed values. Numbers become literal
// bytes (rounded, then masked to 8 bits); anything else becomes a wildcard.
func FromByteSequence(values []any) (BytePattern, error) {
	if len(values) == 0 {
		return BytePattern{}, emptyErr()
	}

	p := BytePattern{Needle: make([]byte, len(values)), Mask: make([]bool, len(values))}
	for i, v := range values {
		b, ok := ToByte(v)
		p.Needle[i] = b
		p.Mask[i] = ok
	}
	return p, nil
}

// ToByte converts a numeric value to its low byte. It returns false for non-numeric values.
func ToByte(v any) (byte, bool) {
	switch n := v.(type) {
	case int:
		return byte(n), true
	case int8:
		return byte(n), true
	case int16:
		return byte(n), true
	case int32:
		return byte(n), true
	case int64:
		return byte(n), true
	case uint:
		return byte(n), true
	case uint8:
		return n, true
	case uint16:
		return byte(n), true
	case uint32:
		return byte(n), true
	case uint64:
		return byte(n), true
	case uintptr:
		return byte(n), true
	case float32:
		return floatByte(float64(n))
	case float64:
		return floatByte(n)
	}
	return 0, false
}

func floatByte(f float64) (byte, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return byte(int64(math.Round(f)) & 0xFF), true
}

// FromText encodes text with codec, optionally followed by one zero code unit.
func FromText(text string, codec textcodec.Codec, includeTerminator bool) (BytePattern, error) {
	if text == "" {
		return BytePattern{}, emptyErr()
	}

	needle, err := codec.Encode(text)
	if err != nil {
		return BytePattern{}, fmt.Errorf("%w: %w", err, process.ErrInvalidArgument)
	}
	if includeTerminator {
		needle = append(needle, codec.Terminator()...)
	}
	return Exact(needle)
}
