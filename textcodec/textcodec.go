// Package textcodec names the text encodings used for strings in target memory.
package textcodec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"procmem/process"
)

// Codec is a text encoding with a fixed code-unit width. A string in memory
// ends at the first code unit that is all zero bytes.
type Codec struct {
	name string
	unit int
	enc  encoding.Encoding
}

var (
	UTF8        = Codec{name: "utf-8", unit: 1, enc: unicode.UTF8}
	UTF16LE     = Codec{name: "utf-16le", unit: 2, enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}
	UTF16BE     = Codec{name: "utf-16be", unit: 2, enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}
	UTF32LE     = Codec{name: "utf-32le", unit: 4, enc: utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)}
	UTF32BE     = Codec{name: "utf-32be", unit: 4, enc: utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)}
	Windows1252 = Codec{name: "windows-1252", unit: 1, enc: charmap.Windows1252}
	Latin1      = Codec{name: "iso-8859-1", unit: 1, enc: charmap.ISO8859_1}
)

var builtin = map[string]Codec{
	"utf8":         UTF8,
	"utf-8":        UTF8,
	"ascii":        UTF8,
	"utf16":        UTF16LE,
	"utf-16":       UTF16LE,
	"utf-16le":     UTF16LE,
	"unicode":      UTF16LE,
	"wide":         UTF16LE,
	"utf-16be":     UTF16BE,
	"utf32":        UTF32LE,
	"utf-32":       UTF32LE,
	"utf-32le":     UTF32LE,
	"utf-32be":     UTF32BE,
	"cp1252":       Windows1252,
	"windows-1252": Windows1252,
	"latin1":       Latin1,
	"iso-8859-1":   Latin1,
}

// Lookup returns the codec for name. Names outside the built-in set are
// resolved through the WHATWG index and treated as byte-oriented.
func Lookup(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := builtin[key]; ok {
		return c, nil
	}

	enc, err := htmlindex.Get(key)
	if err != nil {
		return Codec{}, fmt.Errorf("unknown encoding %q: %w", name, process.ErrInvalidArgument)
	}
	canonical, _ := htmlindex.Name(enc)
	if canonical == "" {
		canonical = key
	}
	return Codec{name: canonical, unit: 1, enc: enc}, nil
}

func (c Codec) Name() string {
	if c.IsZero() {
		return UTF8.name
	}
	return c.name
}

func (c Codec) String() string {
	return c.Name()
}

// IsZero reports whether c is the zero Codec. The zero Codec behaves as UTF8.
func (c Codec) IsZero() bool {
	return c.enc == nil
}

func (c Codec) orDefault() Codec {
	if c.IsZero() {
		return UTF8
	}
	return c
}

// UnitSize is the code-unit width in bytes.
func (c Codec) UnitSize() int {
	return c.orDefault().unit
}

// Terminator returns one all-zero code unit.
func (c Codec) Terminator() []byte {
	return make([]byte, c.UnitSize())
}

// Encode converts text into the codec's byte form, without a terminator.
func (c Codec) Encode(text string) ([]byte, error) {
	c = c.orDefault()
	out, err := c.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return out, nil
}

// Decode converts raw bytes into text. A trailing partial code unit is dropped.
func (c Codec) Decode(raw []byte) (string, error) {
	c = c.orDefault()
	raw = raw[:len(raw)-len(raw)%c.unit]
	out, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	return string(out), nil
}

// TerminatorIndex returns the byte offset of the first aligned all-zero code
// unit in raw, or -1. Zero bytes inside a wider unit do not count.
func (c Codec) TerminatorIndex(raw []byte) int {
	unit := c.UnitSize()
	for i := 0; i+unit <= len(raw); i += unit {
		zero := true
		for _, b := range raw[i : i+unit] {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			return i
		}
	}
	return -1
}
