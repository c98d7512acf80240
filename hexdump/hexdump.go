// Package hexdump renders memory as colored hex and ASCII columns, with
// highlighted ranges for pattern hits and an optional pointer preview.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Highlight marks Length bytes starting at Offset into the dumped data.
type Highlight struct {
	Offset int
	Length int
}

func (h Highlight) contains(i int) bool {
	return i >= h.Offset && i < h.Offset+h.Length
}

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// GroupSize defines the grouping of bytes (usually 1, 2, 4, or 8)
	GroupSize int

	ShowASCII bool

	// StartAddress is printed for the first byte
	StartAddress uint64

	// OffsetWidth is the width of the address column in hex digits
	OffsetWidth int

	// Plain disables ANSI colors
	Plain bool

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	ZeroColor         coloransi.ColorCode

	Highlights               []Highlight
	HighlightColor           coloransi.ColorCode
	HighlightBackgroundColor coloransi.ColorCode

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// PointerSize and IsPointer enable the pointer preview after the ASCII
	// column: the first aligned value of each line is shown when IsPointer accepts it.
	PointerSize int
	IsPointer   func(uint64) bool
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine:             16,
		GroupSize:                1,
		ShowASCII:                true,
		OffsetWidth:              12,
		OffsetColor:              coloransi.Cyan,
		HexColor:                 coloransi.Green,
		ASCIIColor:               coloransi.White,
		NonPrintableColor:        coloransi.Red,
		ZeroColor:                coloransi.BrightBlack,
		HighlightColor:           coloransi.Yellow,
		HighlightBackgroundColor: coloransi.Black,
		PointerSize:              8,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options HexDumpOptions) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}

	for line, offset := 0, 0; offset < len(data); line, offset = line+1, offset+options.BytesPerLine {
		if options.MaxLines > 0 && line >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			return
		}
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], offset, options)
	}
}

// Context dumps the bytes around a hit of length n at hitAddr, with the hit
// highlighted. data starts at dataAddr.
func Context(data []byte, dataAddr, hitAddr uint64, n int, options HexDumpOptions) string {
	options.StartAddress = dataAddr
	options.Highlights = append(options.Highlights, Highlight{Offset: int(hitAddr - dataAddr), Length: n})
	return Dump(data, options)
}

func (o *HexDumpOptions) paint(fg coloransi.ColorCode, s string) string {
	if o.Plain {
		return s
	}
	return coloransi.Foreground(fg, s)
}

func (o *HexDumpOptions) paintHighlight(s string) string {
	if o.Plain {
		return s
	}
	return coloransi.Color(o.HighlightColor, o.HighlightBackgroundColor, s)
}

func (o *HexDumpOptions) highlighted(i int) bool {
	for _, h := range o.Highlights {
		if h.contains(i) {
			return true
		}
	}
	return false
}

// formatLine writes one line; base is the index of data[0] in the whole dump.
func formatLine(writer io.Writer, data []byte, base int, options HexDumpOptions) {
	addr := fmt.Sprintf("%0*x", options.OffsetWidth, options.StartAddress+uint64(base))
	fmt.Fprint(writer, options.paint(options.OffsetColor, addr), "  ")

	half := options.BytesPerLine / 2
	var hex strings.Builder
	for i := 0; i < options.BytesPerLine; i++ {
		if i > 0 {
			switch {
			case options.BytesPerLine >= 8 && i == half:
				hex.WriteString(" | ")
			case i%options.GroupSize == 0:
				hex.WriteByte(' ')
			}
		}
		if i >= len(data) {
			continue
		}

		b := data[i]
		cell := fmt.Sprintf("%02x", b)
		switch {
		case options.highlighted(base + i):
			cell = options.paintHighlight(cell)
		case b == 0:
			cell = options.paint(options.ZeroColor, cell)
		default:
			cell = options.paint(options.HexColor, cell)
		}
		hex.WriteString(cell)
	}
	fmt.Fprint(writer, hex.String())

	// separators are always written, so short lines only lack their cells
	if missing := options.BytesPerLine - len(data); missing > 0 {
		fmt.Fprint(writer, strings.Repeat(" ", missing*2))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")
		for i, b := range data {
			if options.BytesPerLine >= 8 && i == half {
				fmt.Fprint(writer, " ")
			}
			fmt.Fprint(writer, asciiCell(b, options.highlighted(base+i), &options))
		}
	}

	if options.IsPointer != nil {
		if ptr, ok := firstPointer(data, options.PointerSize); ok && options.IsPointer(ptr) {
			fmt.Fprint(writer, " | ", options.paint(coloransi.Yellow, fmt.Sprintf("0x%x", ptr)))
		}
	}

	fmt.Fprintln(writer)
}

func asciiCell(b byte, highlighted bool, options *HexDumpOptions) string {
	c := rune(b)
	switch {
	case highlighted:
		if !unicode.IsPrint(c) || c > unicode.MaxASCII {
			c = '.'
		}
		return options.paintHighlight(string(c))
	case b == 0:
		return options.paint(options.ZeroColor, ".")
	case c > unicode.MaxASCII || !unicode.IsPrint(c):
		return options.paint(options.NonPrintableColor, ".")
	default:
		return options.paint(options.ASCIIColor, string(c))
	}
}

func firstPointer(data []byte, size int) (uint64, bool) {
	switch {
	case size == 4 && len(data) >= 4:
		return uint64(binary.LittleEndian.Uint32(data)), true
	case size == 8 && len(data) >= 8:
		return binary.LittleEndian.Uint64(data), true
	}
	return 0, false
}

// DumpBytes creates a simple hex dump with default options
func DumpBytes(data []byte) string {
	return Dump(data, DefaultOptions())
}
