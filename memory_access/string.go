package memory_access

import (
	"fmt"

	"procmem/process"
	"procmem/process/memory_map"
	"procmem/textcodec"
)

// ReadString reads text encoded with codec. With sizeBytes > 0 exactly that many
// bytes are read and the result stops at the first zero code unit. With
// sizeBytes == 0 the string is read forward in chunks until a zero code unit,
// bounded by Config.MaxStringLength; chunks never cross a page boundary.
func (a *Accessor) ReadString(addr process.ProcessMemoryAddress, sizeBytes int, codec textcodec.Codec, offsets []int64) (string, error) {
	if sizeBytes < 0 {
		return "", a.done(fmt.Errorf("read %d bytes: %w", sizeBytes, process.ErrInvalidArgument))
	}

	final, err := a.resolve(addr, offsets)
	if err != nil {
		return "", a.done(err)
	}

	var raw []byte
	if sizeBytes > 0 {
		raw, err = a.read(final, sizeBytes)
		if err != nil {
			return "", a.done(err)
		}
		if i := codec.TerminatorIndex(raw); i >= 0 {
			raw = raw[:i]
		}
	} else {
		raw, err = a.readTerminated(final, codec)
		if err != nil {
			return "", a.done(err)
		}
	}

	text, err := codec.Decode(raw)
	return text, a.done(err)
}

func (a *Accessor) readTerminated(addr process.ProcessMemoryAddress, codec textcodec.Codec) ([]byte, error) {
	unit := codec.UnitSize()
	chunk := max(a.cfg.StringChunkSize, unit)
	limit := a.cfg.MaxStringLength

	var buf []byte
	checked := 0
	cur := addr
	for len(buf) < limit {
		n := chunk
		if toPage := int(memory_map.PageSize - uint64(cur)%memory_map.PageSize); n > toPage {
			n = toPage
		}
		n = min(n, limit-len(buf))

		data, err := a.read(cur, n)
		if err != nil {
			// The mapping may end inside the chunk; retry up to its end.
			tail := a.readableTail(cur)
			if tail <= 0 || tail >= n {
				return nil, err
			}
			n = tail
			if data, err = a.read(cur, n); err != nil {
				return nil, err
			}
		}
		buf = append(buf, data...)
		cur += process.ProcessMemoryAddress(n)

		// Units are aligned to the start of the string, not to the chunk.
		if i := codec.TerminatorIndex(buf[checked:]); i >= 0 {
			return buf[:checked+i], nil
		}
		checked = len(buf) - len(buf)%unit
	}

	a.log.Debugln("string at", addr, "has no terminator within", limit, "bytes")
	return buf[:len(buf)-len(buf)%unit], nil
}

// readableTail returns the number of readable bytes from addr to the end of its region, or 0.
func (a *Accessor) readableTail(addr process.ProcessMemoryAddress) int {
	r, err := a.proc.QueryRegion(addr)
	if err != nil || !r.IsReadable() || !r.Contains(uint64(addr)) {
		return 0
	}
	return int(min(r.End()-uint64(addr), uint64(a.cfg.MaxStringLength)))
}

// ReadText reads a terminated string with the session encoding.
func (a *Accessor) ReadText(addr process.ProcessMemoryAddress, offsets []int64) (string, error) {
	return a.ReadString(addr, 0, a.cfg.Encoding, offsets)
}

// WriteString encodes text, optionally appends one zero code unit, and writes it in one call.
func (a *Accessor) WriteString(addr process.ProcessMemoryAddress, text string, codec textcodec.Codec, insertNullTerminator bool, offsets []int64) error {
	raw, err := codec.Encode(text)
	if err != nil {
		return a.done(fmt.Errorf("%w: %w", err, process.ErrInvalidArgument))
	}
	if insertNullTerminator {
		raw = append(raw, codec.Terminator()...)
	}
	_, err = a.WriteRaw(addr, raw, offsets)
	return err
}

// WriteText writes text with the session encoding and terminator preference.
func (a *Accessor) WriteText(addr process.ProcessMemoryAddress, text string, offsets []int64) error {
	return a.WriteString(addr, text, a.cfg.Encoding, a.cfg.NullTerminator, offsets)
}
