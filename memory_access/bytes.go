package memory_access

import (
	"fmt"

	"procmem/pattern"
	"procmem/process"
)

// WriteHex writes the bytes of a hex spec such as "90 90 C3". Wildcards are rejected.
func (a *Accessor) WriteHex(addr process.ProcessMemoryAddress, spec string, offsets []int64) (process.ProcessMemoryAddress, error) {
	needle, err := pattern.NeedleFromHexString(spec)
	if err != nil {
		return 0, a.done(err)
	}
	return a.WriteRaw(addr, needle, offsets)
}

// WriteByteSequence writes explicit byte values. Every entry must be numeric.
func (a *Accessor) WriteByteSequence(addr process.ProcessMemoryAddress, values []any, offsets []int64) (process.ProcessMemoryAddress, error) {
	if len(values) == 0 {
		return 0, a.done(fmt.Errorf("%w: %w", pattern.ErrEmpty, process.ErrInvalidArgument))
	}

	buf := make([]byte, len(values))
	for i, v := range values {
		b, ok := pattern.ToByte(v)
		if !ok {
			return 0, a.done(fmt.Errorf("entry %d (%v) is not a number: %w", i, v, process.ErrInvalidArgument))
		}
		buf[i] = b
	}
	return a.WriteRaw(addr, buf, offsets)
}
