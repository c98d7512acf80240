package scan

import (
	"context"

	"procmem/memory_access"
	"procmem/pattern"
	"procmem/process"
	"procmem/textcodec"
)

// ProcessValue returns every address in the user address space holding v in
// its little-endian encoding.
func (s *Scanner) ProcessValue(ctx context.Context, v memory_access.Value) ([]process.ProcessMemoryAddress, error) {
	if !v.Kind.Valid() {
		return nil, process.ErrInvalidType
	}
	p, err := pattern.Exact(v.Bytes())
	if err != nil {
		return nil, err
	}
	return s.ProcessAll(ctx, 0, s.proc.MaxAddress(), p)
}

// ProcessText returns every address in the user address space holding text in
// the given encoding. No terminator is required after the match.
func (s *Scanner) ProcessText(ctx context.Context, text string, codec textcodec.Codec) ([]process.ProcessMemoryAddress, error) {
	p, err := pattern.FromText(text, codec, false)
	if err != nil {
		return nil, err
	}
	return s.ProcessAll(ctx, 0, s.proc.MaxAddress(), p)
}
