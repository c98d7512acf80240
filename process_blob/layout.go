package process_blob

import (
	"encoding/binary"

	"procmem/process"
)

// PutPointer stores a pointer of the target's width at addr.
func (p *ProcessBlob) PutPointer(addr, value process.ProcessMemoryAddress) error {
	buf := make([]byte, p.PointerSize())
	if len(buf) == 4 {
		binary.LittleEndian.PutUint32(buf, uint32(value))
	} else {
		binary.LittleEndian.PutUint64(buf, uint64(value))
	}
	_, err := p.WriteMemory(addr, buf)
	return err
}

// PointerChain lays out a chain that resolves from base through offsets to target.
// hops[i] is the address of the i-th intermediate object; len(hops) must be len(offsets)-1.
func (p *ProcessBlob) PointerChain(base process.ProcessMemoryAddress, offsets []int64, hops []process.ProcessMemoryAddress) error {
	cur := base
	for i := 0; i < len(offsets)-1; i++ {
		if err := p.PutPointer(cur.Offset(offsets[i]), hops[i]); err != nil {
			return err
		}
		cur = hops[i]
	}
	return nil
}
