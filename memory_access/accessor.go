// Package memory_access reads and writes typed values, raw bytes and strings in a
// target, resolving pointer chains on the way.
//
// Every address-taking method accepts an offset chain. N offsets perform N-1
// pointer dereferences and one flat addition:
//
//	cur := base
//	for _, off := range offsets[:n-1] { cur = *(cur + off) }
//	final := cur + offsets[n-1]
//
// A nil or empty chain addresses base itself.
package memory_access

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procmem/process"
)

var errNullPointer = errors.New("null pointer")

// Accessor is the MemoryAccessor of one target session.
type Accessor struct {
	proc process.Process
	cfg  Config
	log  *logger.Logger

	lastTransferred atomic.Int64
	lastErr         atomic.Pointer[error]
}

// New binds an Accessor to proc. Options are applied over DefaultConfig.
func New(proc process.Process, options ...Option) *Accessor {
	cfg := DefaultConfig()
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.StringChunkSize <= 0 {
		cfg.StringChunkSize = DefaultConfig().StringChunkSize
	}
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = DefaultConfig().MaxStringLength
	}

	return &Accessor{
		proc: proc,
		cfg:  cfg,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("memory-%d", proc.GetPID()))),
	}
}

func (a *Accessor) Process() process.Process {
	return a.proc
}

// Config returns a copy of the session configuration.
func (a *Accessor) Config() Config {
	return a.cfg
}

// LastTransferred returns the byte count of the most recent low-level read or write.
func (a *Accessor) LastTransferred() int {
	return int(a.lastTransferred.Load())
}

// LastError returns the error of the most recent operation, or nil if it succeeded.
func (a *Accessor) LastError() error {
	p := a.lastErr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// done records the outcome of a public operation.
func (a *Accessor) done(err error) error {
	if err == nil {
		a.lastErr.Store(nil)
		return nil
	}
	a.lastErr.Store(&err)
	return err
}

func (a *Accessor) read(addr process.ProcessMemoryAddress, n int) ([]byte, error) {
	data, err := a.proc.ReadMemory(addr, process.ProcessMemorySize(n))
	a.lastTransferred.Store(int64(len(data)))
	if err != nil {
		return nil, err
	}
	if len(data) < n {
		return nil, process.NewOSError("read", addr, uint64(n), process.ErrReadFailed, fmt.Errorf("partial read of %d bytes", len(data)))
	}
	return data, nil
}

func (a *Accessor) write(addr process.ProcessMemoryAddress, data []byte) error {
	n, err := a.proc.WriteMemory(addr, data)
	a.lastTransferred.Store(int64(n))
	if err != nil {
		return err
	}
	if n < len(data) {
		return process.NewOSError("write", addr, uint64(len(data)), process.ErrWriteFailed, fmt.Errorf("partial write of %d bytes", n))
	}
	return nil
}

func (a *Accessor) readPointer(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	size := a.proc.PointerSize()
	data, err := a.read(addr, size)
	if err != nil {
		return 0, err
	}
	if size == 4 {
		return process.ProcessMemoryAddress(binary.LittleEndian.Uint32(data)), nil
	}
	return process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data)), nil
}

func (a *Accessor) resolve(base process.ProcessMemoryAddress, offsets []int64) (process.ProcessMemoryAddress, error) {
	if len(offsets) == 0 {
		return base, nil
	}

	cur := base
	for i, off := range offsets[:len(offsets)-1] {
		ptrAddr := cur.Offset(off)
		ptr, err := a.readPointer(ptrAddr)
		if err != nil {
			return 0, fmt.Errorf("pointer chain hop %d at %s: %w", i, ptrAddr, err)
		}
		if ptr == 0 {
			return 0, process.NewOSError("pointer chain", ptrAddr, uint64(a.proc.PointerSize()), process.ErrReadFailed, fmt.Errorf("hop %d: %w", i, errNullPointer))
		}
		cur = ptr
	}
	return cur.Offset(offsets[len(offsets)-1]), nil
}

// ResolvePointerChain follows offsets from base and returns the final address.
func (a *Accessor) ResolvePointerChain(base process.ProcessMemoryAddress, offsets []int64) (process.ProcessMemoryAddress, error) {
	addr, err := a.resolve(base, offsets)
	return addr, a.done(err)
}

// ReadPointer reads one pointer-sized value of the target's width.
func (a *Accessor) ReadPointer(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	ptr, err := a.readPointer(addr)
	return ptr, a.done(err)
}

// ReadScalar reads one value of kind at the resolved address.
func (a *Accessor) ReadScalar(addr process.ProcessMemoryAddress, kind Kind, offsets []int64) (Value, error) {
	if !kind.Valid() {
		return Value{}, a.done(fmt.Errorf("read %s: %w", kind, process.ErrInvalidType))
	}

	final, err := a.resolve(addr, offsets)
	if err != nil {
		return Value{}, a.done(err)
	}
	data, err := a.read(final, kind.Size())
	if err != nil {
		return Value{}, a.done(err)
	}
	return decodeValue(kind, data), a.done(nil)
}

// WriteScalar writes v at the resolved address and returns the address just past it.
func (a *Accessor) WriteScalar(addr process.ProcessMemoryAddress, v Value, offsets []int64) (process.ProcessMemoryAddress, error) {
	if !v.Kind.Valid() {
		return 0, a.done(fmt.Errorf("write %s: %w", v.Kind, process.ErrInvalidType))
	}
	return a.WriteRaw(addr, v.Bytes(), offsets)
}

// ReadRaw performs one bulk read of n bytes.
func (a *Accessor) ReadRaw(addr process.ProcessMemoryAddress, n int, offsets []int64) ([]byte, error) {
	if n < 0 {
		return nil, a.done(fmt.Errorf("read %d bytes: %w", n, process.ErrInvalidArgument))
	}

	final, err := a.resolve(addr, offsets)
	if err != nil {
		return nil, a.done(err)
	}
	if n == 0 {
		return []byte{}, a.done(nil)
	}
	data, err := a.read(final, n)
	return data, a.done(err)
}

// WriteRaw performs one bulk write and returns the address just past the data.
func (a *Accessor) WriteRaw(addr process.ProcessMemoryAddress, buf []byte, offsets []int64) (process.ProcessMemoryAddress, error) {
	final, err := a.resolve(addr, offsets)
	if err != nil {
		return 0, a.done(err)
	}
	next := final + process.ProcessMemoryAddress(len(buf))
	if len(buf) == 0 {
		return next, a.done(nil)
	}
	if err := a.write(final, buf); err != nil {
		a.log.Debugln("write failed at", final, err)
		return 0, a.done(err)
	}
	return next, a.done(nil)
}
