package memory_access

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"procmem/process"
)

// Kind is a fixed-width scalar type.
type Kind uint8

const (
	KindInvalid Kind = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var kindSizes = [...]int{
	KindInvalid: 0,
	Int8:        1,
	Uint8:       1,
	Int16:       2,
	Uint16:      2,
	Int32:       4,
	Uint32:      4,
	Int64:       8,
	Uint64:      8,
	Float32:     4,
	Float64:     8,
}

var kindNames = [...]string{
	KindInvalid: "invalid",
	Int8:        "int8",
	Uint8:       "uint8",
	Int16:       "int16",
	Uint16:      "uint16",
	Int32:       "int32",
	Uint32:      "uint32",
	Int64:       "int64",
	Uint64:      "uint64",
	Float32:     "float32",
	Float64:     "float64",
}

var kindAliases = map[string]Kind{
	"byte":   Uint8,
	"char":   Int8,
	"short":  Int16,
	"ushort": Uint16,
	"int":    Int32,
	"uint":   Uint32,
	"long":   Int64,
	"ulong":  Uint64,
	"float":  Float32,
	"double": Float64,
}

// Valid reports whether k is one of the scalar kinds.
func (k Kind) Valid() bool {
	return k > KindInvalid && int(k) < len(kindSizes)
}

// Size returns the width of k in bytes, or 0 for an invalid kind.
func (k Kind) Size() int {
	if !k.Valid() {
		return 0
	}
	return kindSizes[k]
}

func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

func (k Kind) IsSigned() bool {
	return k == Int8 || k == Int16 || k == Int32 || k == Int64
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a type name such as "int32" or "float" to a Kind.
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if k != int(KindInvalid) && n == key {
			return Kind(k), nil
		}
	}
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return KindInvalid, fmt.Errorf("%q: %w", name, process.ErrInvalidType)
}

// Value is a scalar tagged with its kind. Bits holds the little-endian
// representation zero-extended to 64 bits.
type Value struct {
	Kind Kind
	Bits uint64
}

func IntValue(kind Kind, v int64) Value {
	return Value{Kind: kind, Bits: uint64(v) & kind.mask()}
}

func UintValue(kind Kind, v uint64) Value {
	return Value{Kind: kind, Bits: v & kind.mask()}
}

func FloatValue(kind Kind, v float64) Value {
	if kind == Float32 {
		return Value{Kind: kind, Bits: uint64(math.Float32bits(float32(v)))}
	}
	return Value{Kind: kind, Bits: math.Float64bits(v)}
}

// ParseValue parses text as a literal of kind. Integers accept 0x, 0o and 0b prefixes.
func ParseValue(kind Kind, text string) (Value, error) {
	if !kind.Valid() {
		return Value{}, process.ErrInvalidType
	}

	var err error
	var v Value
	switch {
	case kind.IsFloat():
		var f float64
		f, err = parseFloat(text, kind.Size()*8)
		v = FloatValue(kind, f)
	case kind.IsSigned():
		var i int64
		i, err = parseInt(text, kind.Size()*8)
		v = IntValue(kind, i)
	default:
		var u uint64
		u, err = parseUint(text, kind.Size()*8)
		v = UintValue(kind, u)
	}
	if err != nil {
		return Value{}, fmt.Errorf("parse %s %q: %v: %w", kind, text, err, process.ErrInvalidArgument)
	}
	return v, nil
}

func (k Kind) mask() uint64 {
	if k.Size() >= 8 {
		return math.MaxUint64
	}
	return 1<<(uint(k.Size())*8) - 1
}

// Int returns the value as a signed integer, sign-extending narrow kinds.
func (v Value) Int() int64 {
	switch v.Kind {
	case Int8:
		return int64(int8(v.Bits))
	case Int16:
		return int64(int16(v.Bits))
	case Int32:
		return int64(int32(v.Bits))
	case Float32, Float64:
		return int64(v.Float())
	}
	return int64(v.Bits)
}

func (v Value) Uint() uint64 {
	if v.Kind.IsFloat() {
		return uint64(v.Float())
	}
	return v.Bits
}

func (v Value) Float() float64 {
	switch v.Kind {
	case Float32:
		return float64(math.Float32frombits(uint32(v.Bits)))
	case Float64:
		return math.Float64frombits(v.Bits)
	}
	if v.Kind.IsSigned() {
		return float64(v.Int())
	}
	return float64(v.Bits)
}

// Bytes encodes the value little-endian in Kind.Size() bytes.
func (v Value) Bytes() []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v.Bits)
	return buf[:v.Kind.Size()]
}

func (v Value) String() string {
	switch {
	case !v.Kind.Valid():
		return "<invalid>"
	case v.Kind.IsFloat():
		return fmt.Sprintf("%s(%g)", v.Kind, v.Float())
	case v.Kind.IsSigned():
		return fmt.Sprintf("%s(%d)", v.Kind, v.Int())
	}
	return fmt.Sprintf("%s(%d)", v.Kind, v.Bits)
}

// decodeValue is the inverse of Value.Bytes.
func decodeValue(kind Kind, raw []byte) Value {
	var buf [8]byte
	copy(buf[:], raw[:kind.Size()])
	return Value{Kind: kind, Bits: binary.LittleEndian.Uint64(buf[:])}
}
