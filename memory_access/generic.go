package memory_access

import (
	"reflect"

	"golang.org/x/exp/constraints"

	"procmem/process"
)

// Scalar is the set of Go types that map onto a Kind.
type Scalar interface {
	constraints.Integer | constraints.Float
}

// KindOf returns the Kind matching T's width and signedness.
func KindOf[T Scalar]() Kind {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Int8:
		return Int8
	case reflect.Uint8:
		return Uint8
	case reflect.Int16:
		return Int16
	case reflect.Uint16:
		return Uint16
	case reflect.Int32:
		return Int32
	case reflect.Uint32:
		return Uint32
	case reflect.Int64:
		return Int64
	case reflect.Uint64:
		return Uint64
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Int:
		if reflect.TypeOf(zero).Size() == 8 {
			return Int64
		}
		return Int32
	case reflect.Uint, reflect.Uintptr:
		if reflect.TypeOf(zero).Size() == 8 {
			return Uint64
		}
		return Uint32
	}
	return KindInvalid
}

// ValueOf tags v with its Kind.
func ValueOf[T Scalar](v T) Value {
	kind := KindOf[T]()
	switch {
	case kind.IsFloat():
		return FloatValue(kind, float64(v))
	case kind.IsSigned():
		return IntValue(kind, int64(v))
	}
	return UintValue(kind, uint64(v))
}

// As converts v to T.
func As[T Scalar](v Value) T {
	switch {
	case v.Kind.IsFloat():
		return T(v.Float())
	case v.Kind.IsSigned():
		return T(v.Int())
	}
	return T(v.Bits)
}

// ReadT reads a T at the resolved address.
func ReadT[T Scalar](a *Accessor, addr process.ProcessMemoryAddress, offsets []int64) (T, error) {
	v, err := a.ReadScalar(addr, KindOf[T](), offsets)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v), nil
}

// WriteT writes v at the resolved address and returns the address just past it.
func WriteT[T Scalar](a *Accessor, addr process.ProcessMemoryAddress, v T, offsets []int64) (process.ProcessMemoryAddress, error) {
	return a.WriteScalar(addr, ValueOf(v), offsets)
}
