package typedarray

import (
	"encoding/binary"
	"fmt"
	"math"
)

// matchesGoType reports whether a Go value of type T is a legal in-memory
// representation for kind k. It backs the "read with wrong type throws"
// contract.
func matchesGoType[T any](k Kind) bool {
	var zero T
	switch any(zero).(type) {
	case bool:
		return k == KindBool
	case int8:
		return k == KindI8
	case uint8:
		return k == KindU8 || k == KindChar || k == KindBytes
	case int16:
		return k == KindI16
	case uint16:
		return k == KindU16
	case int32:
		return k == KindI32
	case uint32:
		return k == KindU32
	case int64:
		return k == KindI64
	case uint64:
		return k == KindU64
	case float32:
		return k == KindF32
	case float64:
		return k == KindF64
	default:
		return false
	}
}

// EncodeScalar returns the little-endian byte representation of v.
func EncodeScalar[T any](v T) []byte {
	switch x := any(v).(type) {
	case bool:
		if x {
			return []byte{1}
		}
		return []byte{0}
	case int8:
		return []byte{byte(x)}
	case uint8:
		return []byte{x}
	case int16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(x))
		return b
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, x)
		return b
	case int32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(x))
		return b
	case uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, x)
		return b
	case int64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(x))
		return b
	case uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, x)
		return b
	case float32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(x))
		return b
	case float64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
		return b
	default:
		panic(fmt.Sprintf("typedarray: unsupported scalar type %T", v))
	}
}

// DecodeScalar decodes b (little-endian) into a T.
func DecodeScalar[T any](b []byte) T {
	var zero T
	switch any(zero).(type) {
	case bool:
		return any(b[0] != 0).(T)
	case int8:
		return any(int8(b[0])).(T)
	case uint8:
		return any(b[0]).(T)
	case int16:
		return any(int16(binary.LittleEndian.Uint16(b))).(T)
	case uint16:
		return any(binary.LittleEndian.Uint16(b)).(T)
	case int32:
		return any(int32(binary.LittleEndian.Uint32(b))).(T)
	case uint32:
		return any(binary.LittleEndian.Uint32(b)).(T)
	case int64:
		return any(int64(binary.LittleEndian.Uint64(b))).(T)
	case uint64:
		return any(binary.LittleEndian.Uint64(b)).(T)
	case float32:
		return any(math.Float32frombits(binary.LittleEndian.Uint32(b))).(T)
	case float64:
		return any(math.Float64frombits(binary.LittleEndian.Uint64(b))).(T)
	default:
		panic(fmt.Sprintf("typedarray: unsupported scalar type %T", zero))
	}
}

// ReadScalar reads element idx as a T, failing if T's representation
// doesn't match the array's kind (a type mismatch) or idx
// is out of bounds.
func ReadScalar[T any](a *TypedArray, idx int) (T, error) {
	var zero T
	if !matchesGoType[T](a.kind) {
		return zero, fmt.Errorf("typedarray: type mismatch reading %T from array of kind %s", zero, a.kind)
	}
	raw, err := a.At(idx)
	if err != nil {
		return zero, err
	}
	return DecodeScalar[T](raw), nil
}

// WriteScalarBytes returns the little-endian bytes of v, the same as
// EncodeScalar. It performs no kind check; a caller writing into a typed
// array checks MatchesGoType itself.
func WriteScalarBytes[T any](v T) []byte {
	return EncodeScalar(v)
}

// MatchesGoType exports matchesGoType for use by the channel package.
func MatchesGoType[T any](k Kind) bool {
	return matchesGoType[T](k)
}
