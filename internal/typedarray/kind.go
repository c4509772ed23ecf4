package typedarray

import "fmt"

// Kind tags the element type a TypedArray's buffer is interpreted as.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindChar
	KindBytes // opaque byte buffer, element size 1
)

var kindNames = map[Kind]string{
	KindNone:  "none",
	KindBool:  "bool",
	KindI8:    "i8",
	KindU8:    "u8",
	KindI16:   "i16",
	KindU16:   "u16",
	KindI32:   "i32",
	KindU32:   "u32",
	KindI64:   "i64",
	KindU64:   "u64",
	KindF32:   "f32",
	KindF64:   "f64",
	KindChar:  "char",
	KindBytes: "bytes",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// elemSizes gives the byte width of a single element of each kind.
var elemSizes = map[Kind]int{
	KindBool:  1,
	KindI8:    1,
	KindU8:    1,
	KindI16:   2,
	KindU16:   2,
	KindI32:   4,
	KindU32:   4,
	KindI64:   8,
	KindU64:   8,
	KindF32:   4,
	KindF64:   8,
	KindChar:  1,
	KindBytes: 1,
}

// ElemSize returns the byte width of one element of kind k, or 0 if k is
// not a constructible type (KindNone or unknown).
func ElemSize(k Kind) int {
	return elemSizes[k]
}

// externalTypeNames is the string-configuration grammar's type vocabulary:
// {none, bool, char, byte, ubyte, short, ushort, int, uint, long, ulong,
// float, double, object}.
var externalTypeNames = map[string]Kind{
	"none":   KindNone,
	"bool":   KindBool,
	"char":   KindChar,
	"byte":   KindI8,
	"ubyte":  KindU8,
	"short":  KindI16,
	"ushort": KindU16,
	"int":    KindI32,
	"uint":   KindU32,
	"long":   KindI64,
	"ulong":  KindU64,
	"float":  KindF32,
	"double": KindF64,
	"object": KindBytes,
}

// KindFromString maps an external type name to a Kind. It fails for any
// name outside the grammar's vocabulary ("unknown type name").
func KindFromString(s string) (Kind, error) {
	k, ok := externalTypeNames[s]
	if !ok {
		return KindNone, fmt.Errorf("typedarray: unknown type name %q", s)
	}
	return k, nil
}
