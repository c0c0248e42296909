package vmie

import "math"

// Type tags a Val per spec.md §4.7.
type Type int32

const (
	TypeNil Type = iota
	TypeInt
	TypeFloat
	TypeStr
	TypeArr
	TypeMap
	TypeI32Arr
	TypeF32Arr
	TypeMie
)

func (t Type) String() string {
	switch t {
	case TypeNil:
		return "NIL"
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeStr:
		return "STR"
	case TypeArr:
		return "ARR"
	case TypeMap:
		return "MAP"
	case TypeI32Arr:
		return "I32ARR"
	case TypeF32Arr:
		return "F32ARR"
	case TypeMie:
		return "MIE"
	default:
		return "UNKNOWN"
	}
}

// Val is the VM's 32-bit tagged value: a type tag plus a 32-bit payload
// that is either an integer or the bit pattern of a float (spec.md §4.7).
// Bitwise ops (I+, F+, ...) operate on Bits without consulting Type; typed
// ops (drop, pick, typeof, cast) preserve it.
type Val struct {
	Type Type
	Bits int32
}

// Int returns a tagged integer value.
func Int(i int32) Val { return Val{Type: TypeInt, Bits: i} }

// Float returns a tagged float value.
func Float(f float32) Val { return Val{Type: TypeFloat, Bits: int32(math.Float32bits(f))} }

// Handle returns a tagged handle into the value store (ARR/MAP/I32ARR/F32ARR).
func Handle(t Type, h int32) Val { return Val{Type: t, Bits: h} }

// I32 reinterprets Bits as a plain int32, ignoring Type.
func (v Val) I32() int32 { return v.Bits }

// F32 reinterprets Bits as a plain float32, ignoring Type.
func (v Val) F32() float32 { return math.Float32frombits(uint32(v.Bits)) }
