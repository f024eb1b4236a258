// Package basic holds the property-value primitives every storage layer
// above the Value Store deals in, adapted from the teacher's
// server/innodb/basic.Value/Row pair to a graph property's payload shape.
package basic

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueType is the one-byte tag the Value Store writes before a value's
// payload bytes (spec.md §4.2).
type ValueType uint8

const (
	TypeNull ValueType = iota
	TypeBool
	TypeInt64
	TypeFloat64
	TypeString
	TypeLabel // label string, stored as raw UTF-8 bytes like TypeString
)

// Value is an immutable property value. It is small enough to pass by
// value the way the teacher's basic.Value interface is usually boxed.
type Value struct {
	Type ValueType
	I    int64
	F    float64
	S    string
}

// Null returns the null value.
func Null() Value { return Value{Type: TypeNull} }

// NewBool wraps a bool.
func NewBool(b bool) Value {
	if b {
		return Value{Type: TypeBool, I: 1}
	}
	return Value{Type: TypeBool, I: 0}
}

// NewInt64 wraps an int64.
func NewInt64(i int64) Value { return Value{Type: TypeInt64, I: i} }

// NewFloat64 wraps a float64.
func NewFloat64(f float64) Value { return Value{Type: TypeFloat64, F: f} }

// NewString wraps a string.
func NewString(s string) Value { return Value{Type: TypeString, S: s} }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// Bool returns v's boolean payload.
func (v Value) Bool() bool { return v.I != 0 }

// String renders v for logging/debugging, not for wire encoding.
func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeBool:
		return fmt.Sprintf("%t", v.Bool())
	case TypeInt64:
		return fmt.Sprintf("%d", v.I)
	case TypeFloat64:
		return fmt.Sprintf("%g", v.F)
	case TypeString, TypeLabel:
		return v.S
	default:
		return "<?>"
	}
}

// Compare orders two values of the same type; used by the Property
// Index's sorted value->id map and by has()'s range predicates.
// Values of differing Type compare by Type only.
func Compare(a, b Value) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	switch a.Type {
	case TypeInt64:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	case TypeFloat64:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		default:
			return 0
		}
	case TypeBool:
		return int(a.I) - int(b.I)
	case TypeString, TypeLabel:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Encode renders v's payload bytes for the Value Store, with v.Type as
// the accompanying one-byte tag (spec.md §4.2). Null carries no payload;
// bool is a single 0/1 byte; int64/float64 are fixed 8-byte big-endian; string/label are
// raw UTF-8 bytes.
func Encode(v Value) (tag byte, payload []byte) {
	switch v.Type {
	case TypeNull:
		return byte(v.Type), nil
	case TypeBool:
		if v.Bool() {
			return byte(v.Type), []byte{1}
		}
		return byte(v.Type), []byte{0}
	case TypeInt64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v.I))
		return byte(v.Type), buf
	case TypeFloat64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.F))
		return byte(v.Type), buf
	case TypeString, TypeLabel:
		return byte(v.Type), []byte(v.S)
	default:
		return byte(TypeNull), nil
	}
}

// Decode is Encode's inverse, used when reading a header back out of the
// Value Store.
func Decode(tag byte, payload []byte) Value {
	switch ValueType(tag) {
	case TypeNull:
		return Null()
	case TypeBool:
		return NewBool(len(payload) > 0 && payload[0] != 0)
	case TypeInt64:
		return NewInt64(int64(binary.BigEndian.Uint64(payload)))
	case TypeFloat64:
		return NewFloat64(math.Float64frombits(binary.BigEndian.Uint64(payload)))
	case TypeString:
		return NewString(string(payload))
	case TypeLabel:
		return Value{Type: TypeLabel, S: string(payload)}
	default:
		return Null()
	}
}

// AsFloat64 coerces numeric values for the math expert's SUM/MEAN;
// returns math.NaN for non-numeric types.
func (v Value) AsFloat64() float64 {
	switch v.Type {
	case TypeInt64:
		return float64(v.I)
	case TypeFloat64:
		return v.F
	default:
		return math.NaN()
	}
}
