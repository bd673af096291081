package plistdiff

import (
	"fmt"
	"strconv"
	"time"
)

// Value is one node of a property-list tree.
//
// The set of implementations is closed; only the types of this package satisfy
// it. Code switching over a Value must handle every variant and treat anything
// else as a programming error.
type Value interface {
	isValue()
}

type (
	// String is a plist <string>.
	String string
	// Boolean is a plist <true/> or <false/>.
	Boolean bool
	// Data is an opaque binary blob.
	Data []byte
	// Real is a floating point number.
	Real float64
	// UID is an opaque reference identifier as used by keyed archives.
	UID uint64
	// Array is an ordered sequence; children are keyed by decimal index.
	Array []Value
	// Dictionary is a keyed mapping; key order carries no meaning.
	Dictionary map[string]Value
)

// Date is a plist timestamp.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// Integer holds a plist integer, which may be any value in the union of the
// int64 and uint64 ranges. Non-negative values are always stored unsigned, so
// two Integers are numerically equal exactly when they are == equal.
type Integer struct {
	negative bool
	bits     uint64
}

// Int returns the Integer for v.
func Int(v int64) Integer {
	if v < 0 {
		return Integer{negative: true, bits: uint64(v)}
	}
	return Integer{bits: uint64(v)}
}

// Uint returns the Integer for v.
func Uint(v uint64) Integer {
	return Integer{bits: v}
}

// Int64 returns the value as int64 and whether it fits.
func (i Integer) Int64() (int64, bool) {
	if i.negative {
		return int64(i.bits), true
	}
	if i.bits > 1<<63-1 {
		return 0, false
	}
	return int64(i.bits), true
}

// Uint64 returns the value as uint64 and whether it fits.
func (i Integer) Uint64() (uint64, bool) {
	if i.negative {
		return 0, false
	}
	return i.bits, true
}

// Negative reports whether the value is below zero.
func (i Integer) Negative() bool {
	return i.negative
}

func (i Integer) String() string {
	if i.negative {
		return strconv.FormatInt(int64(i.bits), 10)
	}
	return strconv.FormatUint(i.bits, 10)
}

func (String) isValue()     {}
func (Boolean) isValue()    {}
func (Data) isValue()       {}
func (Date) isValue()       {}
func (Integer) isValue()    {}
func (Real) isValue()       {}
func (UID) isValue()        {}
func (Array) isValue()      {}
func (Dictionary) isValue() {}

// Kind names a Value variant.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindBoolean
	KindData
	KindDate
	KindInteger
	KindReal
	KindUID
	KindArray
	KindDictionary
)

var kindNames = map[Kind]string{
	KindString:     "string",
	KindBoolean:    "boolean",
	KindData:       "data",
	KindDate:       "date",
	KindInteger:    "integer",
	KindReal:       "real",
	KindUID:        "uid",
	KindArray:      "array",
	KindDictionary: "dictionary",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KindOf returns the variant of v.
func KindOf(v Value) Kind {
	switch v.(type) {
	case String:
		return KindString
	case Boolean:
		return KindBoolean
	case Data:
		return KindData
	case Date:
		return KindDate
	case Integer:
		return KindInteger
	case Real:
		return KindReal
	case UID:
		return KindUID
	case Array:
		return KindArray
	case Dictionary:
		return KindDictionary
	}
	panic(unknownVariant(v))
}

// IsContainer reports whether v has children (Array or Dictionary).
func IsContainer(v Value) bool {
	switch KindOf(v) {
	case KindArray, KindDictionary:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of v that shares no memory with it.
func Clone(v Value) Value {
	switch v := v.(type) {
	case String, Boolean, Date, Integer, Real, UID:
		return v
	case Data:
		if v == nil {
			return Data(nil)
		}
		return append(Data(make([]byte, 0, len(v))), v...)
	case Array:
		if v == nil {
			return Array(nil)
		}
		out := make(Array, len(v))
		for i, child := range v {
			out[i] = Clone(child)
		}
		return out
	case Dictionary:
		if v == nil {
			return Dictionary(nil)
		}
		out := make(Dictionary, len(v))
		for k, child := range v {
			out[k] = Clone(child)
		}
		return out
	}
	panic(unknownVariant(v))
}

func unknownVariant(v Value) string {
	return fmt.Sprintf("plistdiff: unrecognized value variant %T", v)
}
