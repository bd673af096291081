package plistdiff

import (
	"bytes"
	"math"
)

// Equal reports whether a and b are structurally identical.
//
// Scalars of different variants are never equal (Integer 1 differs from
// Real 1). Data compares byte-wise, Date compares the instant regardless of
// location, and Real compares bit patterns so that NaN equals itself.
func Equal(a, b Value) bool {
	switch va := a.(type) {
	case String:
		vb, ok := b.(String)
		return ok && va == vb
	case Boolean:
		vb, ok := b.(Boolean)
		return ok && va == vb
	case Data:
		vb, ok := b.(Data)
		return ok && bytes.Equal(va, vb)
	case Date:
		vb, ok := b.(Date)
		return ok && va.Equal(vb.Time)
	case Integer:
		vb, ok := b.(Integer)
		return ok && va == vb
	case Real:
		vb, ok := b.(Real)
		return ok && math.Float64bits(float64(va)) == math.Float64bits(float64(vb))
	case UID:
		vb, ok := b.(UID)
		return ok && va == vb
	case Array:
		vb, ok := b.(Array)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	case Dictionary:
		vb, ok := b.(Dictionary)
		if !ok || len(va) != len(vb) {
			return false
		}
		for k, childA := range va {
			childB, found := vb[k]
			if !found || !Equal(childA, childB) {
				return false
			}
		}
		return true
	}
	panic(unknownVariant(a))
}
