package plistdiff

import (
	"iter"
	"strconv"
)

// Separator joins the segments of a change path.
const Separator = "."

// children returns an iterator over the (key, value) pairs of a container and
// false for scalars.
func children(v Value) (iter.Seq2[string, Value], bool) {
	switch v := v.(type) {
	case String, Boolean, Data, Date, Integer, Real, UID:
		return nil, false
	case Array:
		return func(yield func(string, Value) bool) {
			for i, child := range v {
				if !yield(strconv.Itoa(i), child) {
					return
				}
			}
		}, true
	case Dictionary:
		return func(yield func(string, Value) bool) {
			for k, child := range v {
				if !yield(k, child) {
					return
				}
			}
		}, true
	}
	panic(unknownVariant(v))
}

// Diff compares left and right and appends every difference to rec. path
// labels the root of both trees and prefixes every recorded path.
//
// Children present on both sides are compared first, then right-only children
// are reported as added and left-only children as removed, each pass in
// ascending key order. A container replaced by a scalar, or the reverse, is a
// single modification of the whole subtree.
//
// Diff panics if either tree holds a value that is not one of this package's
// variants.
func Diff(left, right Value, rec *Recorder, path string) {
	leftChildren, leftIsContainer := children(left)
	rightChildren, rightIsContainer := children(right)

	switch {
	case !leftIsContainer && !rightIsContainer:
		if !Equal(left, right) {
			rec.Modified(path, Clone(left), Clone(right))
		}

	case leftIsContainer != rightIsContainer:
		rec.Modified(path, Clone(left), Clone(right))

	case Equal(left, right):
		// identical subtrees

	default:
		sl := newKeySet(leftChildren)
		sr := newKeySet(rightChildren)

		for l, r := range sl.intersection(sr) {
			Diff(l.value, r.value, rec, path+Separator+l.key)
		}
		for added := range sr.difference(sl) {
			rec.Added(path+Separator+added.key, Clone(added.value))
		}
		for removed := range sl.difference(sr) {
			rec.Removed(path+Separator+removed.key, Clone(removed.value))
		}
	}
}
