package plistdiff

import (
	"iter"
	"slices"
	"strings"
)

// keyed pairs a child key with its value. Ordering and equality look at the
// key only, which lets children of two different trees share one ordered set.
type keyed struct {
	key   string
	value Value
}

func (k keyed) compare(other keyed) int {
	return strings.Compare(k.key, other.key)
}

// keySet is a slice of keyed entries sorted by key with no duplicate keys.
type keySet []keyed

// newKeySet collects the given children into a keySet. A later entry with a
// key already present is dropped.
func newKeySet(children iter.Seq2[string, Value]) keySet {
	var set keySet
	for k, v := range children {
		set = append(set, keyed{key: k, value: v})
	}
	slices.SortStableFunc(set, keyed.compare)
	return slices.CompactFunc(set, func(a, b keyed) bool {
		return a.key == b.key
	})
}

// intersection yields, in ascending key order, the entries of s whose key is
// also in other, paired with the matching entry of other.
func (s keySet) intersection(other keySet) iter.Seq2[keyed, keyed] {
	return func(yield func(keyed, keyed) bool) {
		i, j := 0, 0
		for i < len(s) && j < len(other) {
			switch c := s[i].compare(other[j]); {
			case c < 0:
				i++
			case c > 0:
				j++
			default:
				if !yield(s[i], other[j]) {
					return
				}
				i++
				j++
			}
		}
	}
}

// difference yields, in ascending key order, the entries of s whose key is
// not in other.
func (s keySet) difference(other keySet) iter.Seq[keyed] {
	return func(yield func(keyed) bool) {
		j := 0
		for _, entry := range s {
			for j < len(other) && other[j].compare(entry) < 0 {
				j++
			}
			if j < len(other) && other[j].compare(entry) == 0 {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}
