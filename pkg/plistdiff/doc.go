// Package plistdiff computes the structural changes between two property-list
// value trees.
//
// A tree is built from the closed set of [Value] variants: the scalars
// [String], [Boolean], [Data], [Date], [Integer], [Real] and [UID], and the
// containers [Array] and [Dictionary]. [Diff] walks two trees side by side and
// records every [Added], [Removed] and [Modified] key path into a [Recorder]:
//
//	rec := plistdiff.NewRecorder()
//	plistdiff.Diff(before, after, rec, "com.apple.dock")
//	for _, c := range rec.Changes() {
//		fmt.Println(c)
//	}
//
// Paths are dot-joined. Array elements are addressed by their decimal index,
// so an insertion in the middle of an array is reported position by position.
package plistdiff
