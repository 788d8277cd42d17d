package chain

import (
	"bytes"

	"github.com/mynextid/sod-zk/der"
)

// FindSubsequence returns the range of the first exact occurrence of needle
// in haystack. An empty needle is never found.
func FindSubsequence(haystack, needle []byte) (der.Range, bool) {
	if len(needle) == 0 {
		return der.Range{}, false
	}
	i := bytes.Index(haystack, needle)
	if i < 0 {
		return der.Range{}, false
	}
	return der.Range{Start: i, End: i + len(needle)}, true
}
