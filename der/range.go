package der

import "fmt"

// Range is a half-open [Start, End) window into a backing buffer. It never
// owns bytes; it is only meaningful together with the buffer it indexes.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Bytes returns the bytes of buf covered by the range. The returned slice
// aliases buf and is capped so appends cannot write into the backing buffer.
func (r Range) Bytes(buf []byte) []byte {
	return buf[r.Start:r.End:r.End]
}

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return o.Start >= r.Start && o.End <= r.End
}

// Shift moves the range by delta bytes, e.g. to express a range relative to
// an enclosing structure.
func (r Range) Shift(delta int) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}
