package circular

// Markers are the lowercase substrings of a FASTA description that mark the
// record as a circular molecule.
var Markers = []string{
	"circular=true",
	"circ=true",
	"circular=t",
	"circ=t",
	"complete sequence",
}

// PadLength returns the number of bases appended to a circular contig of the
// given length.  Short contigs are padded with a full copy of themselves.
func PadLength(length, padding int) int {
	if padding <= 0 || length <= 0 {
		return 0
	}
	if length < padding {
		return length
	}
	return padding
}

// PaddedLength returns length + PadLength(length, padding).
func PaddedLength(length, padding int) int {
	return length + PadLength(length, padding)
}

// Fold maps a 1-based position in padded space onto 1..length.  The second
// result reports whether pos came from the padded tail.
//
// REQUIRES: pos >= 1, length >= 1.
func Fold(pos, length int) (int, bool) {
	if pos <= length {
		return pos, false
	}
	return (pos-1)%length + 1, true
}

// FoldDepth adds the depth observed in the padded tail of depth (0-based,
// indexed by padded position - 1) onto the first length entries and returns
// that prefix.  depth is modified in place.
func FoldDepth(depth []uint32, length int) []uint32 {
	if len(depth) <= length {
		return depth
	}
	for i := length; i < len(depth); i++ {
		depth[i%length] += depth[i]
	}
	return depth[:length]
}
