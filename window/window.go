// Package window plans which positions of a contig are reported in the
// per-position depth output, and which padded-space regions feed them.
package window

import (
	"fmt"
	"math"

	"github.com/grailbio/circov/interval"
)

// Opts controls window sampling.
type Opts struct {
	// Count is the target number of samples per contig.
	Count int
	// Size, if positive, overrides Count and is used as the sampling divisor
	// directly.
	Size int
}

// DefaultOpts samples roughly 1000 positions per contig.
var DefaultOpts = Opts{Count: 1000}

// Validate checks opts for nonsensical values.
func (o Opts) Validate() error {
	if o.Size < 0 {
		return fmt.Errorf("window: negative window size %d", o.Size)
	}
	if o.Size == 0 && o.Count <= 0 {
		return fmt.Errorf("window: window count must be positive, got %d", o.Count)
	}
	return nil
}

// Divisor returns the sampling step for a contig of the given length:
// round(length/count), rounding halves to even.  A result of 0 means every
// position is a sample.
func Divisor(length, count int) int {
	if count <= 0 {
		return 0
	}
	return int(math.RoundToEven(float64(length) / float64(count)))
}

// Plan describes the regions and sample positions for one contig.  Padding is
// the number of bases appended to the contig before alignment (0 for linear
// contigs).
type Plan struct {
	Contig  string
	Length  int
	Padding int
	Divisor int
}

// New creates the plan for a contig.
func New(contig string, length, padding int, opts Opts) Plan {
	p := Plan{Contig: contig, Length: length, Padding: padding}
	if opts.Size > 0 {
		p.Divisor = opts.Size
	} else {
		p.Divisor = Divisor(length, opts.Count)
	}
	return p
}

// Primary returns 1..Length.
func (p Plan) Primary() interval.Region {
	return interval.Region{Contig: p.Contig, Start: 1, End: p.Length}
}

// Pad returns Length+1..Length+Padding.  The second result is false for
// linear contigs.
func (p Plan) Pad() (interval.Region, bool) {
	if p.Padding <= 0 {
		return interval.Region{}, false
	}
	return interval.Region{Contig: p.Contig, Start: p.Length + 1, End: p.Length + p.Padding}, true
}

// DepthRegion is the single padded-space region whose depth stream serves
// both the primary and pad regions.
func (p Plan) DepthRegion() interval.Region {
	return interval.Region{Contig: p.Contig, Start: 1, End: p.Length + p.Padding}
}

// IsSample reports whether the original-space position pos is reported.
// Position 1, position Length-1, and every multiple of the divisor below
// Length are samples.  Length itself is a sample only for a one-base contig.
func (p Plan) IsSample(pos int) bool {
	if pos < 1 || pos > p.Length {
		return false
	}
	if pos == 1 || pos == p.Length-1 {
		return true
	}
	if pos == p.Length {
		return false
	}
	return p.Divisor <= 0 || pos%p.Divisor == 0
}

// Samples returns the sample positions in ascending order.
func (p Plan) Samples() []int {
	n := p.Length
	if p.Divisor > 1 {
		n = p.Length/p.Divisor + 2
	}
	s := make([]int, 0, n)
	for pos := 1; pos <= p.Length; pos++ {
		if p.IsSample(pos) {
			s = append(s, pos)
		}
	}
	return s
}
