package pileup

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/circov/circular"
	"github.com/grailbio/circov/encoding/bamprovider"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/circov/interval"
	"github.com/grailbio/hts/sam"
)

// Native computes depth and coverage directly from BAM records.  It reuses
// one bamprovider.Provider per BAM path.
type Native struct {
	// FlagExclude is the set of flags that causes a read to be skipped by
	// Depth and Coverage.  Zero means DefaultFlagExclude.
	FlagExclude sam.Flags

	providers bamprovider.Set
}

// NewNative creates a Native source with the default read filter.
func NewNative() *Native {
	return &Native{FlagExclude: DefaultFlagExclude}
}

func (n *Native) provider(path string) *bamprovider.Provider {
	return n.providers.Get(path)
}

func (n *Native) exclude() sam.Flags {
	if n.FlagExclude == 0 {
		return DefaultFlagExclude
	}
	return n.FlagExclude
}

// Close releases every open BAM provider.
func (n *Native) Close() error {
	return n.providers.Close()
}

// isDepthOp reports whether a CIGAR op contributes read depth.  Deletions and
// reference skips consume the reference but carry no base.
func isDepthOp(t sam.CigarOpType) bool {
	return t == sam.CigarMatch || t == sam.CigarEqual || t == sam.CigarMismatch
}

// pileRead adds the aligned bases of r to diff, a difference array over the
// 0-based half-open range [start, start+len(diff)-1).  It returns the number
// of aligned bases in range and the sum of their base qualities.
func pileRead(r *sam.Record, start int, diff []int32) (nBases, qualSum int) {
	limit := start + len(diff) - 1
	refPos, readPos := r.Pos, 0
	for _, co := range r.Cigar {
		t := co.Type()
		l := co.Len()
		consumes := t.Consumes()
		if consumes.Reference > 0 && isDepthOp(t) {
			b, e := refPos, refPos+l
			if b < start {
				b = start
			}
			if e > limit {
				e = limit
			}
			if b < e {
				diff[b-start]++
				diff[e-start]--
				nBases += e - b
				if len(r.Qual) > 0 {
					for i := readPos + (b - refPos); i < readPos+(e-refPos); i++ {
						if i < len(r.Qual) && r.Qual[i] != 0xff {
							qualSum += int(r.Qual[i])
						}
					}
				}
			}
		}
		if consumes.Reference > 0 {
			refPos += l
		}
		if consumes.Query > 0 {
			readPos += l
		}
	}
	return
}

// pile accumulates depth over the 0-based range [start, end) of ref.
type pile struct {
	diff     []int32
	numReads int
	nBases   int
	qualSum  int
	mapqSum  int
}

func (n *Native) pile(ctx context.Context, bamPath, ref string, start, end int) (*pile, error) {
	p := &pile{diff: make([]int32, end-start+1)}
	iter := n.provider(bamPath).NewRegionIterator(ref, start, end)
	exclude := n.exclude()
	for iter.Scan() {
		r := iter.Record()
		if r.Flags&exclude != 0 {
			continue
		}
		nb, qs := pileRead(r, start, p.diff)
		if nb == 0 {
			continue
		}
		p.numReads++
		p.nBases += nb
		p.qualSum += qs
		p.mapqSum += int(r.MapQ)
	}
	if err := iter.Close(); err != nil {
		return nil, errors.E(err, "pileup: read "+bamPath)
	}
	return p, nil
}

// depths converts the difference array into per-position depth.
func (p *pile) depths() []uint32 {
	d := make([]uint32, len(p.diff)-1)
	var cur int32
	for i := range d {
		cur += p.diff[i]
		d[i] = uint32(cur)
	}
	return d
}

// Depth implements Source.
func (n *Native) Depth(ctx context.Context, bamPath string, region interval.Region, fn func(Observation) error) error {
	if err := region.Validate(); err != nil {
		return errors.E(errors.Invalid, err)
	}
	p, err := n.pile(ctx, bamPath, region.Contig, region.Start-1, region.End)
	if err != nil {
		return err
	}
	for i, d := range p.depths() {
		if err := fn(Observation{Contig: region.Contig, Pos: region.Start + i, Depth: int(d)}); err != nil {
			return err
		}
	}
	return nil
}

// Coverage implements Source.
func (n *Native) Coverage(ctx context.Context, bamPath string, c genome.Contig) (CoverageRow, error) {
	row := CoverageRow{RName: c.Name, StartPos: 1, EndPos: c.Length}
	p, err := n.pile(ctx, bamPath, c.Name, 0, c.PaddedLength())
	if err != nil {
		return row, err
	}
	folded := circular.FoldDepth(p.depths(), c.Length)
	var total int
	for _, d := range folded {
		if d > 0 {
			row.CovBases++
		}
		total += int(d)
	}
	row.NumReads = p.numReads
	row.Coverage = 100 * float64(row.CovBases) / float64(c.Length)
	row.MeanDepth = float64(total) / float64(c.Length)
	if p.nBases > 0 {
		row.MeanBaseQ = float64(p.qualSum) / float64(p.nBases)
	}
	if p.numReads > 0 {
		row.MeanMapQ = float64(p.mapqSum) / float64(p.numReads)
	}
	return row, nil
}

// Count implements Source.
func (n *Native) Count(ctx context.Context, bamPath string, require, exclude sam.Flags) (int, error) {
	iter := n.provider(bamPath).NewFileIterator()
	count := 0
	for iter.Scan() {
		f := iter.Record().Flags
		if f&require == require && f&exclude == 0 {
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, errors.E(err, "pileup: count "+bamPath)
	}
	return count, nil
}
