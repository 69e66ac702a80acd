// Package bamtest contains helpers for writing small BAM files in tests.
package bamtest

import (
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
)

// NewHeader creates a header with one reference per (name, length) pair.
func NewHeader(t testing.TB, names []string, lengths []int) *sam.Header {
	refs := make([]*sam.Reference, len(names))
	for i := range names {
		ref, err := sam.NewReference(names[i], "", "", lengths[i], nil, nil)
		assert.NoError(t, err)
		refs[i] = ref
	}
	header, err := sam.NewHeader(nil, refs)
	assert.NoError(t, err)
	return header
}

// Mapped creates a mapped record of n matching bases at 0-based pos.
func Mapped(name string, ref *sam.Reference, pos, n int, flags sam.Flags) *sam.Record {
	seq := strings.Repeat("ACGT", n/4+1)[:n]
	qual := make([]byte, n)
	for i := range qual {
		qual[i] = 30
	}
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, n)},
		Flags:   flags,
		MatePos: -1,
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    qual,
	}
}

// Unmapped creates an unplaced unmapped record.
func Unmapped(name, seq string, flags sam.Flags) *sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 20
	}
	return &sam.Record{
		Name:    name,
		Pos:     -1,
		MatePos: -1,
		Flags:   flags | sam.Unmapped,
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    qual,
	}
}

// Write writes records, which must already be coordinate-sorted, to a BAM
// file at path.
func Write(t testing.TB, path string, header *sam.Header, recs []*sam.Record) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	assert.NoError(t, err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	assert.NoError(t, err)
	for _, r := range recs {
		assert.NoError(t, w.Write(r))
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, out.Close(ctx))
}
