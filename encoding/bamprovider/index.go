package bamprovider

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
)

// WriteIndex reads the coordinate-sorted BAM file at bamPath and writes its
// *.bai index to indexPath.  If indexPath is "", bamPath + ".bai" is used.
func WriteIndex(ctx context.Context, bamPath, indexPath string) (err error) {
	if indexPath == "" {
		indexPath = bamPath + ".bai"
	}
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return errors.E(errors.Invalid, "bamprovider: read "+bamPath, err)
	}
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	var idx bam.Index
	for {
		rec, e := r.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			return errors.E(errors.Invalid, "bamprovider: read "+bamPath, e)
		}
		if e = idx.Add(rec, r.LastChunk()); e != nil {
			return errors.E(errors.Invalid, "bamprovider: index "+bamPath, e)
		}
	}
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return bam.WriteIndex(out.Writer(ctx), &idx)
}
