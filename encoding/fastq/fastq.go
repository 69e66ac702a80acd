// Package fastq reads and writes FASTQ records, converts aligned BAM records
// back to FASTQ, and checks read inputs before alignment.
package fastq

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/sam"
)

// A Read is a FASTQ record: the ID line (including the leading "@"), the
// sequence, line 3, and the quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

var complement = [256]byte{
	'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A', 'N': 'N',
	'a': 't', 'c': 'g', 'g': 'c', 't': 'a', 'n': 'n',
}

// ReverseComplement reverse-complements seq in place.  Bases other than
// ACGTN are written as N.
func ReverseComplement(seq []byte) {
	for i, j := 0, len(seq)-1; i <= j; i, j = i+1, j-1 {
		a, b := complement[seq[j]], complement[seq[i]]
		if a == 0 {
			a = 'N'
		}
		if b == 0 {
			b = 'N'
		}
		seq[i], seq[j] = a, b
	}
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// FromRecord converts r to the read as sequenced: reverse-strand records are
// reverse-complemented.  suffix, e.g. "/1", is appended to the name.  Missing
// base qualities are written as '!'.
func FromRecord(r *sam.Record, suffix string) Read {
	seq := r.Seq.Expand()
	qual := make([]byte, len(seq))
	for i := range qual {
		q := byte(0)
		if i < len(r.Qual) && r.Qual[i] != 0xff {
			q = r.Qual[i]
		}
		qual[i] = q + 33
	}
	if r.Flags&sam.Reverse != 0 {
		ReverseComplement(seq)
		reverse(qual)
	}
	return Read{ID: "@" + r.Name + suffix, Seq: string(seq), Unk: "+", Qual: string(qual)}
}

// open opens the (optionally compressed) FASTQ file at path.  The returned
// function closes it and records the first error in *err.
func open(ctx context.Context, path string) (io.Reader, func(*error), error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "fastq: open "+path)
	}
	r, _ := compress.NewReader(in.Reader(ctx))
	return r, func(err *error) {
		if e := r.Close(); e != nil && *err == nil {
			*err = e
		}
		file.CloseAndReport(ctx, in, err)
	}, nil
}

// Check verifies that the (optionally compressed) FASTQ file at path starts
// with a well-formed record.  An empty or malformed file is an
// errors.Invalid error.
func Check(ctx context.Context, path string) (err error) {
	r, closer, err := open(ctx, path)
	if err != nil {
		return err
	}
	defer closer(&err)
	var (
		sc   = NewScanner(r)
		read Read
	)
	if sc.Scan(&read) {
		return nil
	}
	if err := sc.Err(); err != nil {
		return errors.E(errors.Invalid, "fastq: "+path, err)
	}
	return errors.E(errors.Invalid, "fastq: no reads in "+path)
}

// CheckPair scans the R1 and R2 files to the end and verifies that they are
// well formed and hold the same number of records.  It returns the number of
// pairs.  Malformed, empty or discordant files are an errors.Invalid error.
func CheckPair(ctx context.Context, path1, path2 string) (n int, err error) {
	r1, close1, err := open(ctx, path1)
	if err != nil {
		return 0, err
	}
	defer close1(&err)
	r2, close2, err := open(ctx, path2)
	if err != nil {
		return 0, err
	}
	defer close2(&err)
	var (
		sc     = NewPairScanner(r1, r2)
		a, b   Read
		prefix = "fastq: " + path1 + ", " + path2
	)
	for sc.Scan(&a, &b) {
	}
	if err := sc.Err(); err != nil {
		return sc.N(), errors.E(errors.Invalid, prefix, err)
	}
	if sc.N() == 0 {
		return 0, errors.E(errors.Invalid, prefix+": no reads")
	}
	return sc.N(), nil
}
