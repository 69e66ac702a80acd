// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package genome builds the contig registry for an assembly and writes the
// padded reference that reads are aligned against.
package genome

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	biofasta "github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/circov/circular"
	"github.com/grailbio/circov/encoding/fasta"
)

// Opts controls genome preparation.
type Opts struct {
	// Padding is the number of bases copied from the start of each circular
	// contig onto its end.
	Padding int
}

// DefaultOpts pads circular contigs by 10kb.
var DefaultOpts = Opts{Padding: 10000}

// lineWidth is the number of bases per line in the padded FASTA.
const lineWidth = 60

// Contig describes one sequence of the assembly.  Length is the un-padded
// length.
type Contig struct {
	Name        string
	Description string
	Length      int
	Circular    bool
	Padding     int
}

// PaddedLength returns the length of the contig in the padded reference.
func (c Contig) PaddedLength() int {
	return c.Length + c.Padding
}

// IsCircular reports whether a FASTA description marks its record as
// circular.  The match is a case-insensitive substring test.
func IsCircular(description string) bool {
	d := strings.ToLower(description)
	for _, m := range circular.Markers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}

// Registry holds contigs in FASTA order.  It is immutable once built.  The
// zero value is an empty registry.
type Registry struct {
	contigs []Contig
	byName  map[string]int
}

// NewRegistry creates a registry from the sequences of f, in FASTA order.
func NewRegistry(f fasta.Fasta, opts Opts) (*Registry, error) {
	names := f.SeqNames()
	r := &Registry{byName: make(map[string]int, len(names))}
	for _, name := range names {
		if _, ok := r.byName[name]; ok {
			return nil, errors.E(errors.Invalid, "genome: duplicate contig "+name)
		}
		n, err := f.Len(name)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		desc, err := f.Description(name)
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		c := Contig{
			Name:        name,
			Description: desc,
			Length:      int(n),
			Circular:    IsCircular(desc),
		}
		if c.Length == 0 {
			return nil, errors.E(errors.Invalid, "genome: empty contig "+name)
		}
		if c.Circular {
			c.Padding = circular.PadLength(c.Length, opts.Padding)
		}
		r.byName[c.Name] = len(r.contigs)
		r.contigs = append(r.contigs, c)
	}
	return r, nil
}

// Contigs returns all contigs in FASTA order.  The caller must not modify the
// result.
func (r *Registry) Contigs() []Contig { return r.contigs }

// Get looks up a contig by name.
func (r *Registry) Get(name string) (Contig, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Contig{}, false
	}
	return r.contigs[i], true
}

// TotalLength is the sum of the un-padded contig lengths.
func (r *Registry) TotalLength() int {
	n := 0
	for _, c := range r.contigs {
		n += c.Length
	}
	return n
}

// NumCircular counts the circular contigs.
func (r *Registry) NumCircular() int {
	n := 0
	for _, c := range r.contigs {
		if c.Circular {
			n++
		}
	}
	return n
}

// Pad returns seq with the contig's padding appended.
func (c Contig) Pad(seq string) string {
	if c.Padding == 0 {
		return seq
	}
	return seq + seq[:c.Padding]
}

// SafeName returns name with every character other than letters, digits,
// '.', '_' and '-' replaced by '_', for use in file names.
func SafeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return '_'
	}, name)
}

// PaddedPath returns the path of the padded reference written by Build for
// the given input FASTA.
func PaddedPath(fastaPath, scratchDir string) string {
	base := filepath.Base(fastaPath)
	for _, ext := range []string{".gz", ".zst", ".bz2"} {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(scratchDir, base+".padded.fasta")
}

// Read loads the FASTA file at path, which may be compressed.
func Read(ctx context.Context, path string) (f fasta.Fasta, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "genome: open "+path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := r.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if f, err = fasta.New(r); err != nil {
		return nil, errors.E(errors.Invalid, "genome: parse "+path, err)
	}
	return f, nil
}

// Write writes the contigs of the registry, padded, to w.  Sequences are
// looked up in f.
func (r *Registry) Write(w io.Writer, f fasta.Fasta) error {
	fw := biofasta.NewWriter(w, lineWidth)
	for _, c := range r.contigs {
		seq, err := f.Get(c.Name, 0, uint64(c.Length))
		if err != nil {
			return errors.E(errors.NotExist, "genome: lookup "+c.Name, err)
		}
		s := linear.NewSeq(c.Name, alphabet.BytesToLetters([]byte(c.Pad(seq))), alphabet.DNA)
		s.Desc = c.Description
		if _, err := fw.Write(s); err != nil {
			return errors.E(err, "genome: write "+c.Name)
		}
	}
	return nil
}

// Build reads the assembly at fastaPath, classifies its contigs, and writes the
// padded reference and its .fai index into scratchDir.  It returns the
// registry and the padded reference path.
func Build(ctx context.Context, fastaPath, scratchDir string, opts Opts) (*Registry, string, error) {
	f, err := Read(ctx, fastaPath)
	if err != nil {
		return nil, "", err
	}
	reg, err := NewRegistry(f, opts)
	if err != nil {
		return nil, "", err
	}
	log.Printf("genome: %s has %d sequences, %d circular", fastaPath, len(reg.contigs), reg.NumCircular())
	padded := PaddedPath(fastaPath, scratchDir)
	if err := writeFile(ctx, padded, func(w io.Writer) error { return reg.Write(w, f) }); err != nil {
		return nil, "", err
	}
	if err := indexFile(ctx, padded); err != nil {
		return nil, "", err
	}
	if err := reg.checkIndex(ctx, padded+".fai"); err != nil {
		return nil, "", err
	}
	return reg, padded, nil
}

func writeFile(ctx context.Context, path string, fn func(io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "genome: create "+path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return fn(out.Writer(ctx))
}

func indexFile(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	return writeFile(ctx, path+".fai", func(w io.Writer) error {
		return fasta.GenerateIndex(w, in.Reader(ctx))
	})
}

// checkIndex verifies that the written index agrees with the registry.
func (r *Registry) checkIndex(ctx context.Context, path string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	lengths, err := fasta.ReferenceLengths(in.Reader(ctx))
	if err != nil {
		return err
	}
	for _, c := range r.contigs {
		if got := lengths[c.Name]; got != int64(c.PaddedLength()) {
			return errors.E(errors.Integrity, "genome: padded length mismatch for "+c.Name)
		}
	}
	return nil
}
